package storage

import (
	"auth-service/internal/models"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/refresh-token hash).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя в БД.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RefreshTokenStorage выполняет операции над refresh-токенами.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет новый refresh-токен в БД.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash находит refresh-токен по его хэшу.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// RotateRefreshToken одной транзакцией отзывает старый refresh-токен
	// и сохраняет новый. Возвращает false, если старый токен уже отозван;
	// ErrNotFound — если старого токена нет; ErrAlreadyExists — при коллизии
	// хэша нового токена. При любой ошибке старый токен остаётся нетронутым.
	RotateRefreshToken(ctx context.Context, oldHash string, newToken *models.RefreshToken) (bool, error)
	// DeleteRefreshToken удаляет refresh-токен (ленивое удаление при истечении).
	DeleteRefreshToken(ctx context.Context, hash string) error
	// DeleteExpiredTokens удаляет все просроченные токены.
	DeleteExpiredTokens(ctx context.Context, now time.Time) error
}

// LoginAttemptStorage ведёт append-only журнал попыток входа.
type LoginAttemptStorage interface {
	// SaveLoginAttempt добавляет запись об исходе входа.
	SaveLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	// RecentLoginAttempts возвращает последние попытки входа, новые первыми.
	RecentLoginAttempts(ctx context.Context, email string, limit int) ([]models.LoginAttempt, error)
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	LoginAttemptStorage
	Close()
}
