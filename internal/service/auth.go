package service

import (
	"auth-service/internal/models"
	"auth-service/internal/storage"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SignupUser регистрирует нового пользователя.
// Токены при регистрации не выпускаются — клиент после signup выполняет login.
func (s *Service) SignupUser(ctx context.Context, name, email, password string) (*models.User, error) {
	const op = "service.auth.SignupUser"

	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyName)
	}

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByEmail(ctx, normEmail)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(name),
		Email:        normEmail,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// LoginUser выполняет вход по email+пароль.
//
// Каждый исход записывается в журнал попыток ровно одной записью:
// неизвестный пользователь и неверный пароль — success=false,
// успешный вход — success=true после выпуска токенов (неудачный выпуск
// успешной записи не оставляет). Ошибка записи журнала фатальна для
// всей операции: токены в этом случае не возвращаются.
func (s *Service) LoginUser(ctx context.Context, email, password string) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.LoginUser"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if len(password) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			if rerr := s.recordLoginAttempt(ctx, normEmail, false); rerr != nil {
				return nil, nil, fmt.Errorf("%s: %w", op, rerr)
			}

			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		if rerr := s.recordLoginAttempt(ctx, normEmail, false); rerr != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, rerr)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.issueTokenPair(ctx, user, "")
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	// Запись success=true делается после выпуска токенов: неудачный выпуск
	// не должен оставлять в журнале успешный вход.
	if err := s.recordLoginAttempt(ctx, normEmail, true); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}

// RefreshToken обновляет пару токенов по refresh-токену.
// Погашение одноразовое: отзыв предъявленного токена и сохранение нового
// выполняются одной транзакцией; повторное предъявление завершается ошибкой.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.RefreshToken"

	token, err := s.validateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrUnknownIdentity)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issueTokenPair(ctx, user, hashRefreshToken(refreshToken))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}

// Authenticate проверяет access-токен и резолвит principal по хранилищу
// пользователей. Используется фильтром аутентификации на каждый запрос.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "service.auth.Authenticate"

	uid, _, err := s.validateAccessToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUnknownIdentity)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// Границы длины пароля при регистрации.
const (
	minPasswordLen = 6
	maxPasswordLen = 20
)

// validatePassword проверяет длину пароля: от 6 до 20 символов.
// Требований к составу символов нет.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if n := len([]rune(pw)); n < minPasswordLen || n > maxPasswordLen {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}

// issueTokenPair выпускает новую пару access+refresh токенов.
// Если oldRefreshHash != "", отзыв старого и сохранение нового refresh-токена
// выполняются одной транзакцией хранилища — частичного успеха не бывает:
// либо старый токен погашен и новый существует, либо старый остаётся активным.
func (s *Service) issueTokenPair(ctx context.Context, user *models.User, oldRefreshHash string) (*models.TokenPair, error) {
	const op = "service.auth.issueTokenPair"

	now := time.Now().UTC()

	accessToken, err := s.generateAccessToken(ctx, user.ID, user.Email, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var plain string
	if oldRefreshHash != "" {
		plain, err = s.rotateRefreshToken(ctx, user.ID, oldRefreshHash)
	} else {
		plain, err = s.generateRefreshToken(ctx, user.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    plain,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, nil
}
