package service

import (
	"auth-service/internal/models"
	"auth-service/internal/pkg/log"
	"auth-service/internal/pkg/redact"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// recentAttemptsLimit — размер выборки журнала для loginAttempts.
const recentAttemptsLimit = 5

// recordLoginAttempt добавляет одну запись журнала об исходе входа.
// Бизнес-условий отказа у операции нет; ошибка хранилища поднимается
// наверх и делает всю операцию входа неуспешной.
func (s *Service) recordLoginAttempt(ctx context.Context, email string, success bool) error {
	const op = "service.login_attempt.recordLoginAttempt"

	attempt := &models.LoginAttempt{
		Email:     email,
		Success:   success,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.storage.SaveLoginAttempt(ctx, attempt); err != nil {
		log.From(ctx).Error("login_attempt_save_failed",
			slog.String("op", op),
			slog.String("email", redact.Email(email)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RecentLoginAttempts возвращает последние попытки входа по идентичности,
// новые первыми, не более пяти. Результат — конечный снимок, не поток.
func (s *Service) RecentLoginAttempts(ctx context.Context, email string) ([]models.LoginAttempt, error) {
	const op = "service.login_attempt.RecentLoginAttempts"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	attempts, err := s.storage.RecentLoginAttempts(ctx, normEmail, recentAttemptsLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return attempts, nil
}
