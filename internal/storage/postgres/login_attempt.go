package postgres

import (
	"auth-service/internal/models"
	"context"
	"fmt"
)

// SaveLoginAttempt добавляет запись журнала попыток входа.
// Записи append-only: обновлений и удалений для login_attempts нет.
func (s *Storage) SaveLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	const op = "storage.postgres.SaveLoginAttempt"

	query := `
        INSERT INTO login_attempts(email, success, created_at)
        VALUES ($1, $2, $3)
        RETURNING id
    `

	err := s.db.QueryRow(ctx, query,
		attempt.Email,
		attempt.Success,
		attempt.CreatedAt,
	).Scan(&attempt.ID)

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RecentLoginAttempts возвращает последние попытки входа по email,
// новые первыми, не более limit записей.
func (s *Storage) RecentLoginAttempts(ctx context.Context, email string, limit int) ([]models.LoginAttempt, error) {
	const op = "storage.postgres.RecentLoginAttempts"

	query := `
        SELECT id, email, success, created_at
        FROM login_attempts
        WHERE email = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `

	rows, err := s.db.Query(ctx, query, email, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var attempts []models.LoginAttempt
	for rows.Next() {
		var a models.LoginAttempt
		if err := rows.Scan(&a.ID, &a.Email, &a.Success, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return attempts, nil
}
