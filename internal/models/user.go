package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись пользователя.
//
// PasswordHash хранит bcrypt-хэш, исходный пароль нигде не сохраняется.
// Roles — авторизационные атрибуты, которые попадают в principal
// аутентифицированного запроса.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
