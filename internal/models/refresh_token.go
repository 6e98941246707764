package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken — серверная запись refresh-токена.
//
// Сам токен — непрозрачный случайный секрет без внутренней структуры;
// в БД хранится только его sha256-хэш. Запись принадлежит ровно одному
// пользователю и после создания не изменяется, кроме флага Revoked
// (ротация = новая запись + отзыв старой).
type RefreshToken struct {
	RefreshTokenHash string
	UserID           uuid.UUID
	CreatedAt        time.Time
	ExpiresAt        time.Time
	Revoked          bool
}
