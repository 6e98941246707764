package models

import "time"

// LoginAttempt — неизменяемая запись аудита об исходе входа.
// Создаётся на каждую попытку логина (успешную и неуспешную),
// никогда не обновляется и не удаляется сервисом.
type LoginAttempt struct {
	ID        int64
	Email     string
	Success   bool
	CreatedAt time.Time
}
