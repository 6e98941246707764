// service содержит бизнес-логику сервиса аутентификации:
// регистрацию и вход пользователей, выпуск/проверку access- и refresh-токенов,
// журнал попыток входа и работу с хранилищем через интерфейсы из пакета storage.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//   - Ключ подписи живёт в AuthConfig и передаётся при конструировании,
//     глобального состояния у пакета нет.
//   - Ошибки возвращаются сентинелами и далее маппятся HTTP-слоем на статусы
//     (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"

	"auth-service/internal/cache"
	"auth-service/internal/config"
	"auth-service/internal/storage"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// HTTP-слой отдаёт 401 с единым сообщением, не раскрывая причину.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — access-токен некорректен по формату/подписи.
	// Вместе с ErrTokenExpired схлопывается в единый 401 "Access denied";
	// различие остаётся только в логах.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. HTTP: 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — refresh-токен уже был погашен (ротация) и недействителен
	// независимо от срока. Наружу неотличим от отсутствующего токена (HTTP: 404),
	// различие сохраняется только для диагностики.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrRefreshTokenNotFound — refresh-токен отсутствует в хранилище. HTTP: 404.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")

	// ErrEmailTaken — e-mail уже занят другим пользователем. HTTP: 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrUnknownIdentity — субъект валидного access-токена не найден в хранилище
	// пользователей. HTTP: 401.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrRefreshTokenCollision — исчерпаны попытки сгенерировать уникальный
	// refresh-токен (повторная коллизия хэша при сохранении). HTTP: 500.
	ErrRefreshTokenCollision = errors.New("refresh token collision")

	// ErrInvalidEmail — e-mail имеет некорректный формат. HTTP: 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — длина пароля вне допустимых границ (6-20 символов). HTTP: 400.
	ErrWeakPassword = errors.New("password must be 6 to 20 characters long")

	// ErrEmptyPassword — пароль пустой. HTTP: 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrEmptyName — имя пользователя при регистрации пустое. HTTP: 400.
	ErrEmptyName = errors.New("name is empty")
)

// Service описывает бизнес-логику сервиса аутентификации.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	rcache  cache.RefreshCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
	}
}

// SetRefreshCache устанавливает кэш refresh-токенов (опционально).
func (s *Service) SetRefreshCache(c cache.RefreshCache) {
	s.rcache = c
}
