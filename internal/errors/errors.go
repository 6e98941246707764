// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход он принимает доменную ошибку (сентинелы пакета service),
// а на выход даёт корректный HTTP-статус и единое тело
// {"errorCode": <int>, "description": "<строка>"} без утечки внутренних деталей.
//
// Принятая конвенция статусов: 401 для всех неаутентифицированных исходов
// (неверные учётные данные, битый/просроченный access-токен, неизвестный
// субъект); 403 не используется — сервис не различает
// authenticated-but-forbidden. Отсутствующий refresh-токен — 404.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"auth-service/internal/service"
)

// Response — единый формат тела ошибки.
// ErrorCode дублирует HTTP-статус: машиночитаемый код для клиента.
type Response struct {
	ErrorCode   int    `json:"errorCode"`
	Description string `json:"description"`
}

// Write пишет статус и тело ошибки с заданным описанием.
func Write(w http.ResponseWriter, status int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{
		ErrorCode:   status,
		Description: description,
	})
}

// WriteError конвертирует доменную ошибку в HTTP-ответ по общей таблице.
// Хендлеры, которым нужен специфичный текст (дубликат email, refresh-эндпоинт),
// вызывают Write напрямую до обращения сюда.
func WriteError(w http.ResponseWriter, err error) {
	status, description := toHTTP(err)
	Write(w, status, description)
}

// toHTTP — базовый маппинг доменных ошибок на статусы:
//   - валидация входа (email/пароль/имя) -> 400;
//   - неверные учётные данные -> 401 "Invalid username or password";
//   - битый/просроченный токен, неизвестный субъект -> 401 "Access denied";
//   - refresh-токен не найден или уже погашен ротацией -> 404
//     (погашенный токен наружу неотличим от отсутствующего, различие
//     остаётся только в логах);
//   - занятый email -> 409;
//   - прочее (ошибки хранилища и пр.) -> 500 с нейтральным текстом.
func toHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, service.ErrEmptyName):
		return http.StatusBadRequest, "Validation of request failed: " + unwrapDescription(err)
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password"
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrUnknownIdentity):
		return http.StatusUnauthorized, "Access denied"
	case errors.Is(err, service.ErrRefreshTokenNotFound),
		errors.Is(err, service.ErrTokenRevoked):
		return http.StatusNotFound, "Refresh token is not in DB"
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "email already taken"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// unwrapDescription достаёт текст сентинела без цепочки op-префиксов.
func unwrapDescription(err error) string {
	for _, sentinel := range []error{
		service.ErrInvalidEmail,
		service.ErrWeakPassword,
		service.ErrEmptyPassword,
		service.ErrEmptyName,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}

	return "invalid argument"
}
