package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	apierrors "auth-service/internal/errors"
	"auth-service/internal/service"
)

// Handlers агрегирует зависимости HTTP-слоя (сервисный слой).
type Handlers struct {
	Service *service.Service
	// CookieMaxAge — срок жизни cookie с access-токеном.
	CookieMaxAge time.Duration
}

func New(s *service.Service, cookieMaxAge time.Duration) *Handlers {
	return &Handlers{Service: s, CookieMaxAge: cookieMaxAge}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// writeDecodeError — локальная ошибка парсинга тела -> 400.
func writeDecodeError(w http.ResponseWriter) {
	apierrors.Write(w, http.StatusBadRequest, "Validation of request failed: malformed request body")
}
