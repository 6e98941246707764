package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "auth-service/internal/errors"
	"auth-service/internal/models"
	logctx "auth-service/internal/pkg/log"
	"auth-service/internal/service"
)

// CookieName — имя cookie с access-токеном, выставляемой при логине.
const CookieName = "accessToken"

type principalKey struct{}

// Authenticator проверяет access-токен и резолвит principal.
// Реализуется сервисным слоем (service.Service.Authenticate).
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// TokenFromRequest извлекает кандидата access-токена из запроса.
// Заголовок Authorization: Bearer имеет приоритет над cookie accessToken.
// Отсутствие или битый формат — не ошибка: возвращается ("", false),
// отказ по существу выносит валидация токена.
func TokenFromRequest(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(auth, prefix) {
			if token := strings.TrimSpace(auth[len(prefix):]); token != "" {
				return token, true
			}
		}
	}

	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}

	return "", false
}

// Authenticate — фильтр аутентификации, одна логическая проверка на запрос.
//
// Машина состояний:
//   - токена нет -> запрос идёт дальше неаутентифицированным (политику
//     доступа решает маршрут, см. RequireAuth);
//   - токен есть, но не прошёл проверку подписи/срока или субъект
//     неизвестен -> 401 с единым телом, next не вызывается;
//   - токен валиден -> principal кладётся в контекст, запрос идёт дальше.
//
// Если principal уже присутствует в контексте, фильтр его не перезаписывает.
// Ошибки хранилища при резолве субъекта — 500, а не 401.
func Authenticate(auth Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if PrincipalFrom(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := TokenFromRequest(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				lg := logctx.From(r.Context())

				switch {
				case errors.Is(err, service.ErrTokenExpired):
					lg.Warn("auth_denied", slog.String("reason", "token_expired"))
				case errors.Is(err, service.ErrInvalidToken):
					lg.Warn("auth_denied", slog.String("reason", "invalid_signature"))
				case errors.Is(err, service.ErrUnknownIdentity):
					lg.Warn("auth_denied", slog.String("reason", "unknown_identity"))
				default:
					lg.Error("auth_failed", slog.String("err", err.Error()))
					apierrors.Write(w, http.StatusInternalServerError, "internal server error")
					return
				}

				apierrors.Write(w, http.StatusUnauthorized, "Access denied")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth закрывает маршрут: без principal в контексте — 401.
// Вешается после Authenticate на защищённые эндпоинты.
func RequireAuth() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if PrincipalFrom(r.Context()) == nil {
				apierrors.Write(w, http.StatusUnauthorized, "Access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFrom возвращает аутентифицированного пользователя из контекста
// (или nil, если запрос неаутентифицирован).
func PrincipalFrom(ctx context.Context) *models.User {
	if u, ok := ctx.Value(principalKey{}).(*models.User); ok {
		return u
	}

	return nil
}

// PrincipalInto кладёт principal в контекст. Используется в тестах
// и фильтром аутентификации.
func PrincipalInto(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, principalKey{}, u)
}
