package handlers

import (
	"net/http"
	"time"

	apierrors "auth-service/internal/errors"
	"auth-service/internal/http/middleware"
)

// LoginAttemptResponse — одна запись журнала попыток входа.
type LoginAttemptResponse struct {
	Email     string    `json:"email"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"createdAt"`
}

// LoginAttempts возвращает последние попытки входа аутентифицированного
// пользователя, новые первыми. Идентичность берётся из principal —
// просмотр чужого журнала невозможен.
func (h *Handlers) LoginAttempts(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFrom(r.Context())
	if principal == nil {
		apierrors.Write(w, http.StatusUnauthorized, "Access denied")
		return
	}

	attempts, err := h.Service.RecentLoginAttempts(r.Context(), principal.Email)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	out := make([]LoginAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, LoginAttemptResponse{
			Email:     a.Email,
			Success:   a.Success,
			CreatedAt: a.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, out)
}
