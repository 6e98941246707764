package handlers

import (
	"errors"
	"fmt"
	"net/http"

	apierrors "auth-service/internal/errors"
	"auth-service/internal/http/middleware"
	"auth-service/internal/service"
)

// SignupRequest — тело запроса регистрации.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest — тело запроса входа.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse — ответ login и refreshToken.
type LoginResponse struct {
	Email        string `json:"email"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshTokenRequest — тело запроса обновления пары токенов.
type RefreshTokenRequest struct {
	Token string `json:"token"`
}

// Signup регистрирует пользователя: 201 без тела.
// Дубликат email -> 409 с описанием, включающим адрес из запроса.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var in SignupRequest
	if err := decodeStrict(r, &in); err != nil {
		writeDecodeError(w)
		return
	}

	if _, err := h.Service.SignupUser(r.Context(), in.Name, in.Email, in.Password); err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			apierrors.Write(w, http.StatusConflict,
				fmt.Sprintf("User with the email address '%s' already exists.", in.Email))
			return
		}

		apierrors.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// Login аутентифицирует пользователя и выдаёт пару токенов.
// Access-токен дублируется в httpOnly-cookie с ограниченным сроком жизни.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if err := decodeStrict(r, &in); err != nil {
		writeDecodeError(w)
		return
	}

	pair, user, err := h.Service.LoginUser(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	http.SetCookie(w, h.accessTokenCookie(pair.AccessToken))

	writeJSON(w, http.StatusOK, LoginResponse{
		Email:        user.Email,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// RefreshToken гасит предъявленный refresh-токен и выдаёт новую пару.
// Неизвестный или уже погашенный токен -> 404, просроченный -> 401.
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var in RefreshTokenRequest
	if err := decodeStrict(r, &in); err != nil {
		writeDecodeError(w)
		return
	}

	pair, user, err := h.Service.RefreshToken(r.Context(), in.Token)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Email:        user.Email,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// accessTokenCookie собирает httpOnly-cookie с access-токеном.
func (h *Handlers) accessTokenCookie(accessToken string) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.CookieName,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(h.CookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
