package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"auth-service/internal/http/handlers"
	"auth-service/internal/http/middleware"
	"auth-service/internal/service"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger       *slog.Logger
	Timeout      time.Duration
	CookieMaxAge time.Duration
	// Ready — признак готовности сервиса для /healthz; nil означает "готов".
	Ready func() bool
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),              // безопасно ловим паники
		middleware.RequestID(),            // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger),   // кладём request-scoped логгер в контекст и логируем
		middleware.Metrics(),              // prometheus-счётчики по запросам
		middleware.Authenticate(svc),      // единственный проход аутентификации на запрос
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := handlers.New(svc, opts.CookieMaxAge)

	// Публичные маршруты: доходят до хендлера и без credential.
	root.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.Post("/refreshToken", h.RefreshToken)

		// Защищённые маршруты: без principal — 401.
		r.Group(func(pr chi.Router) {
			pr.Use(middleware.RequireAuth())
			pr.Get("/loginAttempts", h.LoginAttempts)
		})
	})

	// Служебные эндпоинты.
	root.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready == nil || opts.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})
	root.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return root
}
