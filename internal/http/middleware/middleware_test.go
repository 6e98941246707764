package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auth-service/internal/models"
	"auth-service/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// capHandler — тестовый slog.Handler, который:
//   - аккумулирует базовые attrs, приходящие через Logger.With(...);
//   - собирает attrs из каждой записи в map[string]any;
//   - не создаёт реальных I/O, чтобы не паниковать в тестах.
type capHandler struct {
	base    []slog.Attr
	lastMsg string
	lastLvl slog.Level
	attrs   map[string]any
	count   int
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	out := make(map[string]any, len(h.base)+8)

	for _, a := range h.base {
		out[a.Key] = a.Value.Any()
	}

	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.Any()
		return true
	})

	h.count++
	h.lastMsg = r.Message
	h.lastLvl = r.Level
	h.attrs = out

	return nil
}

func (h *capHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) > 0 {
		h.base = append(h.base, attrs...)
	}

	return h
}

func (h *capHandler) WithGroup(string) slog.Handler { return h }

func makeReq(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = (&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 12345}).String()
	return req
}

type errBody struct {
	ErrorCode   int    `json:"errorCode"`
	Description string `json:"description"`
}

// authFunc — стаб Authenticator для тестов фильтра.
type authFunc func(ctx context.Context, token string) (*models.User, error)

func (f authFunc) Authenticate(ctx context.Context, token string) (*models.User, error) {
	return f(ctx, token)
}

func TestChain_Order(t *testing.T) {
	order := []string{}

	m1 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "m1-begin")
			next.ServeHTTP(w, r)
			order = append(order, "m1-end")
		})
	}

	m2 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "m2-begin")
			next.ServeHTTP(w, r)
			order = append(order, "m2-end")
		})
	}

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusTeapot)
	})

	chain := Chain(final, m1, m2)
	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, makeReq("/chain"))

	require.Equal(t, []string{"m1-begin", "m2-begin", "handler", "m2-end", "m1-end"}, order)
	require.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRequestID_GenerateAndPropagate(t *testing.T) {
	var seenCtxID string

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCtxID = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	chain := Chain(h, RequestID())
	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, makeReq("/rid"))

	respID := rr.Header().Get("X-Request-Id")
	require.NotEmpty(t, respID)
	require.Len(t, respID, 32) // 16 байт → 32 hex-символа
	require.Equal(t, respID, seenCtxID)
}

func TestRequestID_UseExisting(t *testing.T) {
	const given = "abc123-existing-id"
	var seenCtxID string

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCtxID = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	chain := Chain(h, RequestID())
	rr := httptest.NewRecorder()
	req := makeReq("/rid2")
	req.Header.Set("X-Request-Id", given)
	chain.ServeHTTP(rr, req)

	require.Equal(t, given, rr.Header().Get("X-Request-Id"))
	require.Equal(t, given, seenCtxID)
}

func TestTokenFromRequest_BearerPrecedence(t *testing.T) {
	req := makeReq("/t")
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})

	token, ok := TokenFromRequest(req)
	require.True(t, ok)
	require.Equal(t, "header-token", token)
}

func TestTokenFromRequest_CookieFallback(t *testing.T) {
	req := makeReq("/t")
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})

	token, ok := TokenFromRequest(req)
	require.True(t, ok)
	require.Equal(t, "cookie-token", token)
}

func TestTokenFromRequest_MalformedHeader(t *testing.T) {
	// 1) Не Bearer.
	req := makeReq("/t1")
	req.Header.Set("Authorization", "Basic aaa")
	_, ok := TokenFromRequest(req)
	require.False(t, ok)

	// 2) Bearer без значения.
	req = makeReq("/t2")
	req.Header.Set("Authorization", "Bearer   ")
	_, ok = TokenFromRequest(req)
	require.False(t, ok)

	// 3) Вообще пусто.
	req = makeReq("/t3")
	_, ok = TokenFromRequest(req)
	require.False(t, ok)
}

func TestAuthenticate_NoToken_PassesThroughUnauthenticated(t *testing.T) {
	var principal *models.User
	called := false

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		principal = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	auth := authFunc(func(context.Context, string) (*models.User, error) {
		t.Fatal("authenticator must not be called without token")
		return nil, nil
	})

	chain := Chain(h, Authenticate(auth))
	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, makeReq("/open"))

	require.True(t, called)
	require.Nil(t, principal)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthenticate_ValidToken_PopulatesPrincipal(t *testing.T) {
	want := &models.User{ID: uuid.New(), Email: "user@example.com"}
	var got *models.User

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	auth := authFunc(func(_ context.Context, token string) (*models.User, error) {
		require.Equal(t, "good-token", token)
		return want, nil
	})

	chain := Chain(h, Authenticate(auth))
	rr := httptest.NewRecorder()
	req := makeReq("/secure")
	req.Header.Set("Authorization", "Bearer good-token")
	chain.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, want, got)
}

func TestAuthenticate_BadToken_Returns401(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
	}{
		{"expired", service.ErrTokenExpired},
		{"invalid", service.ErrInvalidToken},
		{"unknown_identity", service.ErrUnknownIdentity},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("next must not be called")
			})

			auth := authFunc(func(context.Context, string) (*models.User, error) {
				return nil, fmt.Errorf("service.auth.Authenticate: %w", tc.err)
			})

			chain := Chain(h, Authenticate(auth))
			rr := httptest.NewRecorder()
			req := makeReq("/secure")
			req.Header.Set("Authorization", "Bearer bad-token")
			chain.ServeHTTP(rr, req)

			require.Equal(t, http.StatusUnauthorized, rr.Code)

			var body errBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			require.Equal(t, http.StatusUnauthorized, body.ErrorCode)
			require.Equal(t, "Access denied", body.Description)
		})
	}
}

func TestAuthenticate_StorageError_Returns500(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not be called")
	})

	auth := authFunc(func(context.Context, string) (*models.User, error) {
		return nil, errors.New("pg down")
	})

	chain := Chain(h, Authenticate(auth))
	rr := httptest.NewRecorder()
	req := makeReq("/secure")
	req.Header.Set("Authorization", "Bearer token")
	chain.ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestAuthenticate_DoesNotOverrideExistingPrincipal(t *testing.T) {
	existing := &models.User{ID: uuid.New(), Email: "first@example.com"}
	var got *models.User

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	auth := authFunc(func(context.Context, string) (*models.User, error) {
		t.Fatal("authenticator must not be called when principal already set")
		return nil, nil
	})

	chain := Chain(h, Authenticate(auth))
	rr := httptest.NewRecorder()
	req := makeReq("/secure")
	req.Header.Set("Authorization", "Bearer anything")
	req = req.WithContext(PrincipalInto(req.Context(), existing))
	chain.ServeHTTP(rr, req)

	require.Equal(t, existing, got)
}

func TestRequireAuth_DeniesWithoutPrincipal(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not be called")
	})

	chain := Chain(h, RequireAuth())
	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, makeReq("/secure"))

	require.Equal(t, http.StatusUnauthorized, rr.Code)

	var body errBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "Access denied", body.Description)
}

func TestRequireAuth_PassesWithPrincipal(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	chain := Chain(h, RequireAuth())
	rr := httptest.NewRecorder()
	req := makeReq("/secure")
	req = req.WithContext(PrincipalInto(req.Context(), &models.User{ID: uuid.New()}))
	chain.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestTimeout_SetsDeadline_WhenAbsent(t *testing.T) {
	var hasDeadline bool
	var left time.Duration

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dl, ok := r.Context().Deadline()
		hasDeadline = ok
		if ok {
			left = time.Until(dl)
		}
		w.WriteHeader(http.StatusOK)
	})

	chain := Chain(h, Timeout(50*time.Millisecond))
	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, makeReq("/timeout"))

	require.True(t, hasDeadline)
	require.Greater(t, left, time.Duration(0))
}

func TestTimeout_DoesNotOverrideExistingDeadline(t *testing.T) {
	var childDL time.Time

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dl, _ := r.Context().Deadline()
		childDL = dl
		w.WriteHeader(http.StatusOK)
	})

	parent, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := makeReq("/timeout2").WithContext(parent)

	chain := Chain(h, Timeout(1*time.Second)) // больше, чем у родителя
	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, req)

	parentDL, _ := parent.Deadline()
	require.WithinDuration(t, parentDL, childDL, time.Millisecond)
}

func TestRecover_ConvertsPanicTo500(t *testing.T) {
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	chain := Chain(panicHandler, Recover())
	rr := httptest.NewRecorder()

	chain.ServeHTTP(rr, makeReq("/panic"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body errBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, http.StatusInternalServerError, body.ErrorCode)
	require.NotEmpty(t, body.Description)
}

func TestLogging_WritesRecord_WithStatusDurAndBytes(t *testing.T) {
	h := &capHandler{}
	logger := slog.New(h)

	const rid = "rid-456"
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Не вызываем WriteHeader — статус должен стать 200 после Write.
		_, _ = w.Write([]byte("0123456789")) // 10 байт
	})

	// Порядок важен: RequestID до Logging, чтобы id попал в attrs лога.
	handler := Chain(final, RequestID(), Logging(logger))

	rr := httptest.NewRecorder()
	req := makeReq("/log")
	req.Header.Set("X-Request-Id", rid)

	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, h.count)
	require.Equal(t, "http", h.lastMsg)

	method, _ := h.attrs["method"].(string)
	path, _ := h.attrs["path"].(string)
	status, _ := h.attrs["status"].(int64) // slog хранит числа как int64
	bytes, _ := h.attrs["bytes"].(int64)
	ridAttr, _ := h.attrs["request_id"].(string)

	require.Equal(t, http.MethodGet, method)
	require.Equal(t, "/log", path)
	require.EqualValues(t, http.StatusOK, status)
	require.EqualValues(t, 10, bytes)
	require.Equal(t, rid, ridAttr)

	_, hasDur := h.attrs["dur"]
	require.True(t, hasDur)
}

func TestStatusWriter_CountsBytes_AndDefaultStatus200(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := newStatusWriter(rr)

	_, _ = sw.Write([]byte("abcd")) // 4 байта

	require.Equal(t, http.StatusOK, sw.status)
	require.Equal(t, 4, sw.count)
}
