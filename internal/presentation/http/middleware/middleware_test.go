package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/infrastructure/cache"
	"github.com/sangkips/coopmart-api/internal/presentation/http/middleware"
	"github.com/sangkips/coopmart-api/pkg/identity"
	"github.com/sangkips/coopmart-api/pkg/utils"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var jwtManager = utils.NewJWTManager("test-secret", time.Hour)

func bearer(t *testing.T, p identity.Principal) string {
	t.Helper()
	token, err := jwtManager.GenerateAccessToken(p)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	return "Bearer " + token
}

func admin() identity.Principal {
	return identity.Principal{UserID: uuid.New(), Username: "ops", Role: identity.RoleAdmin}
}

func member(no string) identity.Principal {
	return identity.Principal{UserID: uuid.New(), Username: no, Role: identity.RoleMember, MemberNo: no}
}

func do(r http.Handler, method, path, auth, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAndRoleGuards(t *testing.T) {
	r := gin.New()
	r.Use(middleware.AuthMiddleware(jwtManager))
	r.GET("/whoami", func(c *gin.Context) {
		p, _ := middleware.GetPrincipal(c)
		ctxP, _ := identity.FromContext(c.Request.Context())
		c.String(http.StatusOK, p.Username+"|"+ctxP.Username)
	})
	r.GET("/admin", middleware.RequireRole(identity.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	if w := do(r, http.MethodGet, "/whoami", "", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: status %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/whoami", "Token abc", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad scheme: status %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/whoami", "Bearer not-a-jwt", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", w.Code)
	}

	w := do(r, http.MethodGet, "/whoami", bearer(t, member("M001")), "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "M001|M001" {
		t.Fatalf("whoami = %d %q", w.Code, w.Body.String())
	}

	if w := do(r, http.MethodGet, "/admin", bearer(t, member("M001")), "", nil); w.Code != http.StatusForbidden {
		t.Fatalf("member on admin route: status %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/admin", bearer(t, admin()), "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("admin route: status %d", w.Code)
	}
}

type memoryKeys struct {
	mu   sync.Mutex
	keys map[string]*entity.IdempotencyKey
}

func newMemoryKeys() *memoryKeys {
	return &memoryKeys{keys: map[string]*entity.IdempotencyKey{}}
}

func (m *memoryKeys) GetByKey(_ context.Context, key string, userID uuid.UUID) (*entity.IdempotencyKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[userID.String()+key], nil
}

func (m *memoryKeys) Create(_ context.Context, k *entity.IdempotencyKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[k.UserID.String()+k.Key] = k
	return nil
}

func (m *memoryKeys) DeleteExpired(context.Context) (int64, error) { return 0, nil }

func idempotentRouter(keys *memoryKeys, required bool, status int) (*gin.Engine, *int) {
	calls := 0
	r := gin.New()
	r.Use(middleware.AuthMiddleware(jwtManager))
	r.POST("/orders",
		middleware.Idempotency(middleware.IdempotencyConfig{Repo: keys, Log: zap.NewNop(), Required: required}),
		func(c *gin.Context) {
			calls++
			c.JSON(status, gin.H{"call": calls})
		})
	return r, &calls
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	keys := newMemoryKeys()
	r, calls := idempotentRouter(keys, true, http.StatusCreated)
	auth := bearer(t, member("M001"))
	key := map[string]string{middleware.IdempotencyKeyHeader: "k-1"}

	first := do(r, http.MethodPost, "/orders", auth, `{"lines":[{"sku":"RICE","qty":2}]}`, key)
	if first.Code != http.StatusCreated {
		t.Fatalf("first: status %d", first.Code)
	}
	second := do(r, http.MethodPost, "/orders", auth, `{"lines":[{"sku":"RICE","qty":2}]}`, key)
	if second.Code != http.StatusCreated || second.Header().Get("X-Idempotency-Replayed") != "true" {
		t.Fatalf("replay: status %d header %q", second.Code, second.Header().Get("X-Idempotency-Replayed"))
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("replayed body %q, want %q", second.Body.String(), first.Body.String())
	}
	if *calls != 1 {
		t.Errorf("handler ran %d times, want 1", *calls)
	}

	conflict := do(r, http.MethodPost, "/orders", auth, `{"lines":[{"sku":"RICE","qty":3}]}`, key)
	if conflict.Code != http.StatusUnprocessableEntity {
		t.Errorf("reused key with new body: status %d", conflict.Code)
	}

	// keys are scoped per caller
	other := do(r, http.MethodPost, "/orders", bearer(t, member("M002")), `{"lines":[{"sku":"RICE","qty":3}]}`, key)
	if other.Code != http.StatusCreated || *calls != 2 {
		t.Errorf("other caller: status %d calls %d", other.Code, *calls)
	}
}

func TestIdempotencyRequiredKey(t *testing.T) {
	r, calls := idempotentRouter(newMemoryKeys(), true, http.StatusCreated)
	w := do(r, http.MethodPost, "/orders", bearer(t, member("M001")), `{}`, nil)
	if w.Code != http.StatusBadRequest || *calls != 0 {
		t.Fatalf("status %d calls %d", w.Code, *calls)
	}

	optional, optionalCalls := idempotentRouter(newMemoryKeys(), false, http.StatusOK)
	if w := do(optional, http.MethodPost, "/orders", bearer(t, admin()), `{}`, nil); w.Code != http.StatusOK || *optionalCalls != 1 {
		t.Fatalf("optional without key: status %d calls %d", w.Code, *optionalCalls)
	}
}

func TestIdempotencySkipsFailedResponses(t *testing.T) {
	keys := newMemoryKeys()
	r, calls := idempotentRouter(keys, true, http.StatusConflict)
	auth := bearer(t, member("M001"))
	key := map[string]string{middleware.IdempotencyKeyHeader: "k-2"}

	do(r, http.MethodPost, "/orders", auth, `{}`, key)
	w := do(r, http.MethodPost, "/orders", auth, `{}`, key)
	if w.Header().Get("X-Idempotency-Replayed") != "" || *calls != 2 {
		t.Fatalf("failed response was replayed: calls %d", *calls)
	}
	if len(keys.keys) != 0 {
		t.Errorf("stored %d keys for a failed response", len(keys.keys))
	}
}

func TestRateLimiterPerCaller(t *testing.T) {
	store := cache.NewMemoryLimitStore(2, time.Minute)
	defer store.Close()

	r := gin.New()
	r.Use(middleware.AuthMiddleware(jwtManager))
	r.Use(middleware.NewRateLimiter(store, zap.NewNop()).Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	auth := bearer(t, admin())
	for i := 0; i < 2; i++ {
		if w := do(r, http.MethodGet, "/ping", auth, "", nil); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i+1, w.Code)
		}
	}
	w := do(r, http.MethodGet, "/ping", auth, "", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" || w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("missing throttle headers: %v", w.Header())
	}

	if w := do(r, http.MethodGet, "/ping", bearer(t, admin()), "", nil); w.Code != http.StatusNoContent {
		t.Errorf("another caller was throttled: status %d", w.Code)
	}
}

type brokenStore struct{}

func (brokenStore) Allow(context.Context, string) (cache.LimitResult, error) {
	return cache.LimitResult{}, context.DeadlineExceeded
}

func TestRateLimiterFailsOpen(t *testing.T) {
	r := gin.New()
	r.Use(middleware.NewRateLimiter(brokenStore{}, zap.NewNop()).Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	if w := do(r, http.MethodGet, "/ping", "", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("status %d", w.Code)
	}
}
