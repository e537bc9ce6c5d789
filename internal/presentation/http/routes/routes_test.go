package routes_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sangkips/coopmart-api/internal/config"
	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/infrastructure/metrics"
	"github.com/sangkips/coopmart-api/internal/presentation/http/handler"
	"github.com/sangkips/coopmart-api/internal/presentation/http/routes"
	"github.com/sangkips/coopmart-api/pkg/identity"
	"github.com/sangkips/coopmart-api/pkg/utils"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noKeys struct{}

func (noKeys) GetByKey(context.Context, string, uuid.UUID) (*entity.IdempotencyKey, error) {
	return nil, nil
}
func (noKeys) Create(context.Context, *entity.IdempotencyKey) error { return nil }
func (noKeys) DeleteExpired(context.Context) (int64, error) { return 0, nil }

// newRouter wires handlers without services; every request exercised here is
// answered by middleware or binding before a service is reached
func newRouter(ping func(context.Context) error) (*gin.Engine, *utils.JWTManager) {
	jwt := utils.NewJWTManager("routes-secret", time.Hour)
	reg := prometheus.NewRegistry()
	metrics.New(reg).OrderTransition("New", "Pending")

	h := &routes.Handlers{
		Order:     handler.NewOrderHandler(nil),
		Inventory: handler.NewInventoryHandler(nil, nil, nil),
		Member:    handler.NewMemberHandler(nil, nil),
		Pricing:   handler.NewPricingHandler(nil),
		Import:    handler.NewImportHandler(nil, 1<<20),
		Report:    handler.NewReportHandler(nil),
		Reference: handler.NewReferenceHandler(nil),
	}
	return routes.Setup(h, &routes.Deps{
		JWTManager:      jwt,
		Cfg:             &config.Config{App: config.AppConfig{Name: "coopmart-api"}},
		IdempotencyRepo: noKeys{},
		Gatherer:        reg,
		Log:             zap.NewNop(),
		Ping:            ping,
	}), jwt
}

func token(t *testing.T, jwt *utils.JWTManager, role identity.Role) string {
	t.Helper()
	p := identity.Principal{UserID: uuid.New(), Username: string(role), Role: role}
	switch role {
	case identity.RoleRep:
		branch := uint(1)
		p.BranchID = &branch
	case identity.RoleMember:
		p.MemberNo = "M001"
	}
	tok, err := jwt.GenerateAccessToken(p)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	return "Bearer " + tok
}

func serve(r http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthReflectsPing(t *testing.T) {
	r, _ := newRouter(nil)
	if w := serve(r, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Fatalf("healthy: status %d", w.Code)
	}

	down, _ := newRouter(func(context.Context) error { return errors.New("connection refused") })
	if w := serve(down, http.MethodGet, "/health", "", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("db down: status %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newRouter(nil)
	w := serve(r, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "order_transitions_total") {
		t.Errorf("metrics output missing order transitions:\n%s", w.Body.String())
	}
}

func TestRoleGuards(t *testing.T) {
	r, jwt := newRouter(nil)
	memberTok := token(t, jwt, identity.RoleMember)
	repTok := token(t, jwt, identity.RoleRep)

	cases := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"anonymous orders", http.MethodGet, "/api/v1/orders", "", http.StatusUnauthorized},
		{"member posts order", http.MethodPost, "/api/v1/orders/" + uuid.NewString() + "/post", memberTok, http.StatusForbidden},
		{"member bulk delivers", http.MethodPost, "/api/v1/orders/deliver", memberTok, http.StatusForbidden},
		{"member reads inventory", http.MethodGet, "/api/v1/inventory", memberTok, http.StatusForbidden},
		{"member receives stock", http.MethodPost, "/api/v1/stock/receive", memberTok, http.StatusForbidden},
		{"rep imports", http.MethodPost, "/api/v1/imports/prices", repTok, http.StatusForbidden},
		{"rep deletes order", http.MethodDelete, "/api/v1/orders/" + uuid.NewString(), repTok, http.StatusForbidden},
		{"rep exports demand", http.MethodGet, "/api/v1/reports/demand/export", repTok, http.StatusForbidden},
		{"rep edits markups", http.MethodPut, "/api/v1/markups", repTok, http.StatusForbidden},
		{"rep creates cycle", http.MethodPost, "/api/v1/cycles", repTok, http.StatusForbidden},
		{"member reads demand", http.MethodGet, "/api/v1/reports/demand", memberTok, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := serve(r, tc.method, tc.path, tc.auth, "{}"); w.Code != tc.want {
				t.Fatalf("status %d, want %d: %s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestOrderSubmissionNeedsIdempotencyKey(t *testing.T) {
	r, jwt := newRouter(nil)
	w := serve(r, http.MethodPost, "/api/v1/orders", token(t, jwt, identity.RoleMember), `{"lines":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestValidationErrorsUseJSONFieldNames(t *testing.T) {
	r, jwt := newRouter(nil)
	w := serve(r, http.MethodPost, "/api/v1/stock/receive", token(t, jwt, identity.RoleRep), `{"qty":5}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Kind   string `json:"kind"`
		Errors []struct {
			Field string `json:"field"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Kind != "validation" {
		t.Errorf("kind = %q", body.Kind)
	}
	fields := map[string]bool{}
	for _, e := range body.Errors {
		fields[e.Field] = true
	}
	if !fields["branch_code"] || !fields["sku"] {
		t.Errorf("fields = %v, want branch_code and sku", fields)
	}
}

func TestInvalidOrderIDRejected(t *testing.T) {
	r, jwt := newRouter(nil)
	if w := serve(r, http.MethodGet, "/api/v1/orders/not-a-uuid", token(t, jwt, identity.RoleMember), ""); w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}
