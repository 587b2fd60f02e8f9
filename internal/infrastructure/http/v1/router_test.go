package v1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "stockpilot/internal/core/context"
	"stockpilot/internal/core/id"
	"stockpilot/internal/domain/catalogs/carrier"
	"stockpilot/internal/domain/catalogs/product"
	"stockpilot/internal/domain/catalogs/warehouse"
	"stockpilot/internal/domain/history"
	"stockpilot/pkg/logger"
)

// roleValidator treats the bearer token itself as the user's role.
type roleValidator struct{}

func (roleValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token == "" || token == "invalid" {
		return nil, errors.New("bad token")
	}
	return &appctx.UserContext{UserID: "user-" + token, Email: token + "@test.local", Role: token}, nil
}

type entryLog struct {
	entries []history.Entry
}

func (l *entryLog) Append(ctx context.Context, entry history.Entry) error {
	l.entries = append(l.entries, entry)
	return nil
}

func (l *entryLog) ListByEntity(ctx context.Context, entityType string, entityID id.ID) ([]history.Entry, error) {
	var out []history.Entry
	for _, e := range l.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestRouter(t *testing.T, log *entryLog) http.Handler {
	t.Helper()

	lg, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)

	return NewRouter(RouterConfig{
		Logger:       lg,
		JWTValidator: roleValidator{},
		Products:     &product.Service{},
		Warehouses:   &warehouse.Service{},
		Carriers:     &carrier.Service{},
		History:      history.NewService(log),
	})
}

func doRequest(router http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+role)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_RequiresAuth(t *testing.T) {
	router := newTestRouter(t, &entryLog{})

	w := doRequest(router, http.MethodGet, "/api/v1/orders", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_RoleGating(t *testing.T) {
	router := newTestRouter(t, &entryLog{})
	orderID := id.New().String()

	cases := []struct {
		name   string
		method string
		path   string
		role   string
		denied bool
	}{
		{"supplier maintains products", http.MethodPost, "/api/v1/catalog/products", appctx.RoleSupplier, false},
		{"warehouse cannot edit products", http.MethodPost, "/api/v1/catalog/products", appctx.RoleWarehouse, true},
		{"warehouse catalog is admin-managed", http.MethodPost, "/api/v1/catalog/warehouses", appctx.RoleWarehouse, true},
		{"admin edits warehouses", http.MethodPost, "/api/v1/catalog/warehouses", appctx.RoleAdmin, false},
		{"carrier catalog is admin-managed", http.MethodPost, "/api/v1/catalog/carriers", appctx.RoleWarehouse, true},
		{"stock override needs admin", http.MethodPost, "/api/v1/inventory/adjust", appctx.RoleWarehouse, true},
		{"admin overrides stock", http.MethodPost, "/api/v1/inventory/adjust", appctx.RoleAdmin, false},
		{"manual transition needs admin", http.MethodPost, "/api/v1/orders/" + orderID + "/transition", appctx.RoleWarehouse, true},
		{"customer places orders", http.MethodPost, "/api/v1/orders", appctx.RoleCustomer, false},
		{"warehouse cannot place orders", http.MethodPost, "/api/v1/orders", appctx.RoleWarehouse, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, tc.method, tc.path, tc.role, "{}")
			if tc.denied {
				assert.Equal(t, http.StatusForbidden, w.Code)
			} else {
				// the empty body fails validation before any service runs
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestRouter_HistoryEndpoint(t *testing.T) {
	log := &entryLog{}
	orderID := id.New()
	log.entries = append(log.entries, history.NewEntry("order", orderID, "", "pending", "tester"))

	router := newTestRouter(t, log)

	w := doRequest(router, http.MethodGet, "/api/v1/history/order/"+orderID.String(), appctx.RoleWarehouse, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Items []history.Entry `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "pending", resp.Items[0].NewStatus)

	w = doRequest(router, http.MethodGet, "/api/v1/history/widget/"+orderID.String(), appctx.RoleWarehouse, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
