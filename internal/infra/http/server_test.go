package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/workshop-stock/internal/domain/production"
	"github.com/Spok95/workshop-stock/internal/domain/refguard"
)

type fakeProducer struct {
	res production.Result
	err error

	gotProductID int64
	gotQuantity  int64
}

func (f *fakeProducer) Produce(_ context.Context, productID, quantity int64) (production.Result, error) {
	f.gotProductID, f.gotQuantity = productID, quantity
	return f.res, f.err
}

type fakeGuard struct{ err error }

func (f *fakeGuard) CanDelete(context.Context, refguard.Kind, int64) error { return f.err }

func newTestServer(p Producer, g Guard) *Server {
	return New(":0", false, Deps{
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Producer: p,
		Guard:    g,
	})
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestHandleProduceSuccess(t *testing.T) {
	p := &fakeProducer{res: production.Result{
		ProductID: 10, Quantity: 3, OutputMaterialID: 7, OutputQuantity: 12,
	}}
	s := newTestServer(p, &fakeGuard{})

	w := do(s, http.MethodPost, "/api/produce", `{"product_id":10,"quantity":3}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(10), p.gotProductID)
	assert.Equal(t, int64(3), p.gotQuantity)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(3), resp["quantity"])
	assert.Equal(t, float64(7), resp["output_material_id"])
}

func TestHandleProduceInsufficientStock(t *testing.T) {
	p := &fakeProducer{err: &production.InsufficientStockError{Materials: []string{"M1", "M2"}}}
	s := newTestServer(p, &fakeGuard{})

	w := do(s, http.MethodPost, "/api/produce", `{"product_id":10,"quantity":4}`)

	require.Equal(t, http.StatusConflict, w.Code)
	var resp errResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient_stock", resp.Code)
	assert.Equal(t, []string{"M1", "M2"}, resp.Materials)
}

func TestHandleProduceErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantTag  string
	}{
		{"invalid quantity", production.ErrInvalidQuantity, http.StatusBadRequest, "invalid_argument"},
		{"unknown product", production.ErrProductNotFound, http.StatusNotFound, "not_found"},
		{"no recipe", production.ErrNoRecipe, http.StatusUnprocessableEntity, "unconfigured"},
		{"no output material", production.ErrNoOutputMaterial, http.StatusUnprocessableEntity, "unconfigured"},
		{"write conflict", production.ErrConflict, http.StatusConflict, "conflict"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeProducer{err: tt.err}, &fakeGuard{})

			w := do(s, http.MethodPost, "/api/produce", `{"product_id":10,"quantity":1}`)

			require.Equal(t, tt.wantCode, w.Code)
			var resp errResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantTag, resp.Code)
		})
	}
}

func TestHandleProduceBadBody(t *testing.T) {
	s := newTestServer(&fakeProducer{}, &fakeGuard{})

	w := do(s, http.MethodPost, "/api/produce", `{"quantity":"three"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCanDeleteOK(t *testing.T) {
	s := newTestServer(&fakeProducer{}, &fakeGuard{})

	w := do(s, http.MethodGet, "/api/can-delete?kind=material&id=5", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["ok"])
}

func TestHandleCanDeleteConflict(t *testing.T) {
	g := &fakeGuard{err: &refguard.ConflictError{
		Kind: refguard.KindMaterial, ID: 5, Relation: "product_recipes",
	}}
	s := newTestServer(&fakeProducer{}, g)

	w := do(s, http.MethodGet, "/api/can-delete?kind=material&id=5", "")

	require.Equal(t, http.StatusConflict, w.Code)
	var resp errResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "conflict", resp.Code)
	assert.Equal(t, "product_recipes", resp.Relation)
}

func TestHandleCanDeleteValidation(t *testing.T) {
	s := newTestServer(&fakeProducer{}, &fakeGuard{})

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/api/can-delete?kind=warehouse&id=5", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/api/can-delete?kind=material&id=zero", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/api/can-delete?kind=material&id=-2", "").Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeProducer{}, &fakeGuard{})

	w := do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}
