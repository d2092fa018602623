package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Spok95/workshop-stock/internal/domain/combos"
	"github.com/Spok95/workshop-stock/internal/domain/materials"
	"github.com/Spok95/workshop-stock/internal/domain/production"
	"github.com/Spok95/workshop-stock/internal/domain/products"
	"github.com/Spok95/workshop-stock/internal/domain/purchases"
	"github.com/Spok95/workshop-stock/internal/domain/refguard"
	"github.com/Spok95/workshop-stock/internal/domain/sales"
)

type Producer interface {
	Produce(ctx context.Context, productID, quantity int64) (production.Result, error)
}

type Guard interface {
	CanDelete(ctx context.Context, kind refguard.Kind, id int64) error
}

// Deps — всё, что нужно обработчикам. Ядро (Producer, Guard) за интерфейсами,
// остальное — репозитории как есть.
type Deps struct {
	Log       *slog.Logger
	Producer  Producer
	Guard     Guard
	Materials *materials.Repo
	Products  *products.Repo
	Sales     *sales.Repo
	Purchases *purchases.Repo
	Combos    *combos.Repo
}

type Server struct {
	srv  *http.Server
	deps Deps
}

func New(addr string, exposeMetrics bool, deps Deps) *Server {
	s := &Server{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if exposeMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	s.routes(mux)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/produce", s.handleProduce)
	mux.HandleFunc("GET /api/can-delete", s.handleCanDelete)

	mux.HandleFunc("GET /api/materials", s.handleListMaterials)
	mux.HandleFunc("GET /api/materials/low-stock", s.handleLowStock)
	mux.HandleFunc("POST /api/materials", s.handleCreateMaterial)
	mux.HandleFunc("PUT /api/materials/{id}", s.handleUpdateMaterial)
	mux.HandleFunc("PUT /api/materials/{id}/quantity", s.handleSetQuantity)
	mux.HandleFunc("DELETE /api/materials/{id}", s.handleDeleteMaterial)

	mux.HandleFunc("GET /api/products", s.handleListProducts)
	mux.HandleFunc("POST /api/products", s.handleCreateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", s.handleDeleteProduct)
	mux.HandleFunc("GET /api/products/{id}/recipe", s.handleGetRecipe)
	mux.HandleFunc("PUT /api/products/{id}/recipe", s.handleSetRecipe)
	mux.HandleFunc("PUT /api/products/{id}/output-material", s.handleSetOutputMaterial)

	mux.HandleFunc("GET /api/sales", s.handleListSales)
	mux.HandleFunc("POST /api/sales", s.handleCreateSale)
	mux.HandleFunc("DELETE /api/sales/{id}", s.handleDeleteSale)

	mux.HandleFunc("GET /api/purchases", s.handleListPurchases)
	mux.HandleFunc("POST /api/purchases", s.handleCreatePurchase)
	mux.HandleFunc("DELETE /api/purchases/{id}", s.handleDeletePurchase)

	mux.HandleFunc("GET /api/combos", s.handleListCombos)
	mux.HandleFunc("POST /api/combos", s.handleCreateCombo)
	mux.HandleFunc("DELETE /api/combos/{id}", s.handleDeleteCombo)
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
