package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Spok95/workshop-stock/internal/domain/combos"
	"github.com/Spok95/workshop-stock/internal/domain/materials"
	"github.com/Spok95/workshop-stock/internal/domain/production"
	"github.com/Spok95/workshop-stock/internal/domain/products"
	"github.com/Spok95/workshop-stock/internal/domain/purchases"
	"github.com/Spok95/workshop-stock/internal/domain/refguard"
	"github.com/Spok95/workshop-stock/internal/domain/sales"
)

const dateLayout = "2006-01-02"

type errResponse struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Materials []string `json:"materials,omitempty"`
	Relation  string   `json:"relation,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	resp := errResponse{Message: err.Error()}
	var status int

	var insufficient *production.InsufficientStockError
	var conflict *refguard.ConflictError
	var dup *products.DuplicateEntryError
	var pgErr *pgconn.PgError

	switch {
	case errors.As(err, &insufficient):
		status, resp.Code = http.StatusConflict, "insufficient_stock"
		resp.Materials = insufficient.Materials
	case errors.Is(err, materials.ErrInsufficientStock):
		status, resp.Code = http.StatusConflict, "insufficient_stock"
	case errors.As(err, &conflict):
		status, resp.Code = http.StatusConflict, "conflict"
		resp.Relation = conflict.Relation
	case errors.Is(err, production.ErrConflict):
		status, resp.Code = http.StatusConflict, "conflict"
	// FK-страховка: зависимость появилась между проверкой и удалением.
	case errors.As(err, &pgErr) && pgErr.Code == "23503":
		status, resp.Code = http.StatusConflict, "conflict"
	case errors.Is(err, production.ErrInvalidQuantity),
		errors.Is(err, materials.ErrNegativeQuantity),
		errors.Is(err, products.ErrBadQuantity),
		errors.Is(err, products.ErrSelfReference),
		errors.As(err, &dup),
		errors.Is(err, combos.ErrBadItem),
		errors.Is(err, combos.ErrBadQuantity):
		status, resp.Code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, materials.ErrNotFound),
		errors.Is(err, products.ErrNotFound),
		errors.Is(err, production.ErrProductNotFound),
		errors.Is(err, production.ErrMaterialNotFound),
		errors.Is(err, sales.ErrNotFound),
		errors.Is(err, purchases.ErrNotFound),
		errors.Is(err, combos.ErrNotFound):
		status, resp.Code = http.StatusNotFound, "not_found"
	case errors.Is(err, production.ErrNotProducible),
		errors.Is(err, production.ErrNoOutputMaterial),
		errors.Is(err, production.ErrNoRecipe):
		status, resp.Code = http.StatusUnprocessableEntity, "unconfigured"
	default:
		status, resp.Code = http.StatusInternalServerError, "persistence_failure"
		s.deps.Log.Error("request failed", "err", err)
	}

	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errResponse{Code: "invalid_argument", Message: msg})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

/* Core operations */

func (s *Server) handleProduce(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID int64 `json:"product_id"`
		Quantity  int64 `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	res, err := s.deps.Producer.Produce(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"quantity":           res.Quantity,
		"output_material_id": res.OutputMaterialID,
		"output_quantity":    res.OutputQuantity,
	})
}

func (s *Server) handleCanDelete(w http.ResponseWriter, r *http.Request) {
	kind := refguard.Kind(r.URL.Query().Get("kind"))
	if kind != refguard.KindMaterial && kind != refguard.KindProduct {
		badRequest(w, "kind must be material or product")
		return
	}
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "id must be a positive integer")
		return
	}

	if err := s.deps.Guard.CanDelete(r.Context(), kind, id); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

/* Materials */

type materialDTO struct {
	ID            int64    `json:"id"`
	MaterialCode  string   `json:"material_code"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Quantity      float64  `json:"quantity"`
	Unit          string   `json:"unit"`
	Supplier      string   `json:"supplier,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	LowStockAlert *float64 `json:"low_stock_alert,omitempty"`
	CanSell       bool     `json:"can_sell"`
	UpdatedAt     string   `json:"updated_at"`
}

func toMaterialDTO(m *materials.Material) materialDTO {
	return materialDTO{
		ID:            m.ID,
		MaterialCode:  m.MaterialCode,
		Name:          m.Name,
		Description:   m.Description,
		Quantity:      m.Quantity,
		Unit:          m.Unit,
		Supplier:      m.Supplier,
		Notes:         m.Notes,
		LowStockAlert: m.LowStockAlert,
		CanSell:       m.CanSell,
		UpdatedAt:     m.UpdatedAt.Format(time.RFC3339),
	}
}

func materialDTOs(list []materials.Material) []materialDTO {
	out := make([]materialDTO, 0, len(list))
	for i := range list {
		out = append(out, toMaterialDTO(&list[i]))
	}
	return out
}

func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		list, err := s.deps.Materials.SearchByName(r.Context(), q)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, materialDTOs(list))
		return
	}
	list, err := s.deps.Materials.List(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, materialDTOs(list))
}

func (s *Server) handleLowStock(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Materials.ListLowStock(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, materialDTOs(list))
}

func (s *Server) handleCreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaterialCode  string   `json:"material_code"`
		Name          string   `json:"name"`
		Description   string   `json:"description"`
		Unit          string   `json:"unit"`
		Quantity      float64  `json:"quantity"`
		Supplier      string   `json:"supplier"`
		Notes         string   `json:"notes"`
		LowStockAlert *float64 `json:"low_stock_alert"`
		CanSell       bool     `json:"can_sell"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.MaterialCode == "" || req.Name == "" || req.Unit == "" {
		badRequest(w, "material_code, name and unit are required")
		return
	}

	m, err := s.deps.Materials.Create(r.Context(), req.MaterialCode, req.Name, req.Description,
		req.Unit, req.Quantity, req.Supplier, req.Notes, req.LowStockAlert, req.CanSell)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMaterialDTO(m))
}

func (s *Server) handleUpdateMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	var req struct {
		Name          string   `json:"name"`
		Description   string   `json:"description"`
		Unit          string   `json:"unit"`
		Supplier      string   `json:"supplier"`
		Notes         string   `json:"notes"`
		LowStockAlert *float64 `json:"low_stock_alert"`
		CanSell       bool     `json:"can_sell"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	m, err := s.deps.Materials.Update(r.Context(), id, materials.Update{
		Name:          req.Name,
		Description:   req.Description,
		Unit:          req.Unit,
		Supplier:      req.Supplier,
		Notes:         req.Notes,
		LowStockAlert: req.LowStockAlert,
		CanSell:       req.CanSell,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMaterialDTO(m))
}

func (s *Server) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	var req struct {
		Quantity float64 `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	m, err := s.deps.Materials.SetQuantity(r.Context(), id, req.Quantity)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMaterialDTO(m))
}

func (s *Server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	if err := s.deps.Guard.CanDelete(r.Context(), refguard.KindMaterial, id); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.deps.Materials.Delete(r.Context(), id); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* Products and recipes */

type productDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind"`
	MaterialID  int64  `json:"material_id,omitempty"`
}

func toProductDTO(p *products.Product) productDTO {
	return productDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Kind:        string(p.Kind),
		MaterialID:  p.OutputMaterialID,
	}
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	kind := products.Kind(r.URL.Query().Get("kind"))
	if kind != "" && kind != products.KindProduct && kind != products.KindCombo {
		badRequest(w, "kind must be product or combo")
		return
	}
	list, err := s.deps.Products.List(r.Context(), kind)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]productDTO, 0, len(list))
	for i := range list {
		out = append(out, toProductDTO(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Kind        string `json:"kind"`
		MaterialID  int64  `json:"material_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	kind := products.Kind(req.Kind)
	if kind == "" {
		kind = products.KindProduct
	}
	if kind != products.KindProduct && kind != products.KindCombo {
		badRequest(w, "kind must be product or combo")
		return
	}

	p, err := s.deps.Products.Create(r.Context(), req.Name, req.Description, kind, req.MaterialID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	if err := s.deps.Guard.CanDelete(r.Context(), refguard.KindProduct, id); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.deps.Products.Delete(r.Context(), id); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recipeEntryDTO struct {
	MaterialID       int64   `json:"material_id"`
	QuantityRequired float64 `json:"quantity_required"`
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	recipe, err := s.deps.Products.GetRecipe(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]recipeEntryDTO, 0, len(recipe))
	for _, e := range recipe {
		out = append(out, recipeEntryDTO{MaterialID: e.MaterialID, QuantityRequired: e.QuantityRequired})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	var req []recipeEntryDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	entries := make([]products.RecipeEntry, 0, len(req))
	for _, e := range req {
		entries = append(entries, products.RecipeEntry{
			MaterialID:       e.MaterialID,
			QuantityRequired: e.QuantityRequired,
		})
	}

	if err := s.deps.Products.SetRecipe(r.Context(), id, entries); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetOutputMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	var req struct {
		MaterialID int64 `json:"material_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	p, err := s.deps.Products.SetOutputMaterial(r.Context(), id, req.MaterialID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

/* Sales */

type saleItemDTO struct {
	MaterialID int64   `json:"material_id"`
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
}

type saleDTO struct {
	ID          int64         `json:"id"`
	SaleDate    string        `json:"sale_date"`
	OrderNumber string        `json:"order_number"`
	Customer    string        `json:"customer,omitempty"`
	SalesAmount float64       `json:"sales_amount"`
	Receiver    string        `json:"receiver,omitempty"`
	ShippingFee float64       `json:"shipping_fee"`
	HandlingFee float64       `json:"handling_fee"`
	Income      float64       `json:"income"`
	Notes       string        `json:"notes,omitempty"`
	Items       []saleItemDTO `json:"items"`
}

func toSaleDTO(rec *sales.Record) saleDTO {
	items := make([]saleItemDTO, 0, len(rec.Items))
	for _, it := range rec.Items {
		items = append(items, saleItemDTO{MaterialID: it.MaterialID, Name: it.Name, Quantity: it.Quantity})
	}
	return saleDTO{
		ID:          rec.ID,
		SaleDate:    rec.SaleDate.Format(dateLayout),
		OrderNumber: rec.OrderNumber,
		Customer:    rec.Customer,
		SalesAmount: rec.SalesAmount,
		Receiver:    rec.Receiver,
		ShippingFee: rec.ShippingFee,
		HandlingFee: rec.HandlingFee,
		Income:      rec.Income,
		Notes:       rec.Notes,
		Items:       items,
	}
}

func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Sales.List(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]saleDTO, 0, len(list))
	for i := range list {
		out = append(out, toSaleDTO(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req saleDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	saleDate, err := time.Parse(dateLayout, req.SaleDate)
	if err != nil {
		badRequest(w, "sale_date must be YYYY-MM-DD")
		return
	}
	if req.OrderNumber == "" {
		badRequest(w, "order_number is required")
		return
	}

	rec := sales.Record{
		SaleDate:    saleDate,
		OrderNumber: req.OrderNumber,
		Customer:    req.Customer,
		SalesAmount: req.SalesAmount,
		Receiver:    req.Receiver,
		ShippingFee: req.ShippingFee,
		HandlingFee: req.HandlingFee,
		Income:      req.Income,
		Notes:       req.Notes,
	}
	for _, it := range req.Items {
		rec.Items = append(rec.Items, sales.Item{MaterialID: it.MaterialID, Name: it.Name, Quantity: it.Quantity})
	}

	created, err := s.deps.Sales.Create(r.Context(), rec)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(created))
}

func (s *Server) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	if err := s.deps.Sales.Delete(r.Context(), id); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* Purchases */

type purchaseDTO struct {
	ID            int64   `json:"id"`
	PurchaseDate  string  `json:"purchase_date"`
	InvoiceNumber string  `json:"invoice_number"`
	MaterialID    int64   `json:"material_id,omitempty"`
	Name          string  `json:"name"`
	Specification string  `json:"specification,omitempty"`
	Description   string  `json:"description,omitempty"`
	Quantity      float64 `json:"quantity"`
	Seller        string  `json:"seller,omitempty"`
	Payer         string  `json:"payer,omitempty"`
	Amount        float64 `json:"amount"`
}

func toPurchaseDTO(rec *purchases.Record) purchaseDTO {
	return purchaseDTO{
		ID:            rec.ID,
		PurchaseDate:  rec.PurchaseDate.Format(dateLayout),
		InvoiceNumber: rec.InvoiceNumber,
		MaterialID:    rec.MaterialID,
		Name:          rec.Name,
		Specification: rec.Specification,
		Description:   rec.Description,
		Quantity:      rec.Quantity,
		Seller:        rec.Seller,
		Payer:         rec.Payer,
		Amount:        rec.Amount,
	}
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Purchases.List(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]purchaseDTO, 0, len(list))
	for i := range list {
		out = append(out, toPurchaseDTO(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	purchaseDate, err := time.Parse(dateLayout, req.PurchaseDate)
	if err != nil {
		badRequest(w, "purchase_date must be YYYY-MM-DD")
		return
	}
	if req.InvoiceNumber == "" || req.Name == "" {
		badRequest(w, "invoice_number and name are required")
		return
	}

	created, err := s.deps.Purchases.Create(r.Context(), purchases.Record{
		PurchaseDate:  purchaseDate,
		InvoiceNumber: req.InvoiceNumber,
		MaterialID:    req.MaterialID,
		Name:          req.Name,
		Specification: req.Specification,
		Description:   req.Description,
		Quantity:      req.Quantity,
		Seller:        req.Seller,
		Payer:         req.Payer,
		Amount:        req.Amount,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseDTO(created))
}

func (s *Server) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	if err := s.deps.Purchases.Delete(r.Context(), id); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* Shipment combos */

type comboItemDTO struct {
	ProductID        int64   `json:"product_id,omitempty"`
	MaterialID       int64   `json:"material_id,omitempty"`
	QuantityRequired float64 `json:"quantity_required"`
}

type comboDTO struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Items       []comboItemDTO `json:"items"`
}

func toComboDTO(c *combos.Combo) comboDTO {
	items := make([]comboItemDTO, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, comboItemDTO{
			ProductID:        it.ProductID,
			MaterialID:       it.MaterialID,
			QuantityRequired: it.QuantityRequired,
		})
	}
	return comboDTO{ID: c.ID, Name: c.Name, Description: c.Description, Items: items}
}

func (s *Server) handleListCombos(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Combos.List(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]comboDTO, 0, len(list))
	for i := range list {
		out = append(out, toComboDTO(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCombo(w http.ResponseWriter, r *http.Request) {
	var req comboDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	items := make([]combos.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, combos.Item{
			ProductID:        it.ProductID,
			MaterialID:       it.MaterialID,
			QuantityRequired: it.QuantityRequired,
		})
	}

	created, err := s.deps.Combos.Create(r.Context(), req.Name, req.Description, items)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toComboDTO(created))
}

func (s *Server) handleDeleteCombo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	if err := s.deps.Combos.Delete(r.Context(), id); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
