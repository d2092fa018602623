package production

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/Spok95/workshop-stock/internal/domain/products"
	"github.com/Spok95/workshop-stock/internal/infra/metrics"
)

// MaterialState — имя и остаток заблокированной строки материала.
type MaterialState struct {
	Name     string
	Quantity float64
}

// Tx — операции, доступные внутри одной производственной транзакции.
// Блокировки, взятые LockMaterials, держатся до конца транзакции.
type Tx interface {
	Product(ctx context.Context, productID int64) (*products.Product, error)
	Recipe(ctx context.Context, productID int64) ([]products.RecipeEntry, error)
	LockMaterials(ctx context.Context, ids []int64) (map[int64]MaterialState, error)
	ApplyDelta(ctx context.Context, materialID int64, delta float64) error
}

// Store исполняет fn в одной транзакции: либо все изменения фиксируются,
// либо ни одно.
type Store interface {
	Run(ctx context.Context, fn func(tx Tx) error) error
}

type Result struct {
	ProductID        int64
	Quantity         int64
	OutputMaterialID int64
	OutputQuantity   float64 // остаток выходного материала после зачисления
}

type Engine struct {
	store      Store
	log        *slog.Logger
	maxRetries uint64
}

func NewEngine(store Store, log *slog.Logger, maxRetries int) *Engine {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Engine{store: store, log: log, maxRetries: uint64(maxRetries)}
}

// Produce списывает материалы рецепта и зачисляет выходной материал как одну
// атомарную операцию. Проверки идут по порядку, падает первая нарушенная;
// при любом отказе остатки не меняются.
func (e *Engine) Produce(ctx context.Context, productID, quantity int64) (Result, error) {
	if quantity <= 0 {
		metrics.ProduceRuns.WithLabelValues("invalid_argument").Inc()
		return Result{}, ErrInvalidQuantity
	}

	var res Result
	b := retry.NewFibonacci(10 * time.Millisecond)
	err := retry.Do(ctx, retry.WithMaxRetries(e.maxRetries, b), func(ctx context.Context) error {
		err := e.store.Run(ctx, func(tx Tx) error {
			r, err := e.produceTx(ctx, tx, productID, quantity)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
		if errors.Is(err, ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		e.log.Warn("produce failed", "product_id", productID, "quantity", quantity, "err", err)
		metrics.ProduceRuns.WithLabelValues(outcomeLabel(err)).Inc()
		return Result{}, err
	}

	e.log.Info("produced", "product_id", productID, "quantity", quantity,
		"output_material_id", res.OutputMaterialID)
	metrics.ProduceRuns.WithLabelValues("success").Inc()
	metrics.ProducedUnits.Add(float64(quantity))
	return res, nil
}

func (e *Engine) produceTx(ctx context.Context, tx Tx, productID, quantity int64) (Result, error) {
	p, err := tx.Product(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	if p.Kind != products.KindProduct {
		return Result{}, ErrNotProducible
	}
	if p.OutputMaterialID == 0 {
		return Result{}, ErrNoOutputMaterial
	}

	recipe, err := tx.Recipe(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	if len(recipe) == 0 {
		return Result{}, ErrNoRecipe
	}

	// Блокируем все затронутые строки в порядке возрастания id, чтобы
	// встречные запуски не взяли их в обратном порядке.
	ids := make([]int64, 0, len(recipe)+1)
	for _, entry := range recipe {
		ids = append(ids, entry.MaterialID)
	}
	if !containsID(ids, p.OutputMaterialID) {
		ids = append(ids, p.OutputMaterialID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked, err := tx.LockMaterials(ctx, ids)
	if err != nil {
		return Result{}, err
	}
	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return Result{}, ErrMaterialNotFound
		}
	}

	// Дефицит считаем полностью: в ошибке должны быть все нехватающие
	// материалы, а не первый попавшийся.
	var short []string
	for _, entry := range recipe {
		need := entry.QuantityRequired * float64(quantity)
		if locked[entry.MaterialID].Quantity < need {
			short = append(short, locked[entry.MaterialID].Name)
		}
	}
	if len(short) > 0 {
		return Result{}, &InsufficientStockError{Materials: short}
	}

	outputDelta := float64(quantity)
	for _, entry := range recipe {
		need := entry.QuantityRequired * float64(quantity)
		if err := tx.ApplyDelta(ctx, entry.MaterialID, -need); err != nil {
			return Result{}, err
		}
		if entry.MaterialID == p.OutputMaterialID {
			// Старые рецепты могли ссылаться на собственный выход.
			outputDelta -= need
		}
	}
	if err := tx.ApplyDelta(ctx, p.OutputMaterialID, float64(quantity)); err != nil {
		return Result{}, err
	}

	return Result{
		ProductID:        productID,
		Quantity:         quantity,
		OutputMaterialID: p.OutputMaterialID,
		OutputQuantity:   locked[p.OutputMaterialID].Quantity + outputDelta,
	}, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func outcomeLabel(err error) string {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		return "insufficient_stock"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrMaterialNotFound):
		return "not_found"
	case errors.Is(err, ErrNotProducible), errors.Is(err, ErrNoOutputMaterial), errors.Is(err, ErrNoRecipe):
		return "unconfigured"
	default:
		return "error"
	}
}
