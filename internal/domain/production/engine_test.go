package production

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/workshop-stock/internal/domain/products"
)

const (
	matM1     = int64(1)
	matM2     = int64(2)
	matOutput = int64(3)
	prodP1    = int64(10)
)

// Материалы M1 (100) и M2 (10), продукт P1 с рецептом 2×M1 + 3×M2 и выходным
// материалом matOutput.
func newFixture() *memStore {
	s := newMemStore()
	s.materials[matM1] = &memMaterial{name: "M1", qty: 100}
	s.materials[matM2] = &memMaterial{name: "M2", qty: 10}
	s.materials[matOutput] = &memMaterial{name: "P1 output", qty: 0}
	s.products[prodP1] = &products.Product{
		ID: prodP1, Name: "P1", Kind: products.KindProduct, OutputMaterialID: matOutput,
	}
	s.recipes[prodP1] = []products.RecipeEntry{
		{MaterialID: matM1, QuantityRequired: 2},
		{MaterialID: matM2, QuantityRequired: 3},
	}
	return s
}

func newEngine(s *memStore) *Engine {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(s, log, 3)
}

func TestProduceRejectsNonPositiveQuantity(t *testing.T) {
	e := newEngine(newFixture())

	for _, qty := range []int64{0, -1, -100} {
		_, err := e.Produce(context.Background(), prodP1, qty)
		assert.ErrorIs(t, err, ErrInvalidQuantity, "qty=%d", qty)
	}
}

func TestProduceUnknownProduct(t *testing.T) {
	e := newEngine(newFixture())

	_, err := e.Produce(context.Background(), 999, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProduceComboIsNotProducible(t *testing.T) {
	s := newFixture()
	s.products[20] = &products.Product{ID: 20, Name: "Gift set", Kind: products.KindCombo}

	_, err := newEngine(s).Produce(context.Background(), 20, 1)
	assert.ErrorIs(t, err, ErrNotProducible)
}

func TestProduceWithoutOutputMaterial(t *testing.T) {
	s := newFixture()
	s.products[prodP1].OutputMaterialID = 0

	_, err := newEngine(s).Produce(context.Background(), prodP1, 1)
	assert.ErrorIs(t, err, ErrNoOutputMaterial)
}

func TestProduceWithoutRecipe(t *testing.T) {
	s := newFixture()
	s.recipes[prodP1] = nil

	_, err := newEngine(s).Produce(context.Background(), prodP1, 1)
	assert.ErrorIs(t, err, ErrNoRecipe)
}

func TestProduceMissingRecipeMaterial(t *testing.T) {
	s := newFixture()
	delete(s.materials, matM2)

	_, err := newEngine(s).Produce(context.Background(), prodP1, 1)
	assert.ErrorIs(t, err, ErrMaterialNotFound)
}

func TestProduceInsufficientStock(t *testing.T) {
	s := newFixture()
	e := newEngine(s)

	// На 4 единицы нужно 8×M1 и 12×M2 — M2 не хватает.
	_, err := e.Produce(context.Background(), prodP1, 4)

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, []string{"M2"}, insufficient.Materials)

	// Ничего не списано.
	assert.Equal(t, 100.0, s.quantity(matM1))
	assert.Equal(t, 10.0, s.quantity(matM2))
	assert.Equal(t, 0.0, s.quantity(matOutput))
}

func TestProduceReportsAllDeficientMaterials(t *testing.T) {
	s := newFixture()
	s.materials[matM1].qty = 1
	s.materials[matM2].qty = 1

	_, err := newEngine(s).Produce(context.Background(), prodP1, 1)

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, []string{"M1", "M2"}, insufficient.Materials)
}

func TestProduceSuccess(t *testing.T) {
	s := newFixture()

	res, err := newEngine(s).Produce(context.Background(), prodP1, 3)
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Quantity)
	assert.Equal(t, matOutput, res.OutputMaterialID)
	assert.Equal(t, 3.0, res.OutputQuantity)

	assert.Equal(t, 94.0, s.quantity(matM1))
	assert.Equal(t, 1.0, s.quantity(matM2))
	assert.Equal(t, 3.0, s.quantity(matOutput))
}

func TestProduceRollsBackOnMidstreamFailure(t *testing.T) {
	s := newFixture()
	s.failAfter = 1 // первое списание проходит, второе падает

	_, err := newEngine(s).Produce(context.Background(), prodP1, 1)
	require.Error(t, err)

	// Частичного списания снаружи не видно.
	assert.Equal(t, 100.0, s.quantity(matM1))
	assert.Equal(t, 10.0, s.quantity(matM2))
	assert.Equal(t, 0.0, s.quantity(matOutput))
}

func TestProduceRetriesTransientConflict(t *testing.T) {
	s := newFixture()
	s.conflicts = 2

	res, err := newEngine(s).Produce(context.Background(), prodP1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Quantity)
	assert.Equal(t, 98.0, s.quantity(matM1))
}

func TestProduceConflictAfterRetriesExhausted(t *testing.T) {
	s := newFixture()
	s.conflicts = 100

	_, err := newEngine(s).Produce(context.Background(), prodP1, 1)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 100.0, s.quantity(matM1))
}

func TestProduceConcurrentCallsNeverOversell(t *testing.T) {
	s := newFixture()
	s.materials[matM2].qty = 3 // хватает ровно на один запуск (3×M2)
	e := newEngine(s)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Produce(context.Background(), prodP1, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				var insufficient *InsufficientStockError
				assert.True(t, errors.As(err, &insufficient) || errors.Is(err, ErrConflict),
					"unexpected failure: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0.0, s.quantity(matM2))
	assert.Equal(t, 1.0, s.quantity(matOutput))
}

func TestProduceLegacySelfConsumingRecipe(t *testing.T) {
	// Старые данные могли ссылаться на собственный выходной материал.
	s := newFixture()
	s.recipes[prodP1] = []products.RecipeEntry{
		{MaterialID: matM1, QuantityRequired: 2},
		{MaterialID: matOutput, QuantityRequired: 1},
	}
	s.materials[matOutput].qty = 5

	res, err := newEngine(s).Produce(context.Background(), prodP1, 2)
	require.NoError(t, err)

	assert.Equal(t, 96.0, s.quantity(matM1))
	// 5 - 1×2 + 2 = 5
	assert.Equal(t, 5.0, s.quantity(matOutput))
	assert.Equal(t, 5.0, res.OutputQuantity)
}
