package production

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Spok95/workshop-stock/internal/domain/products"
)

type memMaterial struct {
	name string
	qty  float64
}

// memStore — Store в памяти для тестов движка. Мьютекс играет роль блокировок
// строк: Run исполняется целиком под ним, откат — восстановление снимка.
type memStore struct {
	mu        sync.Mutex
	products  map[int64]*products.Product
	recipes   map[int64][]products.RecipeEntry
	materials map[int64]*memMaterial

	conflicts int // сколько запусков Run завершить конфликтом
	failAfter int // >0: ApplyDelta падает после стольких успешных вызовов
}

func newMemStore() *memStore {
	return &memStore{
		products:  make(map[int64]*products.Product),
		recipes:   make(map[int64][]products.RecipeEntry),
		materials: make(map[int64]*memMaterial),
	}
}

func (s *memStore) Run(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflicts > 0 {
		s.conflicts--
		return fmt.Errorf("deadlock detected: %w", ErrConflict)
	}

	snapshot := make(map[int64]memMaterial, len(s.materials))
	for id, m := range s.materials {
		snapshot[id] = *m
	}

	if err := fn(&memTx{s: s}); err != nil {
		for id := range s.materials {
			v := snapshot[id]
			*s.materials[id] = v
		}
		return err
	}
	return nil
}

func (s *memStore) quantity(id int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.materials[id].qty
}

type memTx struct {
	s      *memStore
	deltas int
}

func (t *memTx) Product(_ context.Context, productID int64) (*products.Product, error) {
	p, ok := t.s.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) Recipe(_ context.Context, productID int64) ([]products.RecipeEntry, error) {
	return append([]products.RecipeEntry(nil), t.s.recipes[productID]...), nil
}

func (t *memTx) LockMaterials(_ context.Context, ids []int64) (map[int64]MaterialState, error) {
	out := make(map[int64]MaterialState, len(ids))
	for _, id := range ids {
		if m, ok := t.s.materials[id]; ok {
			out[id] = MaterialState{Name: m.name, Quantity: m.qty}
		}
	}
	return out, nil
}

func (t *memTx) ApplyDelta(_ context.Context, materialID int64, delta float64) error {
	t.deltas++
	if t.s.failAfter > 0 && t.deltas > t.s.failAfter {
		return errors.New("connection reset by peer")
	}
	m, ok := t.s.materials[materialID]
	if !ok {
		return ErrMaterialNotFound
	}
	m.qty += delta
	return nil
}
