package warehouses

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockmaster/stockmaster/internal/masterdata/shared"
	internalshared "github.com/stockmaster/stockmaster/internal/shared"
)

type memoryRepo struct {
	seq        int64
	warehouses map[int64]Warehouse
	referenced map[int64]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{warehouses: map[int64]Warehouse{}, referenced: map[int64]bool{}}
}

func (m *memoryRepo) List(_ context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	var out []Warehouse
	for _, w := range m.warehouses {
		if filters.Search != "" && !strings.Contains(w.Name, filters.Search) && !strings.Contains(w.Code, filters.Search) {
			continue
		}
		out = append(out, w)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Warehouse, error) {
	w, ok := m.warehouses[id]
	if !ok {
		return Warehouse{}, internalshared.ErrNotFound
	}
	return w, nil
}

func (m *memoryRepo) Create(_ context.Context, warehouse Warehouse) (Warehouse, error) {
	for _, existing := range m.warehouses {
		if existing.Code == warehouse.Code {
			return Warehouse{}, internalshared.ErrDuplicate
		}
	}
	m.seq++
	warehouse.ID = m.seq
	m.warehouses[warehouse.ID] = warehouse
	return warehouse, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, warehouse Warehouse) error {
	if _, ok := m.warehouses[id]; !ok {
		return internalshared.ErrNotFound
	}
	warehouse.ID = id
	m.warehouses[id] = warehouse
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.warehouses[id]; !ok {
		return internalshared.ErrNotFound
	}
	if m.referenced[id] {
		return internalshared.ErrInUse
	}
	delete(m.warehouses, id)
	return nil
}

func TestCreateValidatesFields(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), Warehouse{Code: "WH-1"})
	require.ErrorIs(t, err, internalshared.ErrValidation)

	_, err = svc.Create(context.Background(), Warehouse{Name: "Main"})
	require.ErrorIs(t, err, internalshared.ErrValidation)

	_, err = svc.Create(context.Background(), Warehouse{Name: strings.Repeat("x", 151), Code: "WH-1"})
	require.ErrorIs(t, err, internalshared.ErrValidation)

	created, err := svc.Create(context.Background(), Warehouse{Name: "Main", Code: "WH-1", IsActive: true})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), Warehouse{Name: "Main", Code: "WH-1"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Warehouse{Name: "Overflow", Code: "WH-1"})
	require.ErrorIs(t, err, internalshared.ErrDuplicate)
}

func TestUpdateUnknownWarehouse(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Update(context.Background(), 42, Warehouse{Name: "Main", Code: "WH-1"})
	require.ErrorIs(t, err, internalshared.ErrNotFound)

	_, err = svc.Update(context.Background(), 0, Warehouse{Name: "Main", Code: "WH-1"})
	require.ErrorIs(t, err, internalshared.ErrValidation)
}

func TestDeleteReferencedWarehouse(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), Warehouse{Name: "Main", Code: "WH-1"})
	require.NoError(t, err)
	repo.referenced[created.ID] = true

	require.ErrorIs(t, svc.Delete(context.Background(), created.ID), internalshared.ErrInUse)

	_, err = svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
}
