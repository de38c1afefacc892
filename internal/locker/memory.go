package locker

import (
	"context"
	"sort"
	"sync"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

type MemoryBoxes struct {
	mu    sync.RWMutex
	boxes map[int64]model.Box
}

func NewMemoryBoxes(boxes ...model.Box) *MemoryBoxes {
	m := &MemoryBoxes{boxes: make(map[int64]model.Box, len(boxes))}
	for _, b := range boxes {
		m.boxes[b.ID] = b
	}
	return m
}

func (m *MemoryBoxes) ListByLocker(_ context.Context, lockerID int64) ([]model.Box, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Box
	for _, b := range m.boxes {
		if b.LockerID == lockerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryBoxes) Get(_ context.Context, boxID int64) (model.Box, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.boxes[boxID]
	if !ok {
		return model.Box{}, apperr.ErrNotFound
	}
	return b, nil
}

func (m *MemoryBoxes) CompareAndSwap(_ context.Context, boxID int64, from, to Binding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.boxes[boxID]
	if !ok {
		return apperr.ErrNotFound
	}
	if bindingOf(b) != from {
		return ErrConflict
	}
	b.Status = to.Status
	b.OrderID = to.OrderID
	m.boxes[boxID] = b
	return nil
}
