package reservation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// MemoryStore keeps seat maps in process.  Each show has its own mutex,
// so unrelated shows never contend.  It backs tests and single-process
// deployments without MySQL.
type MemoryStore struct {
	mu    sync.RWMutex
	shows map[uint64]*memorySeatMap
}

type memorySeatMap struct {
	mu    sync.Mutex
	slots map[string]*model.SeatSlot
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{shows: make(map[uint64]*memorySeatMap)}
}

func (m *MemoryStore) seatMap(showID uint64) *memorySeatMap {
	m.mu.RLock()
	sm, ok := m.shows[showID]
	m.mu.RUnlock()
	if ok {
		return sm
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if sm, ok = m.shows[showID]; !ok {
		sm = &memorySeatMap{slots: make(map[string]*model.SeatSlot)}
		m.shows[showID] = sm
	}
	return sm
}

func (m *MemoryStore) EnsureSeats(_ context.Context, showID uint64, labels []string) error {
	sm := m.seatMap(showID)
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, l := range labels {
		if _, ok := sm.slots[l]; !ok {
			sm.slots[l] = &model.SeatSlot{ShowID: showID, Label: l, State: model.SeatFree}
		}
	}
	return nil
}

func (m *MemoryStore) Slots(_ context.Context, showID uint64, labels []string) ([]model.SeatSlot, error) {
	sm := m.seatMap(showID)
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make([]model.SeatSlot, 0, len(sm.slots))
	if len(labels) == 0 {
		for _, sl := range sm.slots {
			out = append(out, copySlot(sl))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
		return out, nil
	}
	for _, l := range labels {
		if sl, ok := sm.slots[l]; ok {
			out = append(out, copySlot(sl))
		}
	}
	return out, nil
}

func (m *MemoryStore) Hold(_ context.Context, showID uint64, labels []string, holder string, now, until time.Time) (bool, error) {
	sm := m.seatMap(showID)
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, l := range labels {
		sl, ok := sm.slots[l]
		if !ok {
			return false, nil
		}
		switch sl.EffectiveState(now) {
		case model.SeatFree:
		case model.SeatHeld:
			if sl.Holder != holder {
				return false, nil
			}
		default:
			return false, nil
		}
	}
	for _, l := range labels {
		sl := sm.slots[l]
		exp := until
		sl.State = model.SeatHeld
		sl.Holder = holder
		sl.HoldExpiresAt = &exp
		sl.BookingRef = ""
	}
	return true, nil
}

func (m *MemoryStore) Commit(_ context.Context, showID uint64, labels []string, holder, bookingRef string, now time.Time) (bool, error) {
	sm := m.seatMap(showID)
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, l := range labels {
		sl, ok := sm.slots[l]
		if !ok {
			return false, nil
		}
		if !sl.HeldBy(holder, now) && !(sl.State == model.SeatCommitted && sl.BookingRef == bookingRef) {
			return false, nil
		}
	}
	for _, l := range labels {
		sl := sm.slots[l]
		sl.State = model.SeatCommitted
		sl.Holder = ""
		sl.HoldExpiresAt = nil
		sl.BookingRef = bookingRef
	}
	return true, nil
}

func (m *MemoryStore) Release(_ context.Context, showID uint64, holder string) (int, error) {
	sm := m.seatMap(showID)
	sm.mu.Lock()
	defer sm.mu.Unlock()
	n := 0
	for _, sl := range sm.slots {
		if sl.State == model.SeatHeld && sl.Holder == holder {
			free(sl)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ReleaseExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.RLock()
	maps := make([]*memorySeatMap, 0, len(m.shows))
	for _, sm := range m.shows {
		maps = append(maps, sm)
	}
	m.mu.RUnlock()

	n := 0
	for _, sm := range maps {
		sm.mu.Lock()
		for _, sl := range sm.slots {
			if sl.State == model.SeatHeld && sl.EffectiveState(now) == model.SeatFree {
				free(sl)
				n++
			}
		}
		sm.mu.Unlock()
	}
	return n, nil
}

func free(sl *model.SeatSlot) {
	sl.State = model.SeatFree
	sl.Holder = ""
	sl.HoldExpiresAt = nil
}

func copySlot(sl *model.SeatSlot) model.SeatSlot {
	c := *sl
	if sl.HoldExpiresAt != nil {
		t := *sl.HoldExpiresAt
		c.HoldExpiresAt = &t
	}
	return c
}
