package interaction

import (
	"sort"
	"sync"
	"time"
)

// FlashDuration задаёт длительность анимации появления новой коробки.
const FlashDuration = 600 * time.Millisecond

// Flash хранит флаги анимации появления по id коробки.
type Flash struct {
	mu      sync.Mutex
	now     func() time.Time
	started map[string]time.Time
}

func NewFlash(now func() time.Time) *Flash {
	if now == nil {
		now = time.Now
	}
	return &Flash{now: now, started: make(map[string]time.Time)}
}

func (f *Flash) Start(boxID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started[boxID] = f.now()
}

func (f *Flash) Active(boxID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.started[boxID]
	if !ok {
		return false
	}
	if f.now().Sub(t) >= FlashDuration {
		delete(f.started, boxID)
		return false
	}
	return true
}

// ActiveIDs возвращает отсортированные id с активной анимацией.
func (f *Flash) ActiveIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	var ids []string
	for id, t := range f.started {
		if now.Sub(t) >= FlashDuration {
			delete(f.started, id)
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
