package editor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ============================================================
// Editor Registry
// ============================================================

// Factory создаёт редактор для нового клиента.
type Factory func(user User) *Editor

type registryEntry struct {
	editor   *Editor
	lastUsed time.Time
}

// Registry держит редакторы по токену сессии и выселяет простаивающие.
type Registry struct {
	mu      sync.Mutex
	editors map[string]*registryEntry
	factory Factory
	ttl     time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

func NewRegistry(factory Factory, ttl time.Duration, now func() time.Time, log zerolog.Logger) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		editors: make(map[string]*registryEntry),
		factory: factory,
		ttl:     ttl,
		now:     now,
		log:     log,
	}
}

// Acquire возвращает редактор клиента, создавая его при первом обращении.
// Права пользователя обновляются при каждом обращении. created сообщает,
// что редактор новый и его нужно загрузить.
func (r *Registry) Acquire(token string, user User) (ed *Editor, created bool) {
	r.mu.Lock()
	if e, ok := r.editors[token]; ok {
		e.lastUsed = r.now()
		r.mu.Unlock()

		// SetUser вне блокировки реестра: редактор держит свой мьютекс на время Save.
		e.editor.SetUser(user)
		return e.editor, false
	}
	defer r.mu.Unlock()

	ed = r.factory(user)
	r.editors[token] = &registryEntry{editor: ed, lastUsed: r.now()}
	r.log.Debug().Str("user_id", user.ID).Msg("editor created")
	return ed, true
}

// Drop забывает редактор клиента (например, при выходе).
func (r *Registry) Drop(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.editors, token)
}

// Each вызывает fn для каждого живого редактора вне блокировки реестра.
func (r *Registry) Each(fn func(*Editor)) {
	r.mu.Lock()
	editors := make([]*Editor, 0, len(r.editors))
	for _, e := range r.editors {
		editors = append(editors, e.editor)
	}
	r.mu.Unlock()

	for _, ed := range editors {
		fn(ed)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.editors)
}

// Sweep удаляет редакторы, не использовавшиеся дольше ttl. Несохранённые
// изменения выселенных редакторов теряются, как при закрытии вкладки.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ttl <= 0 {
		return 0
	}
	now := r.now()
	evicted := 0
	for token, e := range r.editors {
		if now.Sub(e.lastUsed) > r.ttl {
			delete(r.editors, token)
			evicted++
		}
	}
	if evicted > 0 {
		r.log.Info().Int("evicted", evicted).Msg("idle editors evicted")
	}
	return evicted
}

// Run периодически вызывает Sweep до отмены ctx.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
