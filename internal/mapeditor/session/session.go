package session

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"facility-map/internal/mapeditor/models"
)

// ============================================================
// Edit Session
// ============================================================

// maxConcurrentUpdates ограничивает число одновременных запросов при Save.
const maxConcurrentUpdates = 8

// Updater принимает сохраняемые изменения (хранилище коробок).
type Updater interface {
	Update(ctx context.Context, id string, patch models.BoxPatch) error
}

type entry struct {
	original models.Box
	draft    models.BoxPatch
}

// Session копит несохранённые изменения коробок. Снимок исходного состояния
// снимается при первом изменении коробки и не перезаписывается до Save/Cancel.
type Session struct {
	touched map[string]*entry
	log     zerolog.Logger
}

func New(log zerolog.Logger) *Session {
	return &Session{
		touched: make(map[string]*entry),
		log:     log,
	}
}

// RecordChange запоминает снимок current (если его ещё нет), сливает patch в
// черновик и возвращает коробку с применёнными изменениями для оптимистичного показа.
func (s *Session) RecordChange(current models.Box, patch models.BoxPatch) models.Box {
	if patch.IsEmpty() {
		return current
	}
	e, ok := s.touched[current.ID]
	if !ok {
		e = &entry{original: current.Clone()}
		s.touched[current.ID] = e
	}
	e.draft = e.draft.Merge(patch)
	return patch.Apply(current)
}

func (s *Session) Has(id string) bool {
	_, ok := s.touched[id]
	return ok
}

func (s *Session) Len() int {
	return len(s.touched)
}

// IDs возвращает отсортированные id затронутых коробок.
func (s *Session) IDs() []string {
	ids := make([]string, 0, len(s.touched))
	for id := range s.touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Pending возвращает накопленные изменения по id.
func (s *Session) Pending() map[string]models.BoxPatch {
	out := make(map[string]models.BoxPatch, len(s.touched))
	for id, e := range s.touched {
		out[id] = models.BoxPatch{}.Merge(e.draft)
	}
	return out
}

// Snapshots возвращает исходные состояния коробок по id.
func (s *Session) Snapshots() map[string]models.Box {
	out := make(map[string]models.Box, len(s.touched))
	for id, e := range s.touched {
		out[id] = e.original.Clone()
	}
	return out
}

// Snapshot возвращает исходное состояние одной коробки.
func (s *Session) Snapshot(id string) (models.Box, bool) {
	e, ok := s.touched[id]
	if !ok {
		return models.Box{}, false
	}
	return e.original.Clone(), true
}

// Failure описывает неудавшееся обновление одной коробки.
type Failure struct {
	ID       string
	Err      error
	Original models.Box
}

// SaveReport содержит итог Save.
type SaveReport struct {
	Saved  []string
	Failed []Failure
}

// Save отправляет каждое изменение отдельным Update, параллельно и без порядка
// между коробками. Ошибки логируются и попадают в отчёт; после завершения всех
// запросов сессия очищается независимо от их исхода.
func (s *Session) Save(ctx context.Context, u Updater) SaveReport {
	var (
		mu     sync.Mutex
		report SaveReport
		g      errgroup.Group
	)
	g.SetLimit(maxConcurrentUpdates)

	for _, id := range s.IDs() {
		e := s.touched[id]
		if e.draft.IsEmpty() {
			continue
		}
		g.Go(func() error {
			err := u.Update(ctx, id, e.draft)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Error().Err(err).Str("box_id", id).Strs("fields", e.draft.Fields()).Msg("save box")
				report.Failed = append(report.Failed, Failure{ID: id, Err: err, Original: e.original.Clone()})
				return nil
			}
			report.Saved = append(report.Saved, id)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Saved)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].ID < report.Failed[j].ID })

	s.clear()
	return report
}

// Cancel возвращает снимки для восстановления и очищает сессию. Сетевых вызовов нет.
func (s *Session) Cancel() []models.Box {
	out := s.collect(func(string) bool { return true })
	s.clear()
	return out
}

// RevertOthers возвращает снимки всех затронутых коробок, кроме keepID, и
// удаляет их из сессии.
func (s *Session) RevertOthers(keepID string) []models.Box {
	out := s.collect(func(id string) bool { return id != keepID })
	for _, b := range out {
		delete(s.touched, b.ID)
	}
	return out
}

// Discard забывает изменения одной коробки без восстановления.
func (s *Session) Discard(id string) {
	delete(s.touched, id)
}

func (s *Session) collect(keep func(string) bool) []models.Box {
	var out []models.Box
	for _, id := range s.IDs() {
		if keep(id) {
			out = append(out, s.touched[id].original.Clone())
		}
	}
	return out
}

func (s *Session) clear() {
	s.touched = make(map[string]*entry)
}
