package interaction

import (
	"fmt"
	"sync"
	"time"
)

// ============================================================
// Tools & click handling
// ============================================================

type Tool string

const (
	ToolSelect Tool = "select"
	ToolEdit   Tool = "edit"
)

func ParseTool(s string) (Tool, error) {
	switch t := Tool(s); t {
	case ToolSelect, ToolEdit:
		return t, nil
	}
	return "", fmt.Errorf("unknown tool %q", s)
}

// DoubleClickWindow задаёт интервал, в который второй клик по той же коробке
// открывает форму редактирования.
const DoubleClickWindow = 300 * time.Millisecond

// Action говорит, что должен сделать редактор в ответ на клик.
type Action struct {
	OpenDetail   bool `json:"open_detail"`
	Select       bool `json:"select"`
	OpenEditForm bool `json:"open_edit_form"`
}

// Clicker ведёт машину состояний кликов по коробкам: {idle, awaiting-second-click}
// для каждого id. Таймеры принадлежат контроллеру, а не узлам сцены.
type Clicker struct {
	mu      sync.Mutex
	now     func() time.Time
	pending map[string]time.Time
}

func NewClicker(now func() time.Time) *Clicker {
	if now == nil {
		now = time.Now
	}
	return &Clicker{now: now, pending: make(map[string]time.Time)}
}

// Click регистрирует клик и возвращает действие.
//   - select: открыть карточку только для чтения;
//   - edit с правом редактирования: выделить и открыть в режиме правки;
//   - повторный клик в пределах окна: дополнительно открыть форму.
func (c *Clicker) Click(boxID string, tool Tool, canEdit bool) Action {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.expire(now)

	if tool != ToolEdit || !canEdit {
		delete(c.pending, boxID)
		return Action{OpenDetail: true}
	}

	act := Action{Select: true}
	if first, ok := c.pending[boxID]; ok && now.Sub(first) <= DoubleClickWindow {
		act.OpenEditForm = true
		delete(c.pending, boxID)
		return act
	}
	c.pending[boxID] = now
	return act
}

// Awaiting сообщает, ждёт ли коробка второго клика.
func (c *Clicker) Awaiting(boxID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expire(c.now())
	_, ok := c.pending[boxID]
	return ok
}

// Reset забывает все незавершённые двойные клики.
func (c *Clicker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.pending)
}

func (c *Clicker) expire(now time.Time) {
	for id, t := range c.pending {
		if now.Sub(t) > DoubleClickWindow {
			delete(c.pending, id)
		}
	}
}
