package editor

import (
	"facility-map/internal/mapeditor/geometry"
	"facility-map/internal/mapeditor/interaction"
	"facility-map/internal/mapeditor/models"
	"facility-map/internal/mapeditor/render"
	"facility-map/internal/mapeditor/viewport"
)

// State содержит снимок редактора для клиента.
type State struct {
	User      User               `json:"user"`
	Tool      interaction.Tool   `json:"tool"`
	Placing   bool               `json:"placing"`
	Selected  string             `json:"selected,omitempty"`
	Viewing   string             `json:"viewing,omitempty"`
	FormOpen  bool               `json:"form_open"`
	Image     geometry.Size      `json:"image"`
	Stage     geometry.Size      `json:"stage"`
	Fit       geometry.Fit       `json:"fit"`
	Viewport  viewport.Transform `json:"viewport"`
	Live      viewport.Transform `json:"live"`
	InGesture bool               `json:"in_gesture"`
	Boxes     []models.Box       `json:"boxes"`
	Nodes     []render.Node      `json:"nodes"`
	Pending   []string           `json:"pending"`
	Flashing  []string           `json:"flashing"`
}

// Scene возвращает сцену для отрисовки текущего состояния.
func (e *Editor) Scene() *render.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene()
}

func (e *Editor) scene() *render.Scene {
	flashing := make(map[string]bool)
	for _, id := range e.flash.ActiveIDs() {
		flashing[id] = true
	}
	boxes := make([]models.Box, len(e.boxes))
	for i, b := range e.boxes {
		boxes[i] = b.Clone()
	}
	return &render.Scene{
		Width:    e.image.Width,
		Height:   e.image.Height,
		Boxes:    boxes,
		Selected: e.selected,
		Viewing:  e.viewing,
		Flashing: flashing,
	}
}

func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	scene := e.scene()
	pending := e.session.IDs()
	flashing := e.flash.ActiveIDs()
	if flashing == nil {
		flashing = []string{}
	}

	return State{
		User:      e.user,
		Tool:      e.tool,
		Placing:   e.placing,
		Selected:  e.selected,
		Viewing:   e.viewing,
		FormOpen:  e.formOpen,
		Image:     e.image,
		Stage:     e.stage,
		Fit:       geometry.FitScale(e.stage, e.image),
		Viewport:  e.view.Transform(),
		Live:      e.view.Live(),
		InGesture: e.view.InGesture(),
		Boxes:     scene.Boxes,
		Nodes:     scene.Nodes(render.ApproxMeasure),
		Pending:   pending,
		Flashing:  flashing,
	}
}
