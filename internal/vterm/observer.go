package vterm

// SwitchObserver is notified after the active session changes.
type SwitchObserver interface {
	OnSwitch(active int)
}

// RenderObserver is notified after a session's content changes.
// Observers decide whether to redraw, typically only when id is active.
type RenderObserver interface {
	OnRender(id int)
}

// SwitchFunc adapts a function to SwitchObserver.
type SwitchFunc func(active int)

// OnSwitch calls f(active).
func (f SwitchFunc) OnSwitch(active int) { f(active) }

// RenderFunc adapts a function to RenderObserver.
type RenderFunc func(id int)

// OnRender calls f(id).
func (f RenderFunc) OnRender(id int) { f(id) }
