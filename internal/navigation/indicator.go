package navigation

import "sync"

// Rotation is an indicator attitude in degrees.
type Rotation struct {
	Pitch float64
	Yaw   float64
	Roll  float64
}

// Indicator is a single-axis direction actuator driven by the relative
// bearing.
type Indicator interface {
	SetYaw(deg float64)
}

// Pointer is an Indicator that keeps its pitch and roll and only turns
// about the vertical axis.
type Pointer struct {
	mu  sync.RWMutex
	rot Rotation
}

// NewPointer returns a pointer with the given resting attitude.
func NewPointer(rest Rotation) *Pointer {
	return &Pointer{rot: rest}
}

func (p *Pointer) SetYaw(deg float64) {
	p.mu.Lock()
	p.rot.Yaw = deg
	p.mu.Unlock()
}

// Rotation returns the current attitude.
func (p *Pointer) Rotation() Rotation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rot
}

// AttachIndicator drives ind with the relative bearing of every output.
func (e *Engine) AttachIndicator(ind Indicator) (detach func()) {
	if out, ok := e.Output(); ok {
		ind.SetYaw(out.RelativeBearing)
	}
	return e.OnUpdated(func(o Output) { ind.SetYaw(o.RelativeBearing) })
}
