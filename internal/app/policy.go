package app

import "github.com/classline/classline/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	Disconnect
)

// Policy decides what happens to a connection whose send buffer overflowed
// during fan-out.
type Policy interface {
	OnBackpressure(id core.ConnID) BackpressureAction
}

// SimplePolicy drops the frame; a consumer slow for one frame is usually
// fine on the next.
type SimplePolicy struct{}

func (SimplePolicy) OnBackpressure(core.ConnID) BackpressureAction { return DropFrame }

// StrictPolicy disconnects slow consumers so one stalled socket cannot
// bleed buffers forever.
type StrictPolicy struct{}

func (StrictPolicy) OnBackpressure(core.ConnID) BackpressureAction { return Disconnect }
