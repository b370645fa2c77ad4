package sink

import "sync/atomic"

// Switch is the process-wide delivery on/off control. It is safe to
// flip from any goroutine while batches are being processed; the
// delivery path reads it once per batch, so flipping it mid-batch does
// not abort a batch already in flight.
//
// The zero value is active.
type Switch struct {
	inactive atomic.Bool
}

// NewSwitch returns a switch in the given state.
func NewSwitch(active bool) *Switch {
	s := &Switch{}
	s.inactive.Store(!active)
	return s
}

func (s *Switch) SetActive()     { s.inactive.Store(false) }
func (s *Switch) SetInactive()   { s.inactive.Store(true) }
func (s *Switch) IsActive() bool { return !s.inactive.Load() }
