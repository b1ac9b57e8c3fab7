package ratelimit

import "context"

// Gate bounds the number of in-flight calls to one backend. A nil Gate admits
// everything.
type Gate struct {
	slots chan struct{}
}

// NewGate returns nil when max is not positive.
func NewGate(max int) *Gate {
	if max <= 0 {
		return nil
	}
	return &Gate{slots: make(chan struct{}, max)}
}

// Acquire takes a slot or returns ctx's error.
func (g *Gate) Acquire(ctx context.Context) error {
	if g == nil {
		return nil
	}
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) Release() {
	if g == nil {
		return
	}
	<-g.slots
}
