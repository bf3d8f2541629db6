package odds

import (
	"sync"
)

// Preference holds the selected display format and notifies subscribers when
// it changes. Subscribers are called synchronously, in subscription order,
// outside the lock.
type Preference struct {
	mu      sync.RWMutex
	current Format
	nextID  int
	subs    []subscriber
}

type subscriber struct {
	id int
	fn func(old, new Format)
}

// NewPreference creates a preference starting at f. An empty f means american.
func NewPreference(f Format) *Preference {
	if f == "" {
		f = FormatAmerican
	}
	return &Preference{current: f}
}

// Get returns the current format.
func (p *Preference) Get() Format {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Set changes the format. Subscribers are notified only if it changed.
func (p *Preference) Set(f Format) {
	p.mu.Lock()
	old := p.current
	if old == f {
		p.mu.Unlock()
		return
	}
	p.current = f
	subs := make([]subscriber, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, s := range subs {
		s.fn(old, f)
	}
}

// Subscribe registers fn for format changes and returns a function that
// removes it.
func (p *Preference) Subscribe(fn func(old, new Format)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.subs = append(p.subs, subscriber{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, s := range p.subs {
			if s.id == id {
				p.subs = append(p.subs[:i], p.subs[i+1:]...)
				return
			}
		}
	}
}
