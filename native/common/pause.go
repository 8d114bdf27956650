package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrModulePaused is returned by mutating operations of a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module currently refuses mutations.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused when module is paused in p. A nil view
// never pauses.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" || !p.IsPaused(module) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrModulePaused, normalizeModule(module))
}

// PauseSet is an in-memory PauseView toggled by operators.
type PauseSet struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauseSet returns a pause set with the given modules paused.
func NewPauseSet(modules ...string) *PauseSet {
	p := &PauseSet{paused: make(map[string]bool)}
	for _, m := range modules {
		p.SetPaused(m, true)
	}
	return p
}

// IsPaused implements PauseView.
func (p *PauseSet) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[normalizeModule(module)]
}

// SetPaused pauses or resumes module.
func (p *PauseSet) SetPaused(module string, paused bool) {
	name := normalizeModule(module)
	if name == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if paused {
		p.paused[name] = true
		return
	}
	delete(p.paused, name)
}

// Paused lists the paused modules in lexical order.
func (p *PauseSet) Paused() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.paused))
	for m := range p.paused {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func normalizeModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}
