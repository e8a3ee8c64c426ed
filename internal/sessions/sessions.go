// Package sessions tracks the pool of MTProto session files and hands out
// the next one when the active account hits a long flood wait.
package sessions

import (
	"errors"
	"fmt"
	"sync"
)

// ErrExhausted is returned by Advance when every session has been used.
var ErrExhausted = errors.New("sessions: all sessions exhausted")

// Pool cycles through session files in the configured order. It is safe for
// concurrent use.
type Pool struct {
	mu    sync.Mutex
	paths []string
	index int
}

// NewPool builds a pool from the configured session file paths.
func NewPool(paths []string) (*Pool, error) {
	if len(paths) == 0 {
		return nil, errors.New("sessions: at least one session file is required")
	}
	for i, p := range paths {
		if p == "" {
			return nil, fmt.Errorf("sessions: path %d is empty", i)
		}
	}
	return &Pool{paths: paths}, nil
}

// Current returns the session file currently in use.
func (p *Pool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paths[p.index]
}

// Advance moves to the next session file and returns it. When the pool is
// exhausted it returns ErrExhausted and keeps the last session active.
func (p *Pool) Advance() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index+1 >= len(p.paths) {
		return "", ErrExhausted
	}
	p.index++
	return p.paths[p.index], nil
}

// Remaining reports how many unused sessions are left after the current
// one. The pool never rewinds: a flood limit on an earlier session outlives
// the run that hit it, so there is no point returning to it.
func (p *Pool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paths) - p.index - 1
}
