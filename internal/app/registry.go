package app

import (
	"context"
	"sync"

	"github.com/dkeye/Quiz/internal/domain"
	"github.com/rs/zerolog/log"
)

type connEntry struct {
	Username string
	Cancel   context.CancelFunc
}

// Registry tracks live connections so the game loop can drop a client
// without touching transport resources itself.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ClientID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[domain.ClientID]*connEntry),
	}
}

func (r *Registry) Bind(id domain.ClientID, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("client", string(id)).Msg("bound connection")
}

func (r *Registry) UpdateUsername(id domain.ClientID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.Username = name
	}
}

func (r *Registry) Username(id domain.ClientID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.Username == "" {
		return "", false
	}
	return e.Username, true
}

func (r *Registry) Unbind(id domain.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("client", string(id)).Msg("unbind connection")
}

// Cancel tears down the connection of id. The transport reports the
// disconnect once its pumps exit.
func (r *Registry) Cancel(id domain.ClientID) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("client", string(id)).Msg("canceled connection")
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
