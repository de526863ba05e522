package core

import (
	"errors"
	"fmt"

	"github.com/dkeye/Quiz/internal/domain"
	"github.com/rs/zerolog/log"
)

// SessionFactory builds a new game with the given id.
type SessionFactory func(id domain.GameID) *Session

// Matchmaker places connecting players into the first game with room and
// routes their later messages. Like Session it belongs to one event loop.
type Matchmaker struct {
	newSession SessionFactory
	sessions   []*Session
	clients    map[domain.ClientID]int
}

func NewMatchmaker(factory SessionFactory) *Matchmaker {
	return &Matchmaker{
		newSession: factory,
		clients:    make(map[domain.ClientID]int),
	}
}

// AddClient joins c to an open game, creating one when every game is full.
// A client that is already playing leaves its previous game first.
func (m *Matchmaker) AddClient(c Client, username string) (domain.GameID, error) {
	if _, ok := m.clients[c.ID()]; ok {
		m.RemoveClient(c.ID())
		log.Info().Str("module", "core.matchmaker").Str("client", string(c.ID())).Msg("client reconnected, left previous game")
	}

	for i, s := range m.sessions {
		if s.IsFull() {
			continue
		}
		err := s.AddClient(c, username)
		if err == nil {
			m.clients[c.ID()] = i
			return s.ID(), nil
		}
		if !errors.Is(err, ErrSessionFull) && !errors.Is(err, ErrSessionClosed) {
			return 0, err
		}
	}

	idx := len(m.sessions)
	s := m.newSession(domain.GameID(idx))
	m.sessions = append(m.sessions, s)
	log.Info().Str("module", "core.matchmaker").Int("game", idx).Msg("started new game")

	if err := s.AddClient(c, username); err != nil {
		return 0, fmt.Errorf("join new game %d: %w", idx, err)
	}
	m.clients[c.ID()] = idx
	return s.ID(), nil
}

// RemoveClient is a no-op for clients that never joined a game.
func (m *Matchmaker) RemoveClient(id domain.ClientID) {
	s, ok := m.SessionOf(id)
	if !ok {
		return
	}
	s.RemoveClient(id)
	delete(m.clients, id)
}

func (m *Matchmaker) RouteAnswer(id domain.ClientID, choice int, elapsed float64) {
	if s, ok := m.SessionOf(id); ok {
		s.ReceiveAnswer(id, choice, elapsed)
	}
}

func (m *Matchmaker) RouteTracks(id domain.ClientID, tracks []domain.Track) {
	if s, ok := m.SessionOf(id); ok {
		s.AddTracks(id, tracks)
	}
}

func (m *Matchmaker) SessionOf(id domain.ClientID) (*Session, bool) {
	idx, ok := m.clients[id]
	if !ok {
		return nil, false
	}
	return m.sessions[idx], true
}

// Session returns the game with the given id.
func (m *Matchmaker) Session(id domain.GameID) (*Session, bool) {
	if id < 0 || int(id) >= len(m.sessions) {
		return nil, false
	}
	return m.sessions[id], true
}

func (m *Matchmaker) Len() int { return len(m.sessions) }

func (m *Matchmaker) List() []SessionInfo {
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// Close stops every game timer.
func (m *Matchmaker) Close() {
	for _, s := range m.sessions {
		s.Close()
	}
}
