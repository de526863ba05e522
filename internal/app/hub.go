package app

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/benbjohnson/clock"
	"github.com/dkeye/Quiz/internal/core"
	"github.com/dkeye/Quiz/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrHubStopped = errors.New("hub stopped")

type HubOptions struct {
	Rules     core.Rules
	Registry  *Registry
	Policy    Policy
	Publisher core.ResultPublisher
	// Clock and Rand default to the wall clock and a random seed.
	Clock     clock.Clock
	Rand      *rand.Rand
	QueueSize int
}

// Hub is the single event loop of the game server. Every Matchmaker and
// Session call happens inside Run, so the core needs no locks.
type Hub struct {
	events   chan func()
	done     chan struct{}
	mm       *core.Matchmaker
	registry *Registry
	policy   Policy
}

func NewHub(opts HubOptions) *Hub {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Policy == nil {
		opts.Policy = SimplePolicy{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}

	h := &Hub{
		events:   make(chan func(), opts.QueueSize),
		done:     make(chan struct{}),
		registry: opts.Registry,
		policy:   opts.Policy,
	}
	sched := &loopScheduler{clock: opts.Clock, post: h.post}
	h.mm = core.NewMatchmaker(func(id domain.GameID) *core.Session {
		return core.NewSession(id, opts.Rules, core.SessionDeps{
			Scheduler: sched,
			Rand:      opts.Rand,
			Publisher: opts.Publisher,
			OnDropped: h.onDropped,
		})
	})
	return h
}

// Run drains the event queue until ctx is done, then stops all game timers.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	log.Info().Str("module", "app.hub").Msg("game loop started")
	for {
		select {
		case <-ctx.Done():
			h.mm.Close()
			log.Info().Str("module", "app.hub").Msg("game loop stopped")
			return
		case fn := <-h.events:
			fn()
		}
	}
}

func (h *Hub) post(fn func()) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.events <- fn:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Connect(c core.Client, username string) {
	h.post(func() {
		game, err := h.mm.AddClient(c, username)
		if err != nil {
			log.Error().Err(err).Str("module", "app.hub").Str("client", string(c.ID())).Msg("cannot place client")
			return
		}
		log.Info().Str("module", "app.hub").Str("client", string(c.ID())).Str("username", username).Int("game", int(game)).Msg("client placed")
	})
}

func (h *Hub) Disconnect(id domain.ClientID) {
	h.post(func() { h.mm.RemoveClient(id) })
}

func (h *Hub) Answer(id domain.ClientID, choice int, elapsed float64) {
	h.post(func() { h.mm.RouteAnswer(id, choice, elapsed) })
}

func (h *Hub) AddTracks(id domain.ClientID, tracks []domain.Track) {
	h.post(func() { h.mm.RouteTracks(id, tracks) })
}

// Games returns a snapshot of every game, taken on the loop.
func (h *Hub) Games(ctx context.Context) ([]core.SessionInfo, error) {
	reply := make(chan []core.SessionInfo, 1)
	if !h.post(func() { reply <- h.mm.List() }) {
		return nil, ErrHubStopped
	}
	select {
	case games := <-reply:
		return games, nil
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Connections is the number of live transport connections.
func (h *Hub) Connections() int { return h.registry.Count() }

func (h *Hub) onDropped(game domain.GameID, c core.Client) {
	switch h.policy.OnBackPressure(game, c) {
	case KickMember:
		log.Warn().Str("module", "app.hub").Int("game", int(game)).Str("client", string(c.ID())).Msg("kicking slow client")
		h.registry.Cancel(c.ID())
	case NoAction:
	}
}
