package signal

import (
	"time"

	"github.com/dkeye/Quiz/internal/app"
	"github.com/dkeye/Quiz/internal/core"
	"github.com/dkeye/Quiz/internal/domain"
	"github.com/dkeye/Quiz/internal/protocol"
	"github.com/rs/zerolog/log"
)

// GameRouter is the game loop as seen by a connection.
type GameRouter interface {
	Connect(c core.Client, username string)
	Disconnect(id domain.ClientID)
	Answer(id domain.ClientID, choice int, elapsed float64)
	AddTracks(id domain.ClientID, tracks []domain.Track)
}

type Options struct {
	SendBuffer int
	ReadLimit  int64
	PingPeriod time.Duration
}

// Controller runs the per-connection actors of both transports and turns
// decoded client messages into game loop calls.
type Controller struct {
	Game     GameRouter
	Registry *app.Registry
	Limiter  *RateLimiter
	Opts     Options
}

func NewController(game GameRouter, reg *app.Registry, limiter *RateLimiter, opts Options) *Controller {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 32768
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	return &Controller{
		Game:     game,
		Registry: reg,
		Limiter:  limiter,
		Opts:     opts,
	}
}

func (ctl *Controller) handleMessage(c *Conn, data []byte) {
	if ctl.Limiter != nil && !ctl.Limiter.Allow(c.ID()) {
		log.Warn().Str("module", "signal").Str("client", string(c.ID())).Msg("rate limited")
		ctl.sendError(c, "rate_limited")
		return
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("client", string(c.ID())).Msg("protocol violation")
		ctl.sendError(c, err.Error())
		return
	}

	switch m := msg.(type) {
	case protocol.Connect:
		ctl.handleConnect(c, m)
	case protocol.AddTracks:
		if !ctl.connected(c) {
			ctl.sendError(c, "not_connected")
			return
		}
		ctl.Game.AddTracks(c.ID(), m.Tracks)
	case protocol.Answer:
		if !ctl.connected(c) {
			ctl.sendError(c, "not_connected")
			return
		}
		ctl.Game.Answer(c.ID(), m.Choice, m.Elapsed)
	default:
		log.Warn().Str("module", "signal").Str("client", string(c.ID())).Msgf("unhandled message %T", m)
	}
}

func (ctl *Controller) handleConnect(c *Conn, m protocol.Connect) {
	player, err := domain.NewPlayer(c.ID(), m.Username)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("client", string(c.ID())).Msg("bad username")
		ctl.sendError(c, "invalid_username: "+err.Error())
		return
	}
	ctl.Registry.UpdateUsername(c.ID(), player.Username)
	log.Info().Str("module", "signal").Str("client", string(c.ID())).Str("username", player.Username).Msg("connect")
	ctl.Game.Connect(c, player.Username)
}

func (ctl *Controller) connected(c *Conn) bool {
	_, ok := ctl.Registry.Username(c.ID())
	return ok
}

func (ctl *Controller) sendError(c *Conn, reason string) {
	if err := c.Send(protocol.Error{Reason: reason}); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("client", string(c.ID())).Msg("error reply dropped")
	}
}

// register binds a fresh connection; the returned func must run exactly once
// when its read pump exits.
func (ctl *Controller) register(c *Conn, cancel func()) func() {
	ctl.Registry.Bind(c.ID(), cancel)
	return func() {
		ctl.Game.Disconnect(c.ID())
		ctl.Registry.Unbind(c.ID())
		if ctl.Limiter != nil {
			ctl.Limiter.Forget(c.ID())
		}
		cancel()
		c.Close()
	}
}
