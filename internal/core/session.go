package core

import (
	"errors"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/dkeye/Quiz/internal/domain"
	"github.com/dkeye/Quiz/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionFull   = errors.New("session full")
	ErrSessionClosed = errors.New("session closed")
)

// SessionDeps are the collaborators a Session needs. Scheduler and Rand are
// required.
type SessionDeps struct {
	Scheduler Scheduler
	Rand      *rand.Rand
	Publisher ResultPublisher
	// OnDropped is called for every client a broadcast could not reach.
	// It must not call back into the session synchronously.
	OnDropped func(domain.GameID, Client)
}

// Session is one running game. It is not safe for concurrent use: every
// method, including scheduled callbacks, must run on the owning event loop.
type Session struct {
	id     domain.GameID
	rules  Rules
	logger zerolog.Logger
	deps   SessionDeps

	active     []Client
	pending    []Client
	usernames  map[domain.ClientID]string
	scoreboard []domain.ScoreEntry
	round      int

	pool   *TrackPool
	scorer Scorer

	phase   domain.Phase
	choices []domain.Track
	correct int
	answers []domain.Answer

	timer    Timer
	timerGen uint64
	closed   bool
}

// NewSession creates a game and enters the initial intermission, which keeps
// retrying to start a round until enough players and tracks are present.
func NewSession(id domain.GameID, rules Rules, deps SessionDeps) *Session {
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}
	s := &Session{
		id:        id,
		rules:     rules,
		logger:    log.With().Str("module", "core.session").Int("game", int(id)).Logger(),
		deps:      deps,
		usernames: make(map[domain.ClientID]string),
		pool:      NewTrackPool(rules.Alternatives, deps.Rand),
		scorer:    NewScorer(rules.Points),
		phase:     domain.Intermission,
		correct:   -1,
	}
	s.Intermission(rules.IntermissionTimeout)
	return s
}

func (s *Session) ID() domain.GameID { return s.id }

func (s *Session) Phase() domain.Phase { return s.phase }

func (s *Session) Round() int { return s.round }

func (s *Session) PlayerCount() int { return len(s.active) + len(s.pending) }

func (s *Session) IsFull() bool { return s.PlayerCount() >= s.rules.MaxPlayers }

func (s *Session) EnoughPlayers() bool { return len(s.active) >= s.rules.MinPlayers }

func (s *Session) EnoughTracks() bool { return s.pool.Enough() }

func (s *Session) CanStart() bool {
	return s.EnoughPlayers() && s.EnoughTracks() && s.phase != domain.Running
}

// Scoreboard returns every scoring event in order, one row per event.
func (s *Session) Scoreboard() []domain.ScoreEntry { return slices.Clone(s.scoreboard) }

// AddClient joins a player. During a running round the player waits until
// the next round starts.
func (s *Session) AddClient(c Client, username string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.IsFull() {
		return ErrSessionFull
	}
	s.usernames[c.ID()] = username

	if s.phase == domain.Running {
		s.pending = append(s.pending, c)
		s.logger.Info().Str("username", username).Int("round", s.round).Msg("round running, player waits for next round")
		return nil
	}

	s.active = append(s.active, c)
	s.logger.Info().Str("username", username).Int("players", len(s.active)).Msg("player joined")
	if s.CanStart() {
		s.StartRound()
	}
	return nil
}

// RemoveClient drops a player together with every score row of its
// username. Returns false if the client was not part of this game.
func (s *Session) RemoveClient(id domain.ClientID) bool {
	username, ok := s.usernames[id]
	if !ok {
		return false
	}
	delete(s.usernames, id)
	s.active = slices.DeleteFunc(s.active, func(c Client) bool { return c.ID() == id })
	s.pending = slices.DeleteFunc(s.pending, func(c Client) bool { return c.ID() == id })
	s.scoreboard = slices.DeleteFunc(s.scoreboard, func(e domain.ScoreEntry) bool { return e.Username == username })

	s.logger.Info().Str("username", username).Int("players", s.PlayerCount()).Msg("player left")

	if s.phase != domain.Running {
		return true
	}
	if !s.usernameActive(username) {
		s.answers = slices.DeleteFunc(s.answers, func(a domain.Answer) bool { return a.Username == username })
	}
	switch {
	case !s.EnoughPlayers():
		s.logger.Info().Int("round", s.round).Str("username", username).Msg("round ended, not enough players")
		s.EndRound()
	case len(s.answers) >= len(s.active):
		s.logger.Info().Int("round", s.round).Msg("remaining players have answered")
		s.EndRound()
	}
	return true
}

// AddTracks merges tracks reported by a member into the pool.
func (s *Session) AddTracks(id domain.ClientID, tracks []domain.Track) int {
	added := s.pool.AddTracks(tracks)
	s.logger.Debug().
		Str("username", s.usernames[id]).
		Int("reported", len(tracks)).
		Int("added", added).
		Int("pool", s.pool.Len()).
		Msg("tracks added")
	return added
}

// ReceiveAnswer records the first answer of an active player for the running
// round. The round ends as soon as every active player has answered.
func (s *Session) ReceiveAnswer(id domain.ClientID, choice int, elapsed float64) {
	if s.phase != domain.Running {
		return
	}
	if !s.isActive(id) {
		s.logger.Debug().Str("client", string(id)).Msg("answer from inactive client ignored")
		return
	}
	username := s.usernames[id]
	if slices.ContainsFunc(s.answers, func(a domain.Answer) bool { return a.Username == username }) {
		return
	}
	s.answers = append(s.answers, domain.Answer{Username: username, Choice: choice, Elapsed: elapsed})

	if len(s.answers) >= len(s.active) {
		s.logger.Info().Str("username", username).Int("answer", choice).Msg("received all answers, ending round")
		s.EndRound()
		return
	}
	s.logger.Debug().
		Str("username", username).
		Int("answer", choice).
		Int("waiting_for", len(s.active)-len(s.answers)).
		Msg("answer received")
}

// StartRound begins a new round, or falls back to intermission when the game
// cannot start yet. Players waiting from the previous round join first.
func (s *Session) StartRound() {
	if s.closed {
		return
	}
	if s.phase == domain.Running {
		s.logger.Warn().Int("round", s.round).Msg("start requested while round is running")
		return
	}
	s.joinPending()
	if !s.CanStart() {
		s.Intermission(s.rules.IntermissionTimeout)
		return
	}

	track, err := s.pool.SelectTrack()
	var choices []domain.Track
	if err == nil {
		choices, err = s.pool.GenerateChoices(track)
	}
	if err != nil {
		s.logger.Error().Err(err).
			Int("pool", s.pool.Len()).
			Int("artists", s.pool.DistinctArtists()).
			Msg("cannot build round")
		s.Intermission(s.rules.IntermissionTimeout)
		return
	}

	s.cancelTimer()
	s.pool.MarkUsed(track)
	s.round++
	s.choices = choices
	s.correct = slices.Index(choices, track)
	s.answers = nil
	s.phase = domain.Running

	s.logger.Info().
		Int("round", s.round).
		Int("players", len(s.active)).
		Int("pool", s.pool.Len()).
		Str("track", track.String()).
		Int("correct", s.correct).
		Msg("round started")

	s.broadcast(protocol.StartRound{
		Round:      s.round,
		SpotifyURI: track.URI,
		Choices:    slices.Clone(choices),
	})
	s.schedule(s.rules.RoundTime, s.roundTimedOut)
}

// EndRound scores the running round and moves on to intermission.
func (s *Session) EndRound() {
	if s.phase != domain.Running {
		return
	}
	s.cancelTimer()

	winner, deltas := s.scorer.Rank(s.answers, s.correct)
	s.scoreboard = append(s.scoreboard, deltas...)
	s.phase = domain.Intermission
	s.answers = nil
	s.choices = nil
	s.correct = -1

	s.logger.Info().Int("round", s.round).Str("winner", winner).Int("scored", len(deltas)).Msg("round ended")

	s.broadcast(protocol.EndRound{Winner: winner, Score: slices.Clone(s.scoreboard)})
	s.deps.Publisher.PublishRoundResult(RoundResult{
		Game:       s.id,
		Round:      s.round,
		Winner:     winner,
		Deltas:     deltas,
		Scoreboard: slices.Clone(s.scoreboard),
	})

	s.Intermission(s.rules.IntermissionTimeout)
}

// Intermission announces the pause between rounds and schedules the next
// start attempt after timeout.
func (s *Session) Intermission(timeout time.Duration) {
	if s.closed {
		return
	}
	if s.phase == domain.Running {
		s.logger.Warn().Int("round", s.round).Msg("intermission requested while round is running")
		return
	}
	if timeout <= 0 {
		timeout = s.rules.IntermissionTimeout
	}
	s.cancelTimer()
	s.broadcast(protocol.Intermission{
		Timeout:       timeout,
		EnoughPlayers: s.EnoughPlayers(),
		EnoughTracks:  s.EnoughTracks(),
	})
	s.schedule(timeout, s.StartRound)
}

// Close stops the pending timer. Later transitions are no-ops.
func (s *Session) Close() {
	s.cancelTimer()
	s.closed = true
	s.logger.Info().Msg("game closed")
}

func (s *Session) roundTimedOut() {
	s.logger.Info().Int("round", s.round).Int("answers", len(s.answers)).Msg("round timed out")
	s.EndRound()
}

func (s *Session) joinPending() {
	if len(s.pending) == 0 {
		return
	}
	s.active = append(s.active, s.pending...)
	s.pending = nil
}

func (s *Session) isActive(id domain.ClientID) bool {
	return slices.ContainsFunc(s.active, func(c Client) bool { return c.ID() == id })
}

func (s *Session) usernameActive(username string) bool {
	return slices.ContainsFunc(s.active, func(c Client) bool { return s.usernames[c.ID()] == username })
}

// schedule replaces the single pending timer. Callbacks of replaced timers
// that fire anyway see a stale generation and do nothing.
func (s *Session) schedule(d time.Duration, fn func()) {
	s.cancelTimer()
	gen := s.timerGen
	s.timer = s.deps.Scheduler.AfterFunc(d, func() {
		if s.closed || gen != s.timerGen {
			return
		}
		s.timer = nil
		fn()
	})
}

func (s *Session) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

func (s *Session) broadcast(msg protocol.Outbound) PublishResult {
	res := PublishResult{}
	for _, c := range s.active {
		if err := c.Send(msg); err != nil {
			s.logger.Warn().Err(err).Str("client", string(c.ID())).Str("action", msg.Action()).Msg("message dropped")
			res.Dropped = append(res.Dropped, c)
			continue
		}
		res.SentTo++
	}
	s.logger.Debug().Str("action", msg.Action()).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	if s.deps.OnDropped != nil {
		for _, c := range res.Dropped {
			s.deps.OnDropped(s.id, c)
		}
	}
	return res
}

// ScoreDTO is a per-player total for read-only views.
type ScoreDTO struct {
	Username string `json:"username"`
	Points   int    `json:"points"`
}

// SessionInfo is a read-only view for APIs.
type SessionInfo struct {
	ID      domain.GameID `json:"id"`
	Phase   domain.Phase  `json:"phase"`
	Round   int           `json:"round"`
	Players []string      `json:"players"`
	Pending []string      `json:"pending"`
	Tracks  int           `json:"tracks"`
	Scores  []ScoreDTO    `json:"scores"`
}

func (s *Session) Snapshot() SessionInfo {
	info := SessionInfo{
		ID:      s.id,
		Phase:   s.phase,
		Round:   s.round,
		Players: make([]string, 0, len(s.active)),
		Pending: make([]string, 0, len(s.pending)),
		Tracks:  s.pool.Len(),
		Scores:  []ScoreDTO{},
	}
	for _, c := range s.active {
		info.Players = append(info.Players, s.usernames[c.ID()])
	}
	for _, c := range s.pending {
		info.Pending = append(info.Pending, s.usernames[c.ID()])
	}
	for _, e := range domain.Totals(s.scoreboard) {
		info.Scores = append(info.Scores, ScoreDTO{Username: e.Username, Points: e.Points})
	}
	return info
}
