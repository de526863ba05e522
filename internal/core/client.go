package core

import (
	"time"

	"github.com/dkeye/Quiz/internal/domain"
	"github.com/dkeye/Quiz/internal/protocol"
)

// Client is the outbound side of one connected player.
// Owned by the transport adapter; the core only keeps a reference.
type Client interface {
	ID() domain.ClientID
	// Send must not block. A non-nil error means the message was dropped.
	Send(protocol.Outbound) error
}

// PublishResult reports delivery stats of a broadcast.
type PublishResult struct {
	SentTo  int
	Dropped []Client
}

// Timer is a handle to a scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn after d on the same goroutine that owns the session.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// RoundResult is published once per finished round.
type RoundResult struct {
	Game       domain.GameID       `json:"game"`
	Round      int                 `json:"round"`
	Winner     string              `json:"winner,omitempty"`
	Deltas     []domain.ScoreEntry `json:"deltas"`
	Scoreboard []domain.ScoreEntry `json:"scoreboard"`
}

type ResultPublisher interface {
	PublishRoundResult(RoundResult)
}

type nopPublisher struct{}

func (nopPublisher) PublishRoundResult(RoundResult) {}
