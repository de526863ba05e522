// Package protocol defines the messages exchanged between game server and
// clients. Inbound and Outbound are closed sets; adapters switch over the
// concrete types.
package protocol

import (
	"time"

	"github.com/dkeye/Quiz/internal/domain"
)

const (
	ActionConnect      = "connect"
	ActionAddTracks    = "add_tracks"
	ActionAnswer       = "answer"
	ActionStartRound   = "start_round"
	ActionEndRound     = "end_round"
	ActionIntermission = "intermission"
	ActionError        = "error"
)

// Inbound is a message sent by a client.
type Inbound interface {
	inbound()
}

type Connect struct {
	Username string
}

type AddTracks struct {
	Tracks []domain.Track
}

type Answer struct {
	Choice  int
	Elapsed float64
}

func (Connect) inbound()   {}
func (AddTracks) inbound() {}
func (Answer) inbound()    {}

// Outbound is a message sent by the server.
type Outbound interface {
	Action() string
}

type StartRound struct {
	Round      int
	SpotifyURI string
	Choices    []domain.Track
}

type EndRound struct {
	// Winner is empty when nobody answered correctly.
	Winner string
	Score  []domain.ScoreEntry
}

type Intermission struct {
	Timeout       time.Duration
	EnoughPlayers bool
	EnoughTracks  bool
}

type Error struct {
	Reason string
}

func (StartRound) Action() string   { return ActionStartRound }
func (EndRound) Action() string     { return ActionEndRound }
func (Intermission) Action() string { return ActionIntermission }
func (Error) Action() string        { return ActionError }
