package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Quiz/internal/domain"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrMalformed     = errors.New("malformed message")
)

type envelope struct {
	Action string `json:"action"`
}

type connectWire struct {
	Username *string `json:"username"`
}

type addTracksWire struct {
	Tracks *[]domain.Track `json:"tracks"`
}

type answerWire struct {
	Answer *int     `json:"answer"`
	Time   *float64 `json:"time"`
}

// Decode parses one inbound record. Errors wrap ErrMalformed or
// ErrUnknownAction.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Action {
	case ActionConnect:
		var w connectWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: connect: %v", ErrMalformed, err)
		}
		if w.Username == nil {
			return nil, fmt.Errorf("%w: connect: missing username", ErrMalformed)
		}
		return Connect{Username: *w.Username}, nil
	case ActionAddTracks:
		var w addTracksWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: add_tracks: %v", ErrMalformed, err)
		}
		if w.Tracks == nil {
			return nil, fmt.Errorf("%w: add_tracks: missing tracks", ErrMalformed)
		}
		return AddTracks{Tracks: *w.Tracks}, nil
	case ActionAnswer:
		var w answerWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: answer: %v", ErrMalformed, err)
		}
		if w.Answer == nil || w.Time == nil {
			return nil, fmt.Errorf("%w: answer: missing answer or time", ErrMalformed)
		}
		return Answer{Choice: *w.Answer, Elapsed: *w.Time}, nil
	case "":
		return nil, fmt.Errorf("%w: missing action", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
	}
}

type startRoundWire struct {
	Action     string         `json:"action"`
	SpotifyURI string         `json:"spotify_uri"`
	Choices    []domain.Track `json:"choices"`
	Round      int            `json:"round"`
}

type endRoundWire struct {
	Action string              `json:"action"`
	Winner *string             `json:"winner"`
	Score  []domain.ScoreEntry `json:"score"`
}

type intermissionWire struct {
	Action        string  `json:"action"`
	Timeout       float64 `json:"timeout"`
	EnoughPlayers bool    `json:"enough_players"`
	EnoughTracks  bool    `json:"enough_tracks"`
}

type errorWire struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}

// Encode renders one outbound record without a trailing newline.
func Encode(m Outbound) ([]byte, error) {
	switch m := m.(type) {
	case StartRound:
		choices := m.Choices
		if choices == nil {
			choices = []domain.Track{}
		}
		return json.Marshal(startRoundWire{
			Action:     m.Action(),
			SpotifyURI: m.SpotifyURI,
			Choices:    choices,
			Round:      m.Round,
		})
	case EndRound:
		w := endRoundWire{Action: m.Action(), Score: m.Score}
		if m.Winner != "" {
			winner := m.Winner
			w.Winner = &winner
		}
		if w.Score == nil {
			w.Score = []domain.ScoreEntry{}
		}
		return json.Marshal(w)
	case Intermission:
		return json.Marshal(intermissionWire{
			Action:        m.Action(),
			Timeout:       m.Timeout.Seconds(),
			EnoughPlayers: m.EnoughPlayers,
			EnoughTracks:  m.EnoughTracks,
		})
	case Error:
		return json.Marshal(errorWire{Action: m.Action(), Error: m.Reason})
	default:
		return nil, fmt.Errorf("%w: cannot encode %T", ErrUnknownAction, m)
	}
}
