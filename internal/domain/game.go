package domain

import (
	"encoding/json"
	"fmt"
)

type GameID int

type Phase int

const (
	Intermission Phase = iota
	Running
)

func (p Phase) String() string {
	switch p {
	case Intermission:
		return "intermission"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "intermission":
		*p = Intermission
	case "running":
		*p = Running
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

// Answer is one client's guess for the running round.
type Answer struct {
	Username string
	Choice   int
	Elapsed  float64
}

// ScoreEntry is a single scoring event. On the wire it is [username, points].
type ScoreEntry struct {
	Username string
	Points   int
}

func (s ScoreEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.Username, s.Points})
}

func (s *ScoreEntry) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("score entry: %w", err)
	}
	if len(tuple) != 2 {
		return fmt.Errorf("score entry: want 2 fields, got %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &s.Username); err != nil {
		return fmt.Errorf("score entry username: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &s.Points); err != nil {
		return fmt.Errorf("score entry points: %w", err)
	}
	return nil
}

// Totals sums a scoreboard per username, keeping first-appearance order.
func Totals(board []ScoreEntry) []ScoreEntry {
	idx := make(map[string]int, len(board))
	out := make([]ScoreEntry, 0, len(board))
	for _, e := range board {
		if i, ok := idx[e.Username]; ok {
			out[i].Points += e.Points
			continue
		}
		idx[e.Username] = len(out)
		out = append(out, e)
	}
	return out
}
