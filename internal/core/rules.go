package core

import "time"

// Rules are the tunables of a game.
type Rules struct {
	MinPlayers          int
	MaxPlayers          int
	RoundTime           time.Duration
	IntermissionTimeout time.Duration
	Alternatives        int
	Points              []int
}

func DefaultRules() Rules {
	return Rules{
		MinPlayers:          1,
		MaxPlayers:          3,
		RoundTime:           10 * time.Second,
		IntermissionTimeout: 3 * time.Second,
		Alternatives:        4,
		Points:              []int{89, 55, 34, 21, 13, 8, 5, 3, 2, 1},
	}
}
