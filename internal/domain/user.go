// Package domain contains value types shared by the game core and adapters.
package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const MaxClientIDLen = 36

var ErrUsernameEmpty = errors.New("username empty")

// ClientID identifies one connected player for the lifetime of a connection.
type ClientID string

func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}

type Player struct {
	ID       ClientID `json:"id"`
	Username string   `json:"username"`
}

// NewPlayer trims the display name a client sent with its connect message.
// Any non-blank name is accepted; duplicates are allowed.
func NewPlayer(id ClientID, username string) (*Player, error) {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	return &Player{ID: id, Username: username}, nil
}
