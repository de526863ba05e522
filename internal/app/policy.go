package app

import (
	"github.com/dkeye/Quiz/internal/core"
	"github.com/dkeye/Quiz/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a client whose outbound queue is full.
type Policy interface {
	OnBackPressure(game domain.GameID, c core.Client) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.GameID, core.Client) BackpressureAction {
	return KickMember
}
