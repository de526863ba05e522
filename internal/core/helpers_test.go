package core

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/dkeye/Quiz/internal/domain"
	"github.com/dkeye/Quiz/internal/protocol"
	"github.com/stretchr/testify/require"
)

var errDropped = errors.New("dropped")

type fakeClient struct {
	id   domain.ClientID
	msgs []protocol.Outbound
	fail bool
}

func newFakeClient(id string) *fakeClient {
	return &fakeClient{id: domain.ClientID(id)}
}

func (c *fakeClient) ID() domain.ClientID { return c.id }

func (c *fakeClient) Send(m protocol.Outbound) error {
	if c.fail {
		return errDropped
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *fakeClient) reset() { c.msgs = nil }

func messagesOf[T protocol.Outbound](c *fakeClient) []T {
	var out []T
	for _, m := range c.msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func lastOf[T protocol.Outbound](t *testing.T, c *fakeClient) T {
	t.Helper()
	all := messagesOf[T](c)
	require.NotEmpty(t, all, "client %s got no %T", c.id, *new(T))
	return all[len(all)-1]
}

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

// manualScheduler fires callbacks only when the test asks for it.
type manualScheduler struct {
	timers []*fakeTimer
}

func (m *manualScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{d: d, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualScheduler) pending() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the single outstanding timer and returns its delay.
func (m *manualScheduler) fire(t *testing.T) time.Duration {
	t.Helper()
	p := m.pending()
	require.Len(t, p, 1, "exactly one timer must be outstanding")
	p[0].fired = true
	p[0].fn()
	return p[0].d
}

func distinctTracks(n int) []domain.Track {
	out := make([]domain.Track, 0, n)
	for i := range n {
		out = append(out, domain.Track{
			URI:    fmt.Sprintf("spotify:track:%d", i),
			Artist: fmt.Sprintf("Artist %d", i),
			Title:  fmt.Sprintf("Title %d", i),
		})
	}
	return out
}

func testRules() Rules {
	return Rules{
		MinPlayers:          1,
		MaxPlayers:          3,
		RoundTime:           10 * time.Second,
		IntermissionTimeout: 3 * time.Second,
		Alternatives:        4,
		Points:              []int{89, 55, 34, 21},
	}
}

func newTestSession(t *testing.T, rules Rules) (*Session, *manualScheduler) {
	t.Helper()
	sched := &manualScheduler{}
	s := NewSession(0, rules, SessionDeps{
		Scheduler: sched,
		Rand:      rand.New(rand.NewPCG(1, 2)),
	})
	return s, sched
}

// correctIndex finds the played track among the offered choices.
func correctIndex(t *testing.T, m protocol.StartRound) int {
	t.Helper()
	for i, c := range m.Choices {
		if c.URI == m.SpotifyURI {
			return i
		}
	}
	t.Fatalf("played track %s not among choices", m.SpotifyURI)
	return -1
}
