package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dkeye/Quiz/internal/core"
	"github.com/dkeye/Quiz/internal/domain"
	"github.com/dkeye/Quiz/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type chanClient struct {
	id   domain.ClientID
	msgs chan protocol.Outbound
	fail bool
}

func newChanClient(id string) *chanClient {
	return &chanClient{id: domain.ClientID(id), msgs: make(chan protocol.Outbound, 64)}
}

func (c *chanClient) ID() domain.ClientID { return c.id }

func (c *chanClient) Send(m protocol.Outbound) error {
	if c.fail {
		return errors.New("queue full")
	}
	c.msgs <- m
	return nil
}

// next skips messages until one of type T arrives.
func next[T protocol.Outbound](t *testing.T, c *chanClient) T {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case m := <-c.msgs:
			if v, ok := m.(T); ok {
				return v
			}
		case <-deadline:
			t.Fatalf("client %s: no %T within %s", c.id, *new(T), waitFor)
		}
	}
}

func tracks(n int) []domain.Track {
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

func startHub(t *testing.T, opts HubOptions) (*Hub, *clock.Mock, context.CancelFunc) {
	t.Helper()
	mock := clock.NewMock()
	opts.Clock = mock
	opts.Rand = rand.New(rand.NewPCG(3, 4))
	if opts.Rules.MaxPlayers == 0 {
		opts.Rules = core.DefaultRules()
	}
	h := NewHub(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, mock, cancel
}

// settle waits until the loop processed everything posted so far.
func settle(t *testing.T, h *Hub) []core.SessionInfo {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	games, err := h.Games(ctx)
	require.NoError(t, err)
	return games
}

func TestHubPlaysRound(t *testing.T) {
	h, mock, _ := startHub(t, HubOptions{})
	alice := newChanClient("alice")

	h.Connect(alice, "alice")
	h.AddTracks(alice.ID(), tracks(4))
	settle(t, h)

	mock.Add(core.DefaultRules().IntermissionTimeout)
	start := next[protocol.StartRound](t, alice)
	assert.Equal(t, 1, start.Round)

	correct := -1
	for i, c := range start.Choices {
		if c.URI == start.SpotifyURI {
			correct = i
		}
	}
	h.Answer(alice.ID(), correct, 0.2)

	end := next[protocol.EndRound](t, alice)
	assert.Equal(t, "alice", end.Winner)
	next[protocol.Intermission](t, alice)

	games := settle(t, h)
	require.Len(t, games, 1)
	assert.Equal(t, domain.Intermission, games[0].Phase)
	assert.Equal(t, []core.ScoreDTO{{Username: "alice", Points: 89}}, games[0].Scores)
}

func TestHubRoundTimesOut(t *testing.T) {
	h, mock, _ := startHub(t, HubOptions{})
	alice := newChanClient("alice")
	h.Connect(alice, "alice")
	h.AddTracks(alice.ID(), tracks(4))
	settle(t, h)

	mock.Add(core.DefaultRules().IntermissionTimeout)
	next[protocol.StartRound](t, alice)
	settle(t, h)

	mock.Add(core.DefaultRules().RoundTime)
	end := next[protocol.EndRound](t, alice)
	assert.Empty(t, end.Winner)
}

func TestHubDisconnectFreesSeat(t *testing.T) {
	rules := core.DefaultRules()
	rules.MaxPlayers = 1
	h, _, _ := startHub(t, HubOptions{Rules: rules})

	h.Connect(newChanClient("a"), "a")
	h.Disconnect("a")
	h.Connect(newChanClient("b"), "b")

	games := settle(t, h)
	require.Len(t, games, 1)
	assert.Equal(t, []string{"b"}, games[0].Players)
}

func TestHubKicksSlowClient(t *testing.T) {
	reg := NewRegistry()
	h, mock, _ := startHub(t, HubOptions{Registry: reg})

	slow := newChanClient("slow")
	slow.fail = true
	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()
	reg.Bind(slow.ID(), connCancel)

	h.Connect(slow, "slow")
	h.AddTracks(slow.ID(), tracks(4))
	settle(t, h)
	mock.Add(core.DefaultRules().IntermissionTimeout)

	select {
	case <-connCtx.Done():
	case <-time.After(waitFor):
		t.Fatal("slow client was not kicked")
	}
}

func TestHubStopsWithContext(t *testing.T) {
	h, _, cancel := startHub(t, HubOptions{})
	settle(t, h)

	cancel()

	assert.Eventually(t, func() bool {
		_, err := h.Games(context.Background())
		return errors.Is(err, ErrHubStopped)
	}, waitFor, 10*time.Millisecond)
	h.Connect(newChanClient("late"), "late")
}
