package signal

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dkeye/Quiz/internal/domain"
	"github.com/dkeye/Quiz/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineConnectAndReceive(t *testing.T) {
	router := newFakeRouter()
	ctl := newTestController(router, nil)
	c := startLine(t, ctl)

	c.write(`{"action":"connect","username":" alice "}`)
	call := recv(t, router.connects)
	assert.Equal(t, "alice", call.username)
	name, ok := ctl.Registry.Username(call.client.ID())
	require.True(t, ok)
	assert.Equal(t, "alice", name)

	require.NoError(t, call.client.Send(protocol.Intermission{Timeout: 3 * time.Second, EnoughPlayers: true}))
	msg := c.read()
	assert.Equal(t, "intermission", msg["action"])
	assert.Equal(t, 3.0, msg["timeout"])
}

func TestLineRoutesGameMessages(t *testing.T) {
	router := newFakeRouter()
	ctl := newTestController(router, nil)
	c := startLine(t, ctl)

	c.write(`{"action":"connect","username":"bob"}`)
	id := recv(t, router.connects).client.ID()

	c.write("")
	c.write(`{"action":"add_tracks","tracks":[["spotify:track:1","Abba","SOS"]]}`)
	assert.Equal(t, []domain.Track{{URI: "spotify:track:1", Artist: "Abba", Title: "SOS"}}, recv(t, router.tracks))

	c.write(`{"action":"answer","answer":1,"time":2.5}`)
	assert.Equal(t, answerCall{id: id, choice: 1, elapsed: 2.5}, recv(t, router.answers))
}

func TestLineRejectsBeforeConnect(t *testing.T) {
	router := newFakeRouter()
	c := startLine(t, newTestController(router, nil))

	c.write(`{"action":"answer","answer":0,"time":1}`)
	msg := c.read()
	assert.Equal(t, "error", msg["action"])
	assert.Equal(t, "not_connected", msg["error"])
	assert.Empty(t, router.answers)
}

func TestLineReportsProtocolErrors(t *testing.T) {
	router := newFakeRouter()
	c := startLine(t, newTestController(router, nil))

	c.write(`{"action":"dance"}`)
	assert.Contains(t, c.read()["error"], "unknown action")

	c.write(`not json`)
	assert.Contains(t, c.read()["error"], "malformed")

	c.write(`{"action":"connect","username":"   "}`)
	assert.Contains(t, c.read()["error"], "invalid_username")
	assert.Empty(t, router.connects)
}

func TestLineRateLimited(t *testing.T) {
	router := newFakeRouter()
	mock := clock.NewMock()
	c := startLine(t, newTestController(router, NewRateLimiter(1, time.Second, mock)))

	c.write(`{"action":"connect","username":"carol"}`)
	recv(t, router.connects)

	c.write(`{"action":"answer","answer":0,"time":1}`)
	assert.Equal(t, "rate_limited", c.read()["error"])

	mock.Add(time.Second)
	c.write(`{"action":"answer","answer":0,"time":1}`)
	recv(t, router.answers)
}

func TestLineDisconnectReportedOnce(t *testing.T) {
	router := newFakeRouter()
	ctl := newTestController(router, nil)
	c := startLine(t, ctl)

	c.write(`{"action":"connect","username":"dave"}`)
	id := recv(t, router.connects).client.ID()
	require.Equal(t, 1, ctl.Registry.Count())

	require.NoError(t, c.conn.Close())

	assert.Equal(t, id, recv(t, router.disconnects))
	assert.Eventually(t, func() bool { return ctl.Registry.Count() == 0 }, waitFor, 10*time.Millisecond)
	select {
	case extra := <-router.disconnects:
		t.Fatalf("second disconnect for %s", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLineCancelClosesConnection(t *testing.T) {
	router := newFakeRouter()
	ctl := newTestController(router, nil)
	c := startLine(t, ctl)

	c.write(`{"action":"connect","username":"erin"}`)
	call := recv(t, router.connects)

	require.True(t, ctl.Registry.Cancel(call.client.ID()))

	assert.Equal(t, call.client.ID(), recv(t, router.disconnects))
	// The server end is gone, so the deadline may fail with ErrClosedPipe.
	_ = c.conn.SetReadDeadline(time.Now().Add(waitFor))
	_, err := c.r.ReadByte()
	assert.True(t, errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe), "got %v", err)
	assert.ErrorIs(t, call.client.Send(protocol.Error{Reason: "late"}), ErrConnClosed)
}

func TestServeTCPStopsWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	router := newFakeRouter()
	ctl := newTestController(router, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctl.ServeTCP(ctx, ln) }()

	nc, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	c := &lineClient{t: t, conn: nc, r: nil}
	c.write(`{"action":"connect","username":"frank"}`)
	recv(t, router.connects)
	_ = nc.Close()
	recv(t, router.disconnects)

	cancel()
	assert.NoError(t, recv(t, done))
}
