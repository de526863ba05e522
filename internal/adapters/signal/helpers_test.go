package signal

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/dkeye/Quiz/internal/app"
	"github.com/dkeye/Quiz/internal/core"
	"github.com/dkeye/Quiz/internal/domain"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type connectCall struct {
	client   core.Client
	username string
}

type answerCall struct {
	id      domain.ClientID
	choice  int
	elapsed float64
}

type fakeRouter struct {
	connects    chan connectCall
	disconnects chan domain.ClientID
	answers     chan answerCall
	tracks      chan []domain.Track
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{
		connects:    make(chan connectCall, 16),
		disconnects: make(chan domain.ClientID, 16),
		answers:     make(chan answerCall, 16),
		tracks:      make(chan []domain.Track, 16),
	}
}

func (r *fakeRouter) Connect(c core.Client, username string) {
	r.connects <- connectCall{client: c, username: username}
}

func (r *fakeRouter) Disconnect(id domain.ClientID) { r.disconnects <- id }

func (r *fakeRouter) Answer(id domain.ClientID, choice int, elapsed float64) {
	r.answers <- answerCall{id: id, choice: choice, elapsed: elapsed}
}

func (r *fakeRouter) AddTracks(_ domain.ClientID, tracks []domain.Track) { r.tracks <- tracks }

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		t.Fatalf("nothing received within %s", waitFor)
	}
	panic("unreachable")
}

type lineClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func (c *lineClient) write(line string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(waitFor)))
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *lineClient) read() map[string]any {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(waitFor)))
	line, err := c.r.ReadBytes('\n')
	require.NoError(c.t, err)
	var m map[string]any
	require.NoError(c.t, json.Unmarshal(line, &m))
	return m
}

// startLine runs a line connection over an in-memory pipe.
func startLine(t *testing.T, ctl *Controller) *lineClient {
	t.Helper()
	server, client := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = client.Close()
	})
	go ctl.HandleLineConn(ctx, server)
	return &lineClient{t: t, conn: client, r: bufio.NewReader(client)}
}

func newTestController(router GameRouter, limiter *RateLimiter) *Controller {
	return NewController(router, app.NewRegistry(), limiter, Options{SendBuffer: 8})
}
