package signal

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"time"

	"github.com/dkeye/Quiz/internal/domain"
	"github.com/rs/zerolog/log"
)

// ServeTCP accepts line-delimited JSON connections until ctx is done.
func (ctl *Controller) ServeTCP(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	log.Info().Str("module", "signal").Str("addr", ln.Addr().String()).Msg("line transport listening")

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go ctl.HandleLineConn(ctx, nc)
	}
}

// HandleLineConn runs one TCP connection: one JSON record per line in both
// directions. It returns when the connection is gone.
func (ctl *Controller) HandleLineConn(ctx context.Context, nc net.Conn) {
	id := domain.NewClientID()
	log.Info().Str("module", "signal").Str("client", string(id)).Str("remote", nc.RemoteAddr().String()).Msg("new line connection")

	conn := newConn(id, ctl.Opts.SendBuffer, nc.Close)
	ctx, cancel := context.WithCancel(ctx)
	release := ctl.register(conn, cancel)

	go ctl.lineWritePump(ctx, nc, conn)
	ctl.lineReadPump(nc, conn, release)
}

func (ctl *Controller) lineWritePump(ctx context.Context, nc net.Conn, c *Conn) {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := nc.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("lineWritePump set deadline")
				return
			}
			if _, err := nc.Write(append(data, '\n')); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("client", string(c.ID())).Msg("lineWritePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) lineReadPump(nc net.Conn, c *Conn, release func()) {
	defer func() {
		log.Info().Str("module", "signal").Str("client", string(c.ID())).Msg("lineReadPump closing")
		release()
	}()

	sc := bufio.NewScanner(nc)
	sc.Buffer(make([]byte, 0, 4096), int(ctl.Opts.ReadLimit))
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		ctl.handleMessage(c, line)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Error().Err(err).Str("module", "signal").Str("client", string(c.ID())).Msg("lineReadPump read error")
	}
}
