package signal

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Quiz/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the connection until either side
// closes it or ctx is done.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	id := domain.NewClientID()
	log.Info().Str("module", "signal").Str("client", string(id)).Str("token", c.GetString("client_token")).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newConn(id, ctl.Opts.SendBuffer, ws.Close)
	ctx, cancel := context.WithCancel(ctx)
	release := ctl.register(conn, cancel)

	go ctl.writePump(ctx, ws, conn)
	go ctl.readPump(ws, conn, release)
}

func (ctl *Controller) writePump(ctx context.Context, ws *websocket.Conn, c *Conn) {
	ticker := time.NewTicker(ctl.Opts.PingPeriod)
	defer ticker.Stop()
	// Closing unblocks the read pump.
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("client", string(c.ID())).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Info().Str("module", "signal").Str("client", string(c.ID())).Msg("writePump channel closed")
				return
			}
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ws *websocket.Conn, c *Conn, release func()) {
	defer func() {
		log.Info().Str("module", "signal").Str("client", string(c.ID())).Msg("readPump closing")
		release()
	}()

	ws.SetReadLimit(ctl.Opts.ReadLimit)
	pongWait := ctl.Opts.PingPeriod * 10 / 9
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "signal").Str("client", string(c.ID())).Msg("readPump read error")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleMessage(c, data)
	}
}
