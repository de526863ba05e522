package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Quiz/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// GameLister is the read side of the game loop.
type GameLister interface {
	Games(ctx context.Context) ([]core.SessionInfo, error)
	Connections() int
}

type handlers struct {
	games GameLister
}

type healthResponse struct {
	Status      string `json:"status"`
	Games       int    `json:"games"`
	Connections int    `json:"connections"`
}

type gamesResponse struct {
	Games []core.SessionInfo `json:"games"`
}

func (h *handlers) health(c *gin.Context) {
	games, err := h.games.Games(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "stopping", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, healthResponse{
		Status:      "ok",
		Games:       len(games),
		Connections: h.games.Connections(),
	})
}

func (h *handlers) listGames(c *gin.Context) {
	games, err := h.games.Games(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list games")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gamesResponse{Games: games})
}
