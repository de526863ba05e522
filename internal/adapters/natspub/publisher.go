package natspub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/Quiz/internal/core"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subj string, data []byte) error
}

// Publisher sends every finished round to <prefix>.<game>.rounds.
type Publisher struct {
	conn   Conn
	prefix string
}

func NewPublisher(conn Conn, prefix string) *Publisher {
	return &Publisher{conn: conn, prefix: prefix}
}

// Connect dials url with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("quiz-server"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Str("module", "natspub").Msg("disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("module", "natspub").Str("url", nc.ConnectedUrl()).Msg("reconnected")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}

func (p *Publisher) Subject(r core.RoundResult) string {
	return fmt.Sprintf("%s.%d.rounds", p.prefix, r.Game)
}

// PublishRoundResult never blocks the game loop; failures are logged.
func (p *Publisher) PublishRoundResult(r core.RoundResult) {
	data, err := json.Marshal(r)
	if err != nil {
		log.Error().Err(err).Str("module", "natspub").Int("game", int(r.Game)).Msg("encode round result")
		return
	}
	subj := p.Subject(r)
	if err := p.conn.Publish(subj, data); err != nil {
		log.Error().Err(err).Str("module", "natspub").Str("subject", subj).Msg("publish round result")
		return
	}
	log.Debug().Str("module", "natspub").Str("subject", subj).Int("round", r.Round).Msg("round result published")
}
