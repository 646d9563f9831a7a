// Package events publishes record change notifications over NATS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
	"github.com/dmitrijs2005/fleetcheck/internal/logging"
	"github.com/nats-io/nats.go"
)

var ErrNotConnected = errors.New("nats not connected")

type Publisher struct {
	nc  *nats.Conn
	log logging.Logger
}

func NewPublisher(url string, log logging.Logger) (*Publisher, error) {
	log = log.With("module", "events")
	opts := []nats.Option{
		nats.Name("fleetcheck-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn(context.Background(), "nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info(context.Background(), "nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, log: log}, nil
}

// Subject returns the subject a change of the given collection goes to.
func Subject(collection string) string {
	return common.ChangesSubject + "." + collection
}

// PublishChange announces an accepted write.
func (p *Publisher) PublishChange(ctx context.Context, n api.ChangeNotification) error {
	if p == nil || p.nc == nil || p.nc.IsClosed() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.nc.Publish(Subject(n.Collection), payload)
}

func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	_ = p.nc.Drain()
	p.nc.Close()
}
