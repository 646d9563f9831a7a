// Package notify listens for record-change notifications published by the
// server over NATS and asks the sync manager for a pass.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
	"github.com/dmitrijs2005/fleetcheck/internal/logging"
	"github.com/nats-io/nats.go"
)

// Trigger is what a notification results in.
type Trigger interface {
	RequestSync(ctx context.Context)
}

// Subscriber holds a NATS subscription on every change subject.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	trigger Trigger
	log     logging.Logger
	ctx     context.Context
}

// Subscribe connects to url and listens on "<ChangesSubject>.>". The
// connection reconnects forever; ctx bounds the sync passes started from
// notifications.
func Subscribe(ctx context.Context, url string, trigger Trigger, log logging.Logger) (*Subscriber, error) {
	log = log.With("module", "notify")

	opts := []nats.Option{
		nats.Name("fleetcheck-client"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn(ctx, "nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info(ctx, "nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	s := &Subscriber{nc: nc, trigger: trigger, log: log, ctx: ctx}
	s.sub, err = nc.Subscribe(common.ChangesSubject+".>", func(m *nats.Msg) { s.handle(m.Data) })
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	return s, nil
}

// handle ignores payloads it cannot read; a missed notification only delays
// convergence until the next periodic pass.
func (s *Subscriber) handle(data []byte) {
	var n api.ChangeNotification
	if err := json.Unmarshal(data, &n); err != nil {
		s.log.Warn(s.ctx, "bad change notification", "error", err)
		return
	}
	if !api.IsCollection(n.Collection) {
		s.log.Debug(s.ctx, "change for unknown collection", "collection", n.Collection)
		return
	}
	s.log.Debug(s.ctx, "remote change", "collection", n.Collection, "id", n.ID, "version", n.Version)
	s.trigger.RequestSync(s.ctx)
}

func (s *Subscriber) Close() {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	if s.nc != nil {
		_ = s.nc.Drain()
		s.nc.Close()
	}
}
