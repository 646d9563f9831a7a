package notify

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/fleetcheck/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTrigger struct{ n int }

func (c *countingTrigger) RequestSync(context.Context) { c.n++ }

func TestHandle(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{name: "known collection", payload: `{"collection":"vehicles","id":"v1","version":3}`, want: 1},
		{name: "unknown collection", payload: `{"collection":"users","id":"u1"}`, want: 0},
		{name: "garbage", payload: `not json`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &countingTrigger{}
			s := &Subscriber{trigger: tr, log: logging.NewNop(), ctx: context.Background()}
			s.handle([]byte(tt.payload))
			assert.Equal(t, tt.want, tr.n)
		})
	}
}

func TestSubscribe_NoServer(t *testing.T) {
	_, err := Subscribe(context.Background(), "nats://127.0.0.1:1", &countingTrigger{}, logging.NewNop())
	require.Error(t, err)
}

func TestClose_Zero(t *testing.T) {
	(&Subscriber{}).Close()
}
