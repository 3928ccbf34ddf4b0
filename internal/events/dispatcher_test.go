package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAsyncDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewAsyncDispatcher(zap.NewNop())
	var created, responded atomic.Int32
	d.Subscribe(EventRequestCreated, func(context.Context, Event) error { created.Add(1); return nil })
	d.Subscribe(EventRequestCreated, func(context.Context, Event) error { created.Add(1); return nil })
	d.Subscribe(EventRequestResponded, func(context.Context, Event) error { responded.Add(1); return nil })

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventRequestCreated, RequestID: "r1"}))
	d.Wait()

	assert.Equal(t, int32(2), created.Load())
	assert.Equal(t, int32(0), responded.Load())
}

func TestAsyncDispatcherIsolatesFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewAsyncDispatcher(zap.New(core))
	var delivered atomic.Int32
	d.Subscribe(EventRequestResponded, func(context.Context, Event) error { return errors.New("smtp down") })
	d.Subscribe(EventRequestResponded, func(context.Context, Event) error { panic("boom") })
	d.Subscribe(EventRequestResponded, func(context.Context, Event) error { delivered.Add(1); return nil })

	err := d.Publish(context.Background(), Event{Type: EventRequestResponded, RequestID: "r2"})
	require.NoError(t, err)
	d.Wait()

	assert.Equal(t, int32(1), delivered.Load())
	assert.Equal(t, 1, logs.FilterMessage("event handler failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("event handler panicked").Len())
}

func TestAsyncDispatcherDetachesCancellation(t *testing.T) {
	d := NewAsyncDispatcher(zap.NewNop())
	release := make(chan struct{})
	var ctxErr atomic.Value
	d.Subscribe(EventRequestCreated, func(ctx context.Context, _ Event) error {
		<-release
		ctxErr.Store(fmt.Sprint(ctx.Err()))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Publish(ctx, Event{Type: EventRequestCreated}))
	cancel()
	close(release)
	d.Wait()

	assert.Equal(t, "<nil>", ctxErr.Load())
}
