package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/config"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/ports"
	"github.com/goliatone/go-manufacture/store"
	"github.com/goliatone/go-manufacture/transport"
)

func TestNewAppInMemory(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, config.Defaults(), logger.Nop{})
	require.NoError(t, err)
	defer a.close(ctx)

	assert.IsType(t, &store.MemoryRepository{}, a.repo)
	assert.Nil(t, a.mongo)
	assert.Nil(t, a.redis)

	subs := a.register(transport.NewMemoryQueue(), localCollaborators())
	assert.Len(t, subs, 11)
	assert.Len(t, a.bus.Handlers(manufacture.PartMessageType), 10)
	assert.Len(t, a.bus.Handlers(manufacture.ProductMessageType), 1)
}

func TestAppDispatchesProductLocks(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, config.Defaults(), logger.Nop{})
	require.NoError(t, err)
	defer a.close(ctx)

	locks := ports.NewMemoryProductLocks()
	collab := localCollaborators()
	collab.locks = locks

	queue := transport.NewMemoryQueue()
	a.register(queue, collab)

	require.NoError(t, queue.Publish(ctx, manufacture.ProductMessage{Invariable: "inv-1", Manufacture: "part-1", Kind: "offer"}))
	_, err = queue.Drain(ctx, a.bus)
	require.NoError(t, err)

	owner, ok := locks.LockedBy("inv-1")
	require.True(t, ok)
	assert.Equal(t, "part-1", owner)
}

func TestPublishCmdMessage(t *testing.T) {
	msg, err := (&PublishCmd{Part: "part-1", Event: "event-1"}).message()
	require.NoError(t, err)
	assert.Nil(t, msg.Total)

	msg, err = (&PublishCmd{Part: "part-1", Event: "event-1", Defect: 2}).message()
	require.NoError(t, err)
	assert.Equal(t, 2, msg.DefectTotal())

	_, err = (&PublishCmd{Part: "part-1"}).message()
	assert.True(t, manufacture.HasCode(err, manufacture.ErrCodeValidation))
}

func TestNewLoggerFormats(t *testing.T) {
	assert.IsType(t, &logger.FmtLogger{}, newLogger(config.LoggerConfig{Format: "text"}))
	assert.IsType(t, logger.GlogAdapter{}, newLogger(config.LoggerConfig{Format: "json", Level: "debug"}))
}
