package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/Sternrassler/ajaxctl/pkg/checkpoint"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCheckpoint(t *testing.T, logs *bytes.Buffer) (*batchCheckpoint, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	return &batchCheckpoint{
		manager: checkpoint.NewManager(rdb, checkpoint.DefaultConfig()),
		key:     checkpoint.Key{File: "/data/variants.json", Method: "PUT", EndpointTemplate: "variants/{{id}}"},
		logger:  zerolog.New(logs),
	}, mr
}

func TestBatchCheckpoint_SaveAfterCancel(t *testing.T) {
	var logs bytes.Buffer
	cp, _ := newTestCheckpoint(t, &logs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cp.save(ctx, &checkpoint.Entry{NextIndex: 7, Succeeded: 7})

	got, err := cp.manager.Get(context.Background(), cp.key)
	require.NoError(t, err)
	assert.Equal(t, 7, got.NextIndex)
	assert.Empty(t, logs.String())
}

func TestBatchCheckpoint_DeleteAfterCancel(t *testing.T) {
	var logs bytes.Buffer
	cp, _ := newTestCheckpoint(t, &logs)
	require.NoError(t, cp.manager.Save(context.Background(), cp.key, &checkpoint.Entry{NextIndex: 2}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cp.delete(ctx)

	_, err := cp.manager.Get(context.Background(), cp.key)
	assert.ErrorIs(t, err, checkpoint.ErrNoCheckpoint)
}

func TestBatchCheckpoint_SaveFailureLogs(t *testing.T) {
	var logs bytes.Buffer
	cp, mr := newTestCheckpoint(t, &logs)
	mr.Close()

	cp.save(context.Background(), &checkpoint.Entry{NextIndex: 3})
	cp.delete(context.Background())

	assert.Contains(t, logs.String(), "Failed to save checkpoint")
	assert.Contains(t, logs.String(), `"next_index":3`)
	assert.Contains(t, logs.String(), "Failed to delete checkpoint")
}
