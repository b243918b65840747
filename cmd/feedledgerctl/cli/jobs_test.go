package cli

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerRejectsUnknownJob(t *testing.T) {
	c := NewJobsCLI(asynq.RedisClientOpt{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = c.Close() })

	_, err := c.Trigger(context.Background(), "ledger:unknown", TriggerOptions{})
	require.ErrorContains(t, err, "unsupported job")
}

func TestNilJobsCLI(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), "ledger:mirror_repair", TriggerOptions{})
	require.Error(t, err)
	_, err = c.InspectQueues(context.Background())
	require.Error(t, err)
}

func TestInspectQueuesOnEmptyRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewJobsCLI(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })

	stats, err := c.InspectQueues(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "ledger", stats[0].Queue)
	assert.Zero(t, stats[0].Pending)

	scheduled, err := c.ListScheduled(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, scheduled)
}
