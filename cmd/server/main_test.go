package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pep299/tech-digest/internal/digest"
	"github.com/pep299/tech-digest/internal/logging"
)

type recordingTrigger struct {
	calls []digest.Options
}

func (r *recordingTrigger) RunDigest(ctx context.Context, opts digest.Options) (*digest.Result, bool, error) {
	r.calls = append(r.calls, opts)
	return &digest.Result{RunID: "run"}, true, nil
}

func TestNewScheduler(t *testing.T) {
	trigger := &recordingTrigger{}

	c, err := newScheduler(context.Background(), "0 7 * * *", trigger, logging.Discard())
	require.NoError(t, err)

	entries := c.Entries()
	require.Len(t, entries, 1)

	entries[0].Job.Run()
	assert.Equal(t, []digest.Options{{SendEmail: true}}, trigger.calls)
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	_, err := newScheduler(context.Background(), "every morning", &recordingTrigger{}, logging.Discard())

	assert.Error(t, err)
}
