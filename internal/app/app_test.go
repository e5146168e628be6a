package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/notify-dispatch/internal/config"
	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/trigger"
)

func TestNew_MemoryDefaults(t *testing.T) {
	a, err := New(context.Background(), config.Default())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.Consumer)
	require.NotNil(t, a.Queue)
	assert.Equal(t, trigger.Publisher(a.Queue), a.Publisher)
	assert.NotNil(t, a.Scheduler)
	assert.NotNil(t, a.Handlers())
}

func TestNew_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.URL = "redis://" + mr.Addr()

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.Redis)
}

func TestNew_RejectsBadWiring(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown queue driver", func(c *config.Config) { c.Queue.Driver = "kafka" }},
		{"sqs without url", func(c *config.Config) { c.Queue.Driver = "sqs" }},
		{"invalid redis url", func(c *config.Config) { c.Redis.URL = "::not a url" }},
		{"unknown provider", func(c *config.Config) { c.Transport.Provider = "pigeon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			_, err := New(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}

func TestApp_EventJobFlowsThroughQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx, config.Default())
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Start(ctx, StartOptions{Queue: true}))

	job := trigger.NewJob(trigger.KindUserCreated)
	job.UserID = "new-user"
	job.Email = "new@example.com"
	job.Data = map[string]string{"userName": "Ned"}
	require.NoError(t, a.Publisher.Publish(ctx, job))

	assert.Eventually(t, func() bool {
		counts, err := a.Logs.Counts(ctx)
		return err == nil && counts[domain.LogSent] == 1
	}, 2*time.Second, 10*time.Millisecond)

	p, err := a.Preferences.Get(ctx, "new-user")
	require.NoError(t, err)
	assert.True(t, p.OrderConfirmation)
}
