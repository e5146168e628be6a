// Package app builds the dispatch engine from configuration. The server,
// worker and notifyctl binaries share it so they agree on storage, queue
// and provider wiring.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"github.com/zeebo/errs"

	"github.com/ignite/notify-dispatch/internal/api"
	"github.com/ignite/notify-dispatch/internal/config"
	"github.com/ignite/notify-dispatch/internal/identity"
	"github.com/ignite/notify-dispatch/internal/pkg/distlock"
	"github.com/ignite/notify-dispatch/internal/pkg/httpretry"
	"github.com/ignite/notify-dispatch/internal/pkg/logger"
	"github.com/ignite/notify-dispatch/internal/repository/memory"
	"github.com/ignite/notify-dispatch/internal/repository/postgres"
	"github.com/ignite/notify-dispatch/internal/service/campaign"
	"github.com/ignite/notify-dispatch/internal/service/emaillog"
	"github.com/ignite/notify-dispatch/internal/service/preference"
	"github.com/ignite/notify-dispatch/internal/service/settings"
	"github.com/ignite/notify-dispatch/internal/templates"
	"github.com/ignite/notify-dispatch/internal/transport"
	"github.com/ignite/notify-dispatch/internal/trigger"
	"github.com/ignite/notify-dispatch/internal/worker"
)

// Error is the class for wiring failures.
var Error = errs.Class("app")

const schedulerLockKey = "notify-dispatch:scheduler"

var log = logger.Named("app")

// App is the assembled engine.
type App struct {
	Config *config.Config

	DB    *sql.DB       // nil when running on the memory store
	Redis *redis.Client // nil without REDIS_URL

	Settings    *settings.Service
	Preferences *preference.Service
	Campaigns   *campaign.Service
	Logs        *emaillog.Service
	Templates   *templates.Renderer
	Pipeline    *worker.Pipeline

	// Publisher is where jobs go: the in-process queue or SQS.
	Publisher trigger.Publisher
	// Queue is the in-process queue, nil with the sqs driver.
	Queue *trigger.MemoryQueue
	// Consumer drains SQS into the pipeline, nil with the memory driver.
	Consumer  *trigger.SQSConsumer
	Scheduler *trigger.Scheduler
}

// repositories groups the four stores so both backends plug in the same way.
type repositories struct {
	settings    settings.Repository
	preferences preference.Repository
	campaigns   campaign.Repository
	logs        emaillog.Repository
}

// New connects every dependency named by cfg. Nothing is started; use
// Start and Close.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	repos, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Redis, err = openRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	a.Settings = settings.NewService(repos.settings)
	a.Preferences = preference.NewService(repos.preferences)
	a.Campaigns = campaign.NewService(repos.campaigns)
	a.Logs = emaillog.NewService(repos.logs, a.Campaigns)
	a.Templates = templates.NewRenderer()

	sender, err := transport.New(ctx, transport.Config{
		Provider: cfg.Transport.Provider,
		SES: transport.SESConfig{
			Region:           cfg.Transport.SES.Region,
			AccessKey:        cfg.Transport.SES.AccessKey,
			SecretKey:        cfg.Transport.SES.SecretKey,
			ConfigurationSet: cfg.Transport.SES.ConfigurationSet,
		},
		SMTP: transport.SMTPConfig{
			Host:     cfg.Transport.SMTP.Host,
			Port:     cfg.Transport.SMTP.Port,
			Username: cfg.Transport.SMTP.Username,
			Password: cfg.Transport.SMTP.Password,
		},
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	directory := newDirectory(cfg.Identity)
	var limiter worker.RateLimiter = worker.NewMemoryRateLimiter()
	if a.Redis != nil {
		limiter = worker.NewRedisRateLimiter(a.Redis)
	}
	dispatcher := worker.NewDispatcher(a.Preferences, limiter, a.Templates, sender, a.Logs, worker.DispatcherConfig{
		PoolSize:       cfg.Dispatch.PoolSize,
		SendsPerSecond: cfg.Dispatch.SendsPerSecond,
		SendTimeout:    cfg.Dispatch.ProviderTimeout(),
		ProgressEvery:  cfg.Dispatch.ProgressFlushEvery,
	})
	resolver := worker.NewResolver(a.Preferences, directory, cfg.Dispatch.LookupConcurrency)
	a.Pipeline = worker.NewPipeline(a.Settings, a.Campaigns, a.Preferences, directory, resolver, dispatcher)

	if err := a.openQueue(ctx); err != nil {
		return nil, err
	}

	lock := distlock.NewLock(a.Redis, a.DB, schedulerLockKey, cfg.Scheduler.LockTTL())
	a.Scheduler = trigger.NewScheduler(a.Campaigns, a.Publisher, lock, cfg.Scheduler.PollInterval())

	log.Info("engine assembled",
		"store", storeName(a.DB), "redis", a.Redis != nil, "provider", cfg.Transport.Provider,
		"queue", cfg.Queue.Driver, "identity", identityName(cfg.Identity))
	return a, nil
}

func (a *App) openStore(ctx context.Context) (repositories, error) {
	cfg := a.Config.Database
	if cfg.URL == "" {
		log.Warn("DATABASE_URL not set, using the in-memory store")
		store := memory.New()
		return repositories{settings: store, preferences: store, campaigns: store, logs: store}, nil
	}

	db, err := postgres.Open(ctx, cfg.URL, postgres.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 30 * time.Second,
	})
	if err != nil {
		return repositories{}, Error.Wrap(err)
	}
	a.DB = db
	if cfg.AutoMigrate {
		n, err := postgres.Migrate(ctx, db)
		if err != nil {
			return repositories{}, Error.Wrap(err)
		}
		log.Info("migrations applied", "count", n)
	}
	return repositories{
		settings:    postgres.NewSettingsRepo(db),
		preferences: postgres.NewPreferenceRepo(db),
		campaigns:   postgres.NewCampaignRepo(db),
		logs:        postgres.NewEmailLogRepo(db),
	}, nil
}

// openRedis connects when a URL is configured. An unreachable Redis is an
// error rather than a silent fallback: the daily cap must be shared by
// every instance once Redis is expected.
func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, Error.New("invalid REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, Error.New("redis ping %s: %v", opts.Addr, err)
	}
	return client, nil
}

func newDirectory(cfg config.IdentityConfig) identity.Directory {
	if cfg.BaseURL == "" {
		log.Warn("IDENTITY_BASE_URL not set, using an empty static directory")
		return identity.NewStatic()
	}
	return identity.NewHTTPDirectory(identity.HTTPConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout(),
		MaxRetries: cfg.MaxRetries,
	})
}

func (a *App) openQueue(ctx context.Context) error {
	cfg := a.Config.Queue
	switch cfg.Driver {
	case "", "memory":
		a.Queue = trigger.NewMemoryQueue(a.Pipeline, cfg.Buffer, cfg.Workers, 0)
		a.Publisher = a.Queue
		return nil
	case "sqs":
		if cfg.SQS.QueueURL == "" {
			return Error.New("queue driver sqs needs SQS_QUEUE_URL")
		}
		client, err := newSQSClient(ctx, cfg.SQS.Region, a.Config.Transport.SES)
		if err != nil {
			return err
		}
		a.Publisher = trigger.NewSQSPublisher(client, cfg.SQS.QueueURL)
		a.Consumer = trigger.NewSQSConsumer(client, cfg.SQS.QueueURL, a.Pipeline)
		return nil
	}
	return Error.New("unknown queue driver %q", cfg.Driver)
}

// newSQSClient reuses the SES keys when they are set and otherwise falls
// back to the default credential chain (env, shared config, task role).
func newSQSClient(ctx context.Context, region string, keys config.SESConfig) (*sqs.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if keys.AccessKey != "" && keys.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keys.AccessKey, keys.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, Error.New("aws config: %v", err)
	}
	return sqs.NewFromConfig(awsCfg), nil
}

// Handlers returns the HTTP handlers bound to this engine.
func (a *App) Handlers() *api.Handlers {
	var depth api.QueueDepth
	if a.Queue != nil {
		depth = a.Queue
	}
	return api.NewHandlers(api.Deps{
		Settings:    a.Settings,
		Preferences: a.Preferences,
		Campaigns:   a.Campaigns,
		Logs:        a.Logs,
		Single:      a.Pipeline,
		Publisher:   a.Publisher,
		Templates:   a.Templates,
		Health:      api.NewHealthChecker(a.DB, a.Redis, depth),
		SNSClient:   httpretry.NewRetryClient(nil, 2),
	})
}

// StartOptions selects the background loops a process runs.
type StartOptions struct {
	// Queue starts the in-process queue workers.
	Queue bool
	// Consumer starts the SQS consumer.
	Consumer bool
	// Scheduler starts the scheduled campaign poller.
	Scheduler bool
}

// Start launches the selected background loops.
func (a *App) Start(ctx context.Context, opts StartOptions) error {
	if opts.Queue && a.Queue != nil {
		a.Queue.Start(ctx)
	}
	if opts.Consumer && a.Consumer != nil {
		a.Consumer.Start(ctx)
	}
	if opts.Scheduler {
		if err := a.Scheduler.Start(ctx); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

// Close stops the loops and releases connections. The queue drains first
// so in-flight jobs can still write their logs.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Consumer != nil {
		a.Consumer.Stop()
	}
	if a.Queue != nil {
		a.Queue.Stop()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Warn("database close failed", "error", err)
		}
	}
	logger.Sync()
}

func storeName(db *sql.DB) string {
	if db == nil {
		return "memory"
	}
	return "postgres"
}

func identityName(cfg config.IdentityConfig) string {
	if cfg.BaseURL == "" {
		return "static"
	}
	return fmt.Sprintf("http(%s)", cfg.BaseURL)
}
