package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"whatsapp-assistant/backend/ai"
	"whatsapp-assistant/backend/internal/dedup"
	"whatsapp-assistant/backend/internal/inbound"
	"whatsapp-assistant/backend/internal/outbound"
	"whatsapp-assistant/backend/internal/repository"
	"whatsapp-assistant/backend/internal/service"
	"whatsapp-assistant/backend/internal/ws"
	"whatsapp-assistant/backend/pkg/config"
	"whatsapp-assistant/backend/pkg/health"
	"whatsapp-assistant/backend/pkg/jwt"
	"whatsapp-assistant/backend/pkg/logger"
	sharedredis "whatsapp-assistant/backend/shared/redis"

	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *logger.Logger

	Repository repository.Repository
	JWTService *jwt.Service
	Hub        *ws.Hub
	Dispatcher *outbound.Dispatcher
	Guard      dedup.Guard
	Health     *health.Checker

	Resolver     *service.Resolver
	Takeover     *service.TakeoverGate
	Pipeline     *service.Pipeline
	UserService  *service.UserService
	ThreadSvc    *service.ThreadService
	StatsService *service.StatsService

	Normalizers []inbound.Normalizer
	Verifier    *inbound.Verifier

	closers []func() error
}

// Options replaces external backends, mostly for tests
type Options struct {
	// Completer replaces the OpenAI client
	Completer service.Completer
	// Providers replaces the Twilio and Meta providers
	Providers []outbound.Provider
	// HTTPClient is used by the Meta provider
	HTTPClient *http.Client
}

// New wires the application. db may be nil when cfg.Database.InMemory is set.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logger.Logger, opts Options) (*Container, error) {
	c := &Container{Config: cfg, DB: db, Logger: log}

	switch {
	case db != nil:
		c.Repository = repository.NewGormRepository(db)
	case cfg.Database.InMemory:
		log.Warn("Using in-memory repository, data is lost on restart")
		c.Repository = repository.NewMemoryRepository()
	default:
		return nil, fmt.Errorf("no database connection and DB_USE_IN_MEMORY is not set")
	}

	c.JWTService = jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)
	c.Hub = ws.NewHub(cfg.Security.AllowedOrigins, log)

	if cfg.Redis.URL != "" {
		client, err := sharedredis.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.Guard = dedup.NewRedisGuard(client, cfg.Redis.DedupTTL)
		c.closers = append(c.closers, client.Close)
	} else {
		guard := dedup.NewMemoryGuard(cfg.Redis.DedupTTL)
		c.Guard = guard
		c.closers = append(c.closers, func() error { guard.Close(); return nil })
	}

	providers := opts.Providers
	if providers == nil {
		twilioCfg := outbound.TwilioConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			From:       cfg.Twilio.From,
		}
		providers = []outbound.Provider{
			outbound.NewTwilioProvider(twilioCfg, outbound.NewTwilioRestAPI(twilioCfg)),
			outbound.NewMetaProvider(outbound.MetaConfig{
				AccessToken:   cfg.Meta.AccessToken,
				PhoneNumberID: cfg.Meta.PhoneNumberID,
				GraphURL:      cfg.Meta.GraphURL,
				APIVersion:    cfg.Meta.APIVersion,
			}, opts.HTTPClient),
		}
	}
	c.Dispatcher = outbound.NewDispatcher(providers, outbound.Options{
		Order:            cfg.Outbound.ProviderOrder,
		ChunkDelay:       cfg.Outbound.ChunkDelay,
		Timeout:          cfg.Outbound.Timeout,
		FailureThreshold: cfg.Outbound.FailureThreshold,
		RetryTimeout:     cfg.Outbound.RetryTimeout,
	}, log)

	completer := opts.Completer
	if completer == nil {
		if cfg.OpenAI.APIKey == "" {
			log.Warn("OPENAI_API_KEY is not set, every completion will fall back to the apology message")
		}
		completer = ai.NewClient(
			ai.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL),
			ai.Config{
				Model:         cfg.OpenAI.Model,
				Temperature:   cfg.OpenAI.Temperature,
				Instructions:  ai.LoadInstructions(cfg.OpenAI.Instructions, cfg.OpenAI.InstructionsFile),
				HistoryLimit:  cfg.OpenAI.HistoryLimit,
				Timeout:       cfg.OpenAI.Timeout,
				MaxAttempts:   cfg.OpenAI.MaxAttempts,
				BackoffBase:   cfg.OpenAI.BackoffBase,
				BackoffJitter: cfg.OpenAI.BackoffJitter,
			},
			log,
		)
	}

	c.Resolver = service.NewResolver(c.Repository, cfg.Routing.RouteToEmail, log)
	c.Takeover = service.NewTakeoverGate(c.Repository, c.Hub)
	c.Pipeline = service.NewPipeline(service.PipelineDeps{
		Repo:      c.Repository,
		Resolver:  c.Resolver,
		Takeover:  c.Takeover,
		Completer: completer,
		Sender:    c.Dispatcher,
		Guard:     c.Guard,
		Events:    c.Hub,
		Log:       log,
	})
	c.UserService = service.NewUserService(c.Repository, c.JWTService, log)
	c.ThreadSvc = service.NewThreadService(c.Repository, c.Pipeline, c.Hub)
	c.StatsService = service.NewStatsService(c.Repository)

	c.Normalizers = []inbound.Normalizer{
		inbound.NewMetaNormalizer(cfg.Meta.AppSecret),
		inbound.NewTwilioNormalizer(cfg.Twilio.AuthToken, cfg.Twilio.WebhookURL),
	}
	c.Verifier = inbound.NewVerifier(cfg.Meta.VerifyToken)

	c.Health = health.NewChecker(log, healthCheckPeriod)
	c.Health.RegisterDatabaseCheck(c.Repository.Ping)
	c.Health.RegisterBreakerCheck("outbound", c.Dispatcher.BreakerStates)

	return c, nil
}

// Close releases the redis client and background workers
func (c *Container) Close() error {
	var first error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

const healthCheckPeriod = 30 * time.Second
