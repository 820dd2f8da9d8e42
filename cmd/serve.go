package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"qms/token-queue/internal/announce"
	"qms/token-queue/internal/auth"
	"qms/token-queue/internal/config"
	"qms/token-queue/internal/engine"
	"qms/token-queue/internal/events"
	"qms/token-queue/internal/httpapi"
	"qms/token-queue/internal/hub"
	"qms/token-queue/internal/metrics"
	"qms/token-queue/internal/store"
	"qms/token-queue/internal/store/postgres"
	"qms/token-queue/internal/telemetry"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, realtime display channel and announcer",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: telemetry.DefaultServiceName,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(a.handler, telemetry.DefaultServiceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	done := a.Start(runCtx)

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("token-queue listening on %s departments=%d counters=%d publishers=%v",
			server.Addr, len(a.engine.Departments()), len(a.engine.Counters()), a.dispatcher.Publishers())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			cancelRun()
			<-done
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	cancelRun()
	<-done
	return nil
}

// app is one fully wired queue: engine, announcer, event fan-out and the
// HTTP surface in front of them.
type app struct {
	engine     *engine.Engine
	player     *announce.Player
	dispatcher *events.Dispatcher
	reporter   *metrics.Reporter
	journal    store.Journal
	handler    http.Handler

	closers []func()
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	layout, err := config.LoadLayout(cfg.LayoutFile)
	if err != nil {
		return nil, err
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	a := &app{dispatcher: events.NewDispatcher(cfg.EventBufferSize)}
	voice := announce.NewVoice(cfg.Announcer, announce.VoiceConfig{
		WebhookURL:     cfg.AnnouncerWebhookURL,
		WebhookToken:   cfg.AnnouncerWebhookToken,
		WordsPerMinute: cfg.AnnouncerWordsPerMinute,
	})
	a.player = announce.NewPlayer(voice, announce.PlayerConfig{QueueSize: cfg.AnnouncerQueueSize})
	a.player.OnChange(func(speaking bool) {
		a.dispatcher.Emit(events.AnnouncerState(speaking, time.Now()))
	})

	a.engine, err = engine.New(engine.Options{
		Departments:           layout.DepartmentModels(),
		Counters:              layout.CounterModels(),
		AverageServiceMinutes: cfg.AverageServiceMinutes,
		LabelFormat:           cfg.LabelFormat,
		Announcer:             a.player,
		Events:                a.dispatcher,
	})
	if err != nil {
		return nil, err
	}

	if err := a.registerPublishers(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	m := metrics.New()
	m.WatchDropped(a.dispatcher.Dropped)
	a.dispatcher.Register("metrics", m)
	a.reporter, err = metrics.NewReporter(a.engine, m, cfg.StatsSchedule)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("stats schedule %q: %w", cfg.StatsSchedule, err)
	}

	displayHub := hub.New()
	snapshot := func() interface{} { return a.engine.Snapshot(cfg.DisplayNextLimit) }
	a.dispatcher.Register("hub", hub.Publisher{Hub: displayHub, Snapshot: snapshot})

	var authenticator *auth.Authenticator
	if cfg.JWTSecret != "" {
		authenticator, err = auth.New(auth.Options{
			Secret:       []byte(cfg.JWTSecret),
			Username:     cfg.AdminUsername,
			PasswordHash: cfg.AdminPasswordHash,
			TTL:          cfg.SessionTTL,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	} else if !cfg.AuthDisabled {
		log.Printf("auth not configured: JWT_SECRET is empty, admin endpoints will reject every request")
	}

	handler := httpapi.NewHandler(a.engine, httpapi.Options{
		Journal:      a.journal,
		Auth:         authenticator,
		AuthDisabled: cfg.AuthDisabled,
		DisplayLimit: cfg.DisplayNextLimit,
		Limiter: httpapi.NewRateLimiter(httpapi.RateLimitConfig{
			IPPerMinute:    cfg.RateLimitPerMinute,
			IPBurst:        cfg.RateLimitBurst,
			KioskPerMinute: cfg.KioskRateLimitPerMinute,
			KioskBurst:     cfg.KioskRateLimitBurst,
		}),
		Metrics: m.Handler(),
		Realtime: httpapi.NewRealtimeHandler(displayHub, httpapi.RealtimeOptions{
			Snapshot: snapshot,
			KnownDepartment: func(code string) bool {
				_, ok := a.engine.Department(code)
				return ok
			},
		}),
	})
	a.handler = handler.Routes()
	return a, nil
}

// registerPublishers wires the journal and every configured broker. A broker
// that cannot be reached at startup is logged and left out.
func (a *app) registerPublishers(ctx context.Context, cfg config.Config) error {
	a.dispatcher.Register("log", events.LogPublisher{})

	if cfg.DatabaseURL != "" {
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("db migrate: %w", err)
		}
		a.journal = pg
	} else {
		a.journal = store.NewMemoryJournal()
	}
	a.dispatcher.Register("journal", events.JournalPublisher{Journal: a.journal})

	if cfg.RedisAddr != "" {
		publisher, err := events.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			log.Printf("redis publisher disabled addr=%s err=%v", cfg.RedisAddr, err)
		} else {
			a.dispatcher.Register("redis", publisher)
			a.closers = append(a.closers, func() { _ = publisher.Close() })
		}
	}
	if cfg.NATSURL != "" {
		publisher, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			log.Printf("nats publisher disabled url=%s err=%v", cfg.NATSURL, err)
		} else {
			a.dispatcher.Register("nats", publisher)
			a.closers = append(a.closers, func() { _ = publisher.Close() })
		}
	}
	if brokers := events.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		publisher := events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		a.dispatcher.Register("kafka", publisher)
		a.closers = append(a.closers, func() { _ = publisher.Close() })
	}
	return nil
}

// Start runs the announcer, the event dispatcher and the stats schedule
// until ctx is done. The returned channel closes once queued events have
// been flushed.
func (a *app) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go a.player.Run(ctx)
	a.reporter.Start()
	go func() {
		defer close(done)
		a.dispatcher.Run(ctx)
		<-a.reporter.Stop().Done()
	}()
	return done
}

// Close releases broker and database connections in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
