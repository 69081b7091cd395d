// Package service wires the long-lived components of the check-in engine:
// the store, the event queue, the dispatcher, and the supervised chat
// connections.
package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tallybot/tally/internal/adapters/chat"
	"github.com/tallybot/tally/internal/adapters/http/api"
	"github.com/tallybot/tally/internal/adapters/mq/queue"
	"github.com/tallybot/tally/internal/adapters/store"
	"github.com/tallybot/tally/internal/config"
	"github.com/tallybot/tally/internal/dispatch"
	"github.com/tallybot/tally/internal/domain/daywindow"
	"github.com/tallybot/tally/internal/domain/model"
	"github.com/tallybot/tally/internal/supervisor"
	"github.com/tallybot/tally/pkg/logger"
)

const httpShutdownTimeout = 5 * time.Second

// Service owns the three long-lived goroutines: the dispatcher, the stream
// producer, and the leaderboard listener.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     store.Store
	queue     *queue.InMemoryQueue
	runner    *dispatch.Runner
	sup       *supervisor.Supervisor
	handoff   *supervisor.Handoff
	connector chat.Connector
	sender    chat.Sender

	// Configuration
	addr          string
	token         string
	streamURL     string
	apiURL        string
	triggerWord   string
	listenChannel string
	reportChannel string
	storeBackend  string
	databaseURL   string
	dbMaxOpen     int
	dbMaxIdle     int
	queueSize     int
	retryDelay    time.Duration
	dayLength     time.Duration
	maxJitter     time.Duration

	// State
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig copies all process configuration into the service.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.addr = cfg.Addr
		s.token = cfg.Token
		s.streamURL = cfg.StreamURL
		s.apiURL = cfg.APIURL
		s.triggerWord = cfg.TriggerWord
		s.listenChannel = cfg.ListenChannel
		s.reportChannel = cfg.ReportChannel
		s.storeBackend = cfg.Store
		s.databaseURL = cfg.DatabaseURL
		s.dbMaxOpen = cfg.DBMaxOpenConns
		s.dbMaxIdle = cfg.DBMaxIdleConns
		s.queueSize = cfg.QueueSize
		s.retryDelay = cfg.RetryDelay
		s.dayLength = cfg.DayLength
		s.maxJitter = cfg.MaxJitter
	}
}

// WithStore injects a persistence backend, bypassing the configured one.
func WithStore(st store.Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithConnector injects the stream connector, bypassing the websocket one.
func WithConnector(c chat.Connector) Option {
	return func(s *Service) {
		s.connector = c
	}
}

// WithSender injects the outbound message sender.
func WithSender(sender chat.Sender) Option {
	return func(s *Service) {
		s.sender = sender
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithClock sets the time source used for the day window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		addr:          ":9080",
		triggerWord:   "tally",
		listenChannel: "checkins",
		reportChannel: "general",
		storeBackend:  config.StoreMemory,
		queueSize:     1024,
		retryDelay:    10 * time.Second,
		dayLength:     24 * time.Hour,
		maxJitter:     15 * time.Minute,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the components and launches the dispatcher, the stream
// producer, and the leaderboard listener.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting check-in service...")

	if s.store == nil {
		st, err := s.buildStore(ctx)
		if err != nil {
			return fmt.Errorf("build store: %w", err)
		}
		s.store = st
	}

	s.queue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
	)

	window := daywindow.New(s.now(),
		daywindow.WithDayLength(s.dayLength),
		daywindow.WithMaxJitter(s.maxJitter),
	)
	s.runner = dispatch.NewRunner(s.queue, s.store, window,
		dispatch.WithClock(s.now),
	)

	if s.connector == nil {
		s.connector = chat.NewWSConnector(s.streamURL, s.token,
			chat.WithTrigger(s.triggerWord),
			chat.WithChannels(s.listenChannel, s.reportChannel),
		)
	}
	if s.sender == nil && s.apiURL != "" {
		s.sender = chat.NewHTTPSender(s.apiURL, s.token)
	}

	s.handoff = supervisor.NewHandoff()
	s.sup = supervisor.New(s.connector, s.handoff,
		supervisor.WithRetryDelay(s.retryDelay),
	)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.runner.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		_ = s.sup.RunStream(runCtx, s.queue)
	}()
	go func() {
		defer s.wg.Done()
		_ = s.sup.RunListener(runCtx, s.serveHTTP)
	}()

	s.started = true
	s.logger.Info(ctx, "check-in service started",
		logger.String("addr", s.addr),
		logger.String("store", s.storeBackend),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("dayLength", s.dayLength),
		logger.Duration("maxJitter", s.maxJitter),
	)

	return nil
}

func (s *Service) buildStore(ctx context.Context) (store.Store, error) {
	switch s.storeBackend {
	case config.StorePostgres:
		s.logger.Info(ctx, "using postgres store")
		return store.NewPostgres(ctx, s.databaseURL, s.dbMaxOpen, s.dbMaxIdle)
	default:
		s.logger.Info(ctx, "using in-memory store")
		return store.NewMemory(), nil
	}
}

// serveHTTP binds the leaderboard listener once the connection metadata is
// available. It blocks until the server fails or ctx is cancelled.
func (s *Service) serveHTTP(ctx context.Context, meta model.Metadata) error {
	mux := http.NewServeMux()
	api.NewServer(s.store, s.sender, meta, s).Register(ctx, mux)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping check-in service...")

	if s.cancel != nil {
		s.cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
	defer cancel()
	_ = s.runner.Shutdown(shutdownCtx)

	s.wg.Wait()

	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "check-in service stopped")
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":    s.started,
		"store":      s.storeBackend,
		"queue_size": s.queueSize,
	}

	if s.started {
		stats["queue_length"] = s.queue.Len(context.Background())
		stats["processed"] = s.runner.Processed()
		stats["dropped"] = s.runner.Dropped()
		stats["registered_today"] = s.runner.RegisteredToday()
		stats["window_end"] = s.runner.WindowEnd().Format(time.RFC3339)
		stats["stream_reconnects"] = s.sup.StreamReconnects()
		stats["listener_retries"] = s.sup.ListenerReconnects()
	}

	return stats
}
