package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/relay"
	"github.com/vovakirdan/relaychat/internal/session"
	"github.com/vovakirdan/relaychat/internal/store"
	"github.com/vovakirdan/relaychat/internal/store/pebble"
	"github.com/vovakirdan/relaychat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/relaychat/internal/transport/http"
)

// App wires the store, the relay channel and the session controller.
type App struct {
	cfg     config.Config
	store   store.Store
	relay   *relay.Channel
	session *session.Controller
	log     *zerolog.Logger

	stopLoop context.CancelFunc
	loopDone chan struct{}
}

// OpenStore opens the configured persistence backend.
func OpenStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendPebble:
		kv, err := pebble.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("init pebble store: %w", err)
		}
		return store.NewLocal(kv), nil
	case config.BackendSQLite, "":
		kv, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		return store.NewLocal(kv), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// New constructs the application. Nothing is started until Start.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("backend", cfg.Store.Backend).Str("path", cfg.Store.Path).Msg("store initialized")

	ch := relay.New(cfg.RelayURL, relay.WithBackoff(cfg.ReconnectBackoff), relay.WithLogger(logger))
	ctrl := session.New(st, ch, ch.Topics(), session.OptionsFromConfig(cfg), logger)

	return &App{
		cfg:     cfg,
		store:   st,
		relay:   ch,
		session: ctrl,
		log:     logger,
	}, nil
}

// Session returns the controller driving the client.
func (a *App) Session() *session.Controller {
	return a.session
}

// Store returns the opened store.
func (a *App) Store() store.Store {
	return a.store
}

// Start runs the session loop and restores saved state.
func (a *App) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	a.stopLoop = cancel
	a.loopDone = make(chan struct{})
	go func() {
		defer close(a.loopDone)
		a.session.Run(loopCtx)
	}()

	if err := a.session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	a.log.Info().Str("relay", a.cfg.RelayURL).Msg("relay chat started")
	return nil
}

// Serve exposes the local API and blocks until ctx is cancelled or the
// server fails. Start must have been called.
func (a *App) Serve(ctx context.Context) error {
	server := transporthttp.NewServer(a.session, a.cfg.HTTP, a.log)
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", server.Addr).Msg("local api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}

// Close tears down relay streams, stops the loop and closes the store.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.stopLoop != nil {
		if err := a.session.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session: %w", err))
		}
		a.stopLoop()
		<-a.loopDone
	} else {
		a.relay.Close()
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close store")
		errs = append(errs, err)
	} else {
		a.log.Info().Msg("store closed")
	}
	return errors.Join(errs...)
}
