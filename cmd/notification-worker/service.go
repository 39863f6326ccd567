package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/stagecall/api/controllers"
	"github.com/angelmondragon/stagecall/pkg/config"
	"github.com/angelmondragon/stagecall/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

type runner interface {
	Run(ctx context.Context) error
}

type stopper interface {
	Stop()
}

type ServiceParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	Dependencies map[string]controllers.Pinger
	Consumer     runner
	Cron         runner
	Reminders    stopper
	OpsHandler   http.Handler
}

// Service runs the queue consumer, the cron loop and the ops server until ctx ends.
type Service struct {
	cfg       *config.Config
	logg      *logger.Logger
	deps      map[string]controllers.Pinger
	consumer  runner
	cron      runner
	reminders stopper
	server    *http.Server
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("queue consumer is required")
	}
	if params.Cron == nil {
		return nil, errors.New("cron service is required")
	}
	if params.Reminders == nil {
		return nil, errors.New("reminder scheduler is required")
	}
	var server *http.Server
	if params.OpsHandler != nil {
		server = &http.Server{
			Addr:              ":" + params.Config.App.Port,
			Handler:           params.OpsHandler,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return &Service{
		cfg:       params.Config,
		logg:      params.Logger,
		deps:      params.Dependencies,
		consumer:  params.Consumer,
		cron:      params.Cron,
		reminders: params.Reminders,
		server:    server,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	names := make([]string, 0, len(s.deps))
	for name := range s.deps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dep := s.deps[name]
		if dep == nil {
			continue
		}
		if err := pingDependency(ctx, s.logg, name, dep.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks until ctx is canceled or a component fails. Reminder timers are
// stopped before it returns. The first cron cycle re-arms reminders.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.reminders.Stop()

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("queue consumer: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.cron.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("cron service: %w", err)
		}
		return nil
	})
	if s.server != nil {
		g.Go(func() error {
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return s.server.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	if err != nil {
		return err
	}
	s.logg.Info(ctx, "worker context canceled")
	return ctx.Err()
}
