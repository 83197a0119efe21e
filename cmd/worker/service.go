package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/codinglabe/believe-app/pkg/config"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/queue"
)

type pinger interface {
	Ping(context.Context) error
}

type ServiceParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      pinger
	Handler asynq.Handler
}

// Service runs the asynq server that drains queued notifications.
type Service struct {
	logg   *logger.Logger
	db     pinger
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Handler == nil {
		return nil, errors.New("notification handler is required")
	}

	opt, serverCfg := queue.BuildServerConfig(params.Config.Queue)
	serverCfg.Logger = asynqLogger{logg: params.Logger}
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	mux.Handle(queue.TaskNotificationDeliver, params.Handler)

	return &Service{
		logg:   params.Logger,
		db:     params.DB,
		server: server,
		mux:    mux,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("start task server: %w", err)
	}
	<-ctx.Done()
	s.logg.Info(ctx, "worker context canceled")
	s.server.Shutdown()
	return ctx.Err()
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct {
	logg *logger.Logger
}

func (l asynqLogger) Debug(args ...any) {}

func (l asynqLogger) Info(args ...any) {
	l.logg.Info(context.Background(), fmt.Sprint(args...))
}

func (l asynqLogger) Warn(args ...any) {
	l.logg.Warn(context.Background(), fmt.Sprint(args...))
}

func (l asynqLogger) Error(args ...any) {
	msg := fmt.Sprint(args...)
	l.logg.Error(context.Background(), msg, errors.New(msg))
}

func (l asynqLogger) Fatal(args ...any) {
	l.Error(args...)
}
