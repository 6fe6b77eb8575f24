package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/fx"
)

func TestRunStopsOnContextCancel(t *testing.T) {
	var stopped bool
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app := fx.New(
		fx.NopLogger,
		fx.Invoke(func(lc fx.Lifecycle) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					time.AfterFunc(20*time.Millisecond, cancel)
					return nil
				},
				OnStop: func(context.Context) error {
					stopped = true
					return nil
				},
			})
		}),
	)

	if err := run(ctx, app); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !stopped {
		t.Fatal("expected stop hooks to run")
	}
}

func TestRunReportsBuildError(t *testing.T) {
	app := fx.New(
		fx.NopLogger,
		fx.Invoke(func() error { return errors.New("broken graph") }),
	)
	if err := run(context.Background(), app); err == nil {
		t.Fatal("expected build error")
	}
}

func TestRunReportsStartError(t *testing.T) {
	app := fx.New(
		fx.NopLogger,
		fx.Invoke(func(lc fx.Lifecycle) {
			lc.Append(fx.Hook{OnStart: func(context.Context) error { return errors.New("port in use") }})
		}),
	)
	if err := run(context.Background(), app); err == nil {
		t.Fatal("expected start error")
	}
}
