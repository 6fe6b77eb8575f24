package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/storepay/internal/config"
	"github.com/polkiloo/storepay/internal/messaging"
	"github.com/polkiloo/storepay/internal/worker"
)

// Module wires application services, runtime components, and lifecycle hooks.
var Module = fx.Options(
	fx.Provide(
		NewPaymentFacade,
		newHTTPServer,
		newTransferProcessor,
		newExpirySweeper,
	),
	fx.Invoke(registerLifecycle),
)

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

func newHTTPServer(p serverParams) *http.Server {
	return &http.Server{
		Addr:    p.Config.RunAddress,
		Handler: p.Router,
	}
}

type workerParams struct {
	fx.In

	Facade *PaymentFacade
	Config *config.Config
	Logger *slog.Logger
}

func newTransferProcessor(p workerParams) *worker.TransferProcessor {
	return worker.NewTransferProcessor(
		p.Facade,
		p.Config.BackfillInterval,
		p.Config.WorkerPoolSize,
		p.Logger,
	)
}

func newExpirySweeper(p workerParams) *worker.ExpirySweeper {
	return worker.NewExpirySweeper(
		p.Facade,
		p.Config.ExpirySweepInterval,
		p.Config.ExpiryBatchSize,
		p.Logger,
	)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Backfill   *worker.TransferProcessor
	Sweeper    *worker.ExpirySweeper
	Dispatcher *messaging.OutboxDispatcher
	Config     *config.Config
}

func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting storepay", slog.String("addr", p.Server.Addr))
			// the start context expires once startup completes
			runCtx := context.WithoutCancel(ctx)
			p.Dispatcher.Start(runCtx)
			p.Sweeper.Start(runCtx)
			if p.Config.BackfillEnabled() {
				p.Backfill.Start(runCtx)
			} else {
				p.Logger.Info("sepay api token not set, transaction backfill disabled")
			}
			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("http server terminated", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx := ctx
			cancel := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, cancel = context.WithTimeout(ctx, p.Config.ShutdownTimeout)
			}
			defer cancel()

			err := p.Server.Shutdown(shutdownCtx)

			p.Backfill.Stop()
			p.Sweeper.Stop()
			p.Dispatcher.Stop()

			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			p.Logger.Info("storepay stopped")
			return nil
		},
	})
}
