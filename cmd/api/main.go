package main

// @title           Gym Membership Backend API
// @version         1.0
// @description     Plan catalog, hosted checkout, payment reconciliation and member entitlements.

// @host      localhost:8888
// @BasePath  /

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/fatflowers/gympass/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	a := fx.New(
		app.Module,
		fx.WithLogger(func(l *zap.SugaredLogger) fxevent.Logger {
			zl := &fxevent.ZapLogger{Logger: l.Desugar()}
			zl.UseLogLevel(zap.DebugLevel)
			return zl
		}),
	)
	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		// the app logger may not have been built
		zap.NewExample().Sugar().Errorf("failed to start app: %v", err)
		return 1
	}

	// SIGINT/SIGTERM
	sig := <-a.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancelStop()
	if err := a.Stop(stopCtx); err != nil {
		zap.NewExample().Sugar().Errorf("failed to stop app: %v", err)
		return 1
	}
	return sig.ExitCode
}
