package scheduler

import (
	"context"

	"github.com/suscribo/suscribo/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Provide(NewRunner),
	fx.Invoke(registerRunner),
)

func registerRunner(lc fx.Lifecycle, cfg config.Config, runner *Runner) {
	if !cfg.SweepEnabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return runner.Start()
		},
		OnStop: func(context.Context) error {
			runner.Stop()
			return nil
		},
	})
}
