package checkout

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewGormRepository, fx.As(new(Repository))),
		fx.Annotate(NewStripeProvider, fx.As(new(Provider))),
		NewService,
		NewSweeper,
	),
	fx.Invoke(registerSweeper),
)
