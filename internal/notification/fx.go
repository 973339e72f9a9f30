package notification

import (
	chargedomain "github.com/smallbiznis/recurra/internal/charge/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(New),
	fx.Provide(func(d *Dispatcher) chargedomain.Notifier { return d }),
	fx.Provide(
		fx.Annotate(
			func(d *Dispatcher) chargedomain.PaidHook { return d.PaidHook },
			fx.ResultTags(`group:"charge_paid_hooks"`),
		),
	),
	fx.Invoke(registerShutdown),
)

func registerShutdown(lc fx.Lifecycle, d *Dispatcher) {
	lc.Append(fx.StopHook(d.Wait))
}
