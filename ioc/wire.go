//go:build wireinject

package ioc

import (
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption"
	"github.com/google/wire"
)

var BaseSet = wire.NewSet(InitDB, InitMQ)

func InitApp() (*App, error) {
	wire.Build(wire.Struct(new(App), "*"),
		BaseSet,
		redemption.InitModule,
		wire.FieldsOf(new(*redemption.Module), "Hdl", "WebhookHdl", "SweepJob", "Consumer"),
		initGinxServer,
		initCronJobs,
		initConsumers,
	)
	return new(App), nil
}

func initConsumers(c *redemption.ConfirmRedemptionConsumer) []Consumer {
	return []Consumer{c}
}
