// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package ioc

import (
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption"
	"github.com/google/wire"
)

// Injectors from wire.go:

func InitApp() (*App, error) {
	db := InitDB()
	mq := InitMQ()
	module, err := redemption.InitModule(db, mq)
	if err != nil {
		return nil, err
	}
	handler := module.Hdl
	webhookHandler := module.WebhookHdl
	component := initGinxServer(handler, webhookHandler)
	sweepStaleRedemptionsJob := module.SweepJob
	v := initCronJobs(sweepStaleRedemptionsJob)
	confirmRedemptionConsumer := module.Consumer
	v2 := initConsumers(confirmRedemptionConsumer)
	app := &App{
		Web:       component,
		Crons:     v,
		Consumers: v2,
	}
	return app, nil
}

// wire.go:

var BaseSet = wire.NewSet(InitDB, InitMQ)

func initConsumers(c *redemption.ConfirmRedemptionConsumer) []Consumer {
	return []Consumer{c}
}
