// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package redemption

import (
	"github.com/ecodeclub/mq-api"
	"github.com/ego-component/egorm"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/pkg/sequencenumber"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/event"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/repository"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/repository/dao"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/web"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/ioc"
	"gorm.io/gorm"
	"sync"
)

// Injectors from wire.go:

func InitModule(db *gorm.DB, q mq.MQ) (*Module, error) {
	service := InitService(db, q)
	config := ioc.InitWebConfig()
	handler := web.NewHandler(service, config)
	webhookHandler := initWebhookHandler(q)
	confirmRedemptionConsumer := initConfirmRedemptionConsumer(service, q)
	sweepStaleRedemptionsJob := ioc.InitSweepJob(service)
	module := &Module{
		Hdl:        handler,
		WebhookHdl: webhookHandler,
		Svc:        service,
		Consumer:   confirmRedemptionConsumer,
		SweepJob:   sweepStaleRedemptionsJob,
	}
	return module, nil
}

// wire.go:

var (
	once = &sync.Once{}
	svc  service.Service
)

func InitService(db *egorm.Component, q mq.MQ) Service {
	once.Do(func() {
		err := dao.InitTables(db)
		if err != nil {
			panic(err)
		}
		d := dao.NewRedemptionGORMDAO(db)
		r := repository.NewRedemptionRepository(d)
		producer, err := event.NewRedemptionStatusEventProducer(q)
		if err != nil {
			panic(err)
		}
		gatewayClient := ioc.InitOglobaClient(sequencenumber.NewGenerator())
		issuer := ioc.InitShopifyIssuer()
		svc = service.NewService(r, gatewayClient, issuer, producer)
	})
	return svc
}

func initWebhookHandler(q mq.MQ) *web.WebhookHandler {
	producer, err := event.NewOrderPaidEventProducer(q)
	if err != nil {
		panic(err)
	}
	return web.NewWebhookHandler(ioc.WebhookSecret(), producer)
}

// 消费者只构造不启动, 由main统一Start
func initConfirmRedemptionConsumer(svc2 service.Service, q mq.MQ) *event.ConfirmRedemptionConsumer {
	c, err := event.NewConfirmRedemptionConsumer(svc2, q)
	if err != nil {
		panic(err)
	}
	return c
}
