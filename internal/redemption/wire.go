// Copyright 2023 ecodeclub
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build wireinject

package redemption

import (
	"sync"

	"github.com/ecodeclub/mq-api"
	"github.com/ego-component/egorm"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/pkg/sequencenumber"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/event"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/repository"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/repository/dao"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/web"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/ioc"
	"github.com/google/wire"
)

func InitModule(db *egorm.Component, q mq.MQ) (*Module, error) {
	wire.Build(
		wire.Struct(new(Module), "*"),
		InitService,
		ioc.InitWebConfig,
		web.NewHandler,
		initWebhookHandler,
		initConfirmRedemptionConsumer,
		ioc.InitSweepJob,
	)
	return new(Module), nil
}

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
func initConfirmRedemptionConsumer(svc service.Service, q mq.MQ) *event.ConfirmRedemptionConsumer {
	c, err := event.NewConfirmRedemptionConsumer(svc, q)
	if err != nil {
		panic(err)
	}
	return c
}
