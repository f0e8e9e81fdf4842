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

package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"time"

	"github.com/ecodeclub/mq-api"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/domain"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service/discount"
	"github.com/gotomicro/ego/core/elog"
	"golang.org/x/sync/errgroup"
)

// Service 与 service.Service 方法集一致; 在本地声明以避免 service <-> event 的导入环
type Service interface {
	Redeem(ctx context.Context, req domain.RedeemRequest) (domain.Redemption, error)
	ConfirmByCode(ctx context.Context, code string) error
	Cancel(ctx context.Context, code string) error
	FindStaleByStatus(ctx context.Context, status domain.RedemptionStatus, stale time.Duration, offset, limit int) ([]domain.Redemption, error)
}

// ConfirmRedemptionConsumer 消费orders/paid事件, 把订单上出现的礼品卡折扣码逐一结算
type ConfirmRedemptionConsumer struct {
	svc      Service
	consumer mq.Consumer
	logger   *elog.Component
}

func NewConfirmRedemptionConsumer(svc Service, q mq.MQ) (*ConfirmRedemptionConsumer, error) {
	const groupID = "redemption"
	consumer, err := q.Consumer(OrderPaidEvents, groupID)
	if err != nil {
		return nil, err
	}
	return &ConfirmRedemptionConsumer{
		svc:      svc,
		consumer: consumer,
		logger:   elog.DefaultLogger,
	}, nil
}

func (c *ConfirmRedemptionConsumer) Start(ctx context.Context) {
	go func() {
		for {
			er := c.Consume(ctx)
			if er != nil {
				c.logger.Error("消费订单支付事件失败", elog.FieldErr(er))
			}
		}
	}()
}

func (c *ConfirmRedemptionConsumer) Consume(ctx context.Context) error {
	msg, err := c.consumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("获取消息失败: %w", err)
	}

	var evt OrderPaidEvent
	err = json.Unmarshal(msg.Value, &evt)
	if err != nil {
		return fmt.Errorf("解析消息失败: %w", err)
	}

	// 同一订单上可能有多个礼品卡折扣码, 并发结算, 单个失败不影响其余
	var eg errgroup.Group
	for _, code := range evt.DiscountCodes {
		code := code
		if !strings.HasPrefix(code, discount.CodePrefix) {
			continue
		}
		eg.Go(func() error {
			er := c.svc.ConfirmByCode(ctx, code)
			if er != nil {
				c.logger.Error("结算兑换失败",
					elog.FieldErr(er),
					elog.String("discount_code", code),
					elog.Int64("order_id", evt.OrderID),
				)
			}
			return er
		})
	}
	return eg.Wait()
}
