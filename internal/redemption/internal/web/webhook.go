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

package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/ecodeclub/ekit/slice"
	"github.com/ecodeclub/ginx"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/event"
	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/core/elog"
)

const (
	topicHeader = "X-Shopify-Topic"
	hmacHeader  = "X-Shopify-Hmac-Sha256"

	orderPaidTopic = "orders/paid"
)

var _ ginx.Handler = &WebhookHandler{}

// WebhookHandler 接收Shopify平台回调, 校验签名后把orders/paid转成内部事件
// Shopify要求快速返回200, 否则会反复重投, 所以这里只入队不处理
type WebhookHandler struct {
	secret   string
	producer event.OrderPaidEventProducer
	logger   *elog.Component
}

func NewWebhookHandler(secret string, producer event.OrderPaidEventProducer) *WebhookHandler {
	return &WebhookHandler{
		secret:   secret,
		producer: producer,
		logger:   elog.DefaultLogger,
	}
}

func (h *WebhookHandler) PublicRoutes(server *gin.Engine) {
	server.POST("/webhooks", h.Handle)
}

func (h *WebhookHandler) PrivateRoutes(_ *gin.Engine) {}

type webhookOrder struct {
	ID            int64                 `json:"id"`
	DiscountCodes []webhookDiscountCode `json:"discount_codes"`
}

type webhookDiscountCode struct {
	Code string `json:"code"`
}

func (h *WebhookHandler) Handle(ctx *gin.Context) {
	body, err := ctx.GetRawData()
	if err != nil {
		ctx.Status(http.StatusBadRequest)
		return
	}
	if !h.verifySignature(body, ctx.GetHeader(hmacHeader)) {
		h.logger.Warn("Webhook签名校验失败", elog.String("topic", ctx.GetHeader(topicHeader)))
		ctx.Status(http.StatusUnauthorized)
		return
	}
	// 签名合法后必须返回200, 处理失败只记日志, 依赖Shopify重投恢复
	if ctx.GetHeader(topicHeader) != orderPaidTopic {
		ctx.Status(http.StatusOK)
		return
	}

	var order webhookOrder
	if err = json.Unmarshal(body, &order); err != nil {
		h.logger.Error("解析订单Webhook失败", elog.FieldErr(err))
		ctx.Status(http.StatusOK)
		return
	}
	codes := slice.Map(order.DiscountCodes, func(_ int, src webhookDiscountCode) string {
		return src.Code
	})
	if len(codes) == 0 {
		ctx.Status(http.StatusOK)
		return
	}

	err = h.producer.Produce(ctx.Request.Context(), event.OrderPaidEvent{
		OrderID:       order.ID,
		DiscountCodes: codes,
	})
	if err != nil {
		h.logger.Error("发送订单支付事件失败",
			elog.FieldErr(err),
			elog.Int64("order_id", order.ID),
		)
	}
	ctx.Status(http.StatusOK)
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
