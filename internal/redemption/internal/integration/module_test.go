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

//go:build e2e

package integration

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ecodeclub/mq-api"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/pkg/sequencenumber"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/domain"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/event"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/repository"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/repository/dao"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service/discount"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service/gateway"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/web"
	testioc "github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/test/ioc"
	"github.com/ego-component/egorm"
	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/client/ehttp"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const webhookSecret = "e2e-webhook-secret"

// fakeOgloba 记录每个端点被调用的次数, 默认全部成功
type fakeOgloba struct {
	redeemCalls    atomic.Int64
	confirmCalls   atomic.Int64
	cancelCalls    atomic.Int64
	reconcileCalls atomic.Int64
	// authorizedAmount 网关实际授权的金额, 可能小于请求金额
	authorizedAmount float64
	referenceNumber  int64
}

func (f *fakeOgloba) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gc-restful-gateway/giftCardService/redemption":
			f.redeemCalls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"isSuccessful":    true,
				"amount":          f.authorizedAmount,
				"referenceNumber": f.referenceNumber,
			})
		case "/gc-restful-gateway/giftCardService/confirmTransaction":
			f.confirmCalls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"isSuccessful": true})
		case "/gc-restful-gateway/giftCardService/cancelTransaction":
			f.cancelCalls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"isSuccessful": true})
		case "/gc-restful-gateway/giftCardService/reconciliation":
			f.reconcileCalls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"isSuccessful": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

// fakeShopify 极简GraphQL端点: create返回固定折扣ID, delete总是成功
type fakeShopify struct {
	createCalls atomic.Int64
	deleteCalls atomic.Int64

	mu        sync.Mutex
	lastCodes []string
}

func (f *fakeShopify) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if basic, ok := body.Variables["basicCodeDiscount"].(map[string]any); ok {
			n := f.createCalls.Add(1)
			if code, ok := basic["code"].(string); ok {
				f.mu.Lock()
				f.lastCodes = append(f.lastCodes, code)
				f.mu.Unlock()
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"discountCodeBasicCreate": map[string]any{
						"codeDiscountNode": map[string]any{
							"id": fmt.Sprintf("gid://shopify/DiscountCodeNode/%d", n),
						},
						"userErrors": []any{},
					},
				},
			})
			return
		}
		f.deleteCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"discountCodeDelete": map[string]any{
					"deletedCodeDiscountId": body.Variables["id"],
					"userErrors":            []any{},
				},
			},
		})
	})
}

type RedemptionModuleTestSuite struct {
	suite.Suite
	db *egorm.Component
	q  mq.MQ
}

func (s *RedemptionModuleTestSuite) SetupSuite() {
	s.db = testioc.InitDB()
	require.NoError(s.T(), dao.InitTables(s.db))
	s.q = testioc.InitMQ()
}

func (s *RedemptionModuleTestSuite) TearDownTest() {
	err := s.db.Exec("TRUNCATE TABLE `redemptions`").Error
	require.NoError(s.T(), err)
}

func (s *RedemptionModuleTestSuite) newService(ogloba *fakeOgloba, shopify *fakeShopify) service.Service {
	t := s.T()
	oglobaSrv := httptest.NewServer(ogloba.handler())
	t.Cleanup(oglobaSrv.Close)
	shopifySrv := httptest.NewServer(shopify.handler())
	t.Cleanup(shopifySrv.Close)

	gatewayClient := gateway.NewOglobaClient(
		ehttp.DefaultContainer().Build(ehttp.WithAddr(oglobaSrv.URL)),
		gateway.Config{
			APIKey:     "e2e-key",
			APIVersion: "1.0",
			MerchantId: "M0001",
			TerminalId: "T0001",
			CashierId:  "C0001",
		},
		sequencenumber.NewGenerator(),
	)
	issuer := discount.NewShopifyIssuer(
		ehttp.DefaultContainer().Build(ehttp.WithAddr(shopifySrv.URL)),
		discount.Config{AccessToken: "e2e-token", APIVersion: "2024-07"},
	)
	producer, err := event.NewRedemptionStatusEventProducer(s.q)
	require.NoError(t, err)
	repo := repository.NewRedemptionRepository(dao.NewRedemptionGORMDAO(s.db))
	return service.NewService(repo, gatewayClient, issuer, producer)
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// TestRedeemWebhookConfirmFlow 走完整链路:
// 授权冻结 -> 创建折扣码 -> webhook回调 -> 消费事件 -> 网关确认+对账 -> 台账CONFIRMED
func (s *RedemptionModuleTestSuite) TestRedeemWebhookConfirmFlow() {
	t := s.T()
	ogloba := &fakeOgloba{authorizedAmount: 25.99, referenceNumber: 9876543210}
	shopify := &fakeShopify{}
	svc := s.newService(ogloba, shopify)

	rd, err := svc.Redeem(context.Background(), domain.RedeemRequest{
		CardNumber: "6009100012340000",
		Pin:        "1234",
		Amount:     2599,
		Currency:   "EUR",
	})
	require.NoError(t, err)
	require.NotEmpty(t, rd.DiscountCode)
	require.Equal(t, int64(2599), rd.Amount)
	require.Equal(t, "9876543210", rd.ReferenceNumber)
	require.Equal(t, domain.RedemptionStatusPending, rd.Status)
	require.Equal(t, int64(1), ogloba.redeemCalls.Load())
	require.Equal(t, int64(1), shopify.createCalls.Load())

	// Shopify回调orders/paid, 经webhook入队
	orderPaidProducer, err := event.NewOrderPaidEventProducer(s.q)
	require.NoError(t, err)
	webhookHdl := web.NewWebhookHandler(webhookSecret, orderPaidProducer)
	gin.SetMode(gin.TestMode)
	server := gin.New()
	webhookHdl.PublicRoutes(server)

	payload, err := json.Marshal(map[string]any{
		"id": 820982911946154508,
		"discount_codes": []map[string]any{
			{"code": rd.DiscountCode, "amount": "25.99", "type": "fixed_amount"},
			{"code": "SUMMER10", "amount": "10.00", "type": "percentage"},
		},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks", bytes.NewReader(payload))
	req.Header.Set("X-Shopify-Topic", "orders/paid")
	req.Header.Set("X-Shopify-Hmac-Sha256", signBody(payload))
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	// 消费一条消息, 触发结算
	consumer, err := event.NewConfirmRedemptionConsumer(svc, s.q)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, consumer.Consume(ctx))

	require.Equal(t, int64(1), ogloba.confirmCalls.Load())
	require.Equal(t, int64(1), ogloba.reconcileCalls.Load())

	var entity dao.Redemption
	err = s.db.Where("discount_code = ?", rd.DiscountCode).First(&entity).Error
	require.NoError(t, err)
	require.Equal(t, domain.RedemptionStatusConfirmed.ToUint8(), entity.Status)
	require.Equal(t, "************0000", entity.CardNumber)

	// 状态变更事件已发布
	statusConsumer, err := s.q.Consumer(event.RedemptionStatusEvents, "e2e-status")
	require.NoError(t, err)
	msg, err := statusConsumer.Consume(ctx)
	require.NoError(t, err)
	var evt event.RedemptionStatusEvent
	require.NoError(t, json.Unmarshal(msg.Value, &evt))
	require.Equal(t, rd.DiscountCode, evt.DiscountCode)
	require.Equal(t, domain.RedemptionStatusConfirmed.ToUint8(), evt.Status)

	// 重复消费同一折扣码不会再次调用网关
	require.NoError(t, svc.ConfirmByCode(ctx, rd.DiscountCode))
	require.Equal(t, int64(1), ogloba.confirmCalls.Load())
}

// TestCancelFlow 取消路径: 释放冻结资金并删除折扣码
func (s *RedemptionModuleTestSuite) TestCancelFlow() {
	t := s.T()
	ogloba := &fakeOgloba{authorizedAmount: 10, referenceNumber: 555000111}
	shopify := &fakeShopify{}
	svc := s.newService(ogloba, shopify)

	rd, err := svc.Redeem(context.Background(), domain.RedeemRequest{
		CardNumber: "6009100099991111",
		Pin:        "0000",
		Amount:     1000,
		Currency:   "EUR",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), rd.DiscountCode))
	require.Equal(t, int64(1), ogloba.cancelCalls.Load())
	require.Equal(t, int64(1), shopify.deleteCalls.Load())

	var entity dao.Redemption
	err = s.db.Where("discount_code = ?", rd.DiscountCode).First(&entity).Error
	require.NoError(t, err)
	require.Equal(t, domain.RedemptionStatusCancelled.ToUint8(), entity.Status)

	// 取消是幂等的, 第二次不再触发外部调用
	require.NoError(t, svc.Cancel(context.Background(), rd.DiscountCode))
	require.Equal(t, int64(1), ogloba.cancelCalls.Load())
	require.Equal(t, int64(1), shopify.deleteCalls.Load())

	// 已取消之后订单才支付: 结算静默跳过
	require.NoError(t, svc.ConfirmByCode(context.Background(), rd.DiscountCode))
	require.Equal(t, int64(0), ogloba.confirmCalls.Load())
}

// TestStatusCASRace 两个协调器同时抢一条PENDING记录, 数据库保证只有一个赢
func (s *RedemptionModuleTestSuite) TestStatusCASRace() {
	t := s.T()
	d := dao.NewRedemptionGORMDAO(s.db)
	_, err := d.Insert(context.Background(), dao.Redemption{
		DiscountCode:    "OGL-RACE0001",
		DiscountId:      "gid://shopify/DiscountCodeNode/42",
		ReferenceNumber: "777000888",
		CardNumber:      "************1111",
		Amount:          500,
		Currency:        "EUR",
		Status:          domain.RedemptionStatusPending.ToUint8(),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	targets := []domain.RedemptionStatus{
		domain.RedemptionStatusConfirmed,
		domain.RedemptionStatusCancelled,
	}
	for i := range targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = d.UpdateStatus(context.Background(), "OGL-RACE0001",
				domain.RedemptionStatusPending.ToUint8(), targets[i].ToUint8())
		}(i)
	}
	wg.Wait()

	var winners, losers int
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, dao.ErrStatusConflict):
			losers++
		default:
			t.Fatalf("预期之外的错误: %v", err)
		}
	}
	require.Equal(t, 1, winners)
	require.Equal(t, 1, losers)
}

// TestDuplicateDiscountCode 唯一索引兜底: 同一折扣码不允许入账两次
func (s *RedemptionModuleTestSuite) TestDuplicateDiscountCode() {
	t := s.T()
	d := dao.NewRedemptionGORMDAO(s.db)
	entity := dao.Redemption{
		DiscountCode:    "OGL-DUP00001",
		DiscountId:      "gid://shopify/DiscountCodeNode/43",
		ReferenceNumber: "777000999",
		CardNumber:      "************2222",
		Amount:          500,
		Currency:        "EUR",
		Status:          domain.RedemptionStatusPending.ToUint8(),
	}
	_, err := d.Insert(context.Background(), entity)
	require.NoError(t, err)
	_, err = d.Insert(context.Background(), entity)
	require.ErrorIs(t, err, dao.ErrDuplicateDiscountCode)
}

func TestRedemptionModule(t *testing.T) {
	suite.Run(t, new(RedemptionModuleTestSuite))
}
