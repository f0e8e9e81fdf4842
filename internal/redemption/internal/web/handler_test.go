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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/domain"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	redeemRes  domain.Redemption
	redeemErr  error
	cancelErr  error
	cancelCode string
}

func (f *fakeService) Redeem(_ context.Context, _ domain.RedeemRequest) (domain.Redemption, error) {
	return f.redeemRes, f.redeemErr
}

func (f *fakeService) ConfirmByCode(_ context.Context, _ string) error {
	return nil
}

func (f *fakeService) Cancel(_ context.Context, code string) error {
	f.cancelCode = code
	return f.cancelErr
}

func (f *fakeService) FindStaleByStatus(_ context.Context, _ domain.RedemptionStatus, _ time.Duration, _, _ int) ([]domain.Redemption, error) {
	return nil, nil
}

func newTestServer(svc service.Service, cfg Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewHandler(svc, cfg).PublicRoutes(engine)
	return engine
}

func postJSON(t *testing.T, engine *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	return recorder
}

func TestHandlerRedeem(t *testing.T) {
	t.Parallel()
	enabled := Config{Enabled: true, Currency: "EUR"}

	t.Run("兑换成功_返回折扣码", func(t *testing.T) {
		svc := &fakeService{redeemRes: domain.Redemption{
			DiscountCode:    "OGL-AAAA1111",
			DiscountID:      "gid://shopify/DiscountCodeNode/1",
			ReferenceNumber: "REF-1",
			Amount:          2599,
		}}
		engine := newTestServer(svc, enabled)

		recorder := postJSON(t, engine, "/api/giftcard/redeem",
			RedeemReq{CardNumber: "6364530000000000", Pin: "1234", Amount: 2599})
		assert.Equal(t, http.StatusOK, recorder.Code)

		var resp RedeemResp
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "OGL-AAAA1111", resp.DiscountCode)
		assert.Equal(t, int64(2599), resp.Amount)
	})

	t.Run("网关拒绝_200带失败标记", func(t *testing.T) {
		svc := &fakeService{redeemErr: service.ErrRedemptionRejected}
		engine := newTestServer(svc, enabled)

		recorder := postJSON(t, engine, "/api/giftcard/redeem",
			RedeemReq{CardNumber: "6364530000000000", Amount: 2599})
		assert.Equal(t, http.StatusOK, recorder.Code)

		var resp RedeemResp
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.NotEmpty(t, resp.Message)
	})

	t.Run("功能未启用_400", func(t *testing.T) {
		engine := newTestServer(&fakeService{}, Config{Enabled: false})

		recorder := postJSON(t, engine, "/api/giftcard/redeem",
			RedeemReq{CardNumber: "6364530000000000", Amount: 2599})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("缺少卡号_400", func(t *testing.T) {
		engine := newTestServer(&fakeService{}, enabled)

		recorder := postJSON(t, engine, "/api/giftcard/redeem", RedeemReq{Amount: 2599})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("系统错误_500", func(t *testing.T) {
		svc := &fakeService{redeemErr: errors.New("db down")}
		engine := newTestServer(svc, enabled)

		recorder := postJSON(t, engine, "/api/giftcard/redeem",
			RedeemReq{CardNumber: "6364530000000000", Amount: 2599})
		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	})
}

func TestHandlerCancel(t *testing.T) {
	t.Parallel()
	cfg := Config{Enabled: true, Currency: "EUR"}

	t.Run("取消成功_200", func(t *testing.T) {
		svc := &fakeService{}
		engine := newTestServer(svc, cfg)

		recorder := postJSON(t, engine, "/api/giftcard/cancel", CancelReq{DiscountCode: "OGL-AAAA1111"})
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "OGL-AAAA1111", svc.cancelCode)
	})

	t.Run("未知折扣码_404", func(t *testing.T) {
		svc := &fakeService{cancelErr: service.ErrRedemptionNotFound}
		engine := newTestServer(svc, cfg)

		recorder := postJSON(t, engine, "/api/giftcard/cancel", CancelReq{DiscountCode: "OGL-UNKNOWN1"})
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("取消已确认的兑换_400", func(t *testing.T) {
		svc := &fakeService{cancelErr: service.ErrAlreadyFinalized}
		engine := newTestServer(svc, cfg)

		recorder := postJSON(t, engine, "/api/giftcard/cancel", CancelReq{DiscountCode: "OGL-AAAA1111"})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("缺少折扣码_400", func(t *testing.T) {
		engine := newTestServer(&fakeService{}, cfg)

		recorder := postJSON(t, engine, "/api/giftcard/cancel", CancelReq{})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("系统错误_500", func(t *testing.T) {
		svc := &fakeService{cancelErr: errors.New("db down")}
		engine := newTestServer(svc, cfg)

		recorder := postJSON(t, engine, "/api/giftcard/cancel", CancelReq{DiscountCode: "OGL-AAAA1111"})
		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	})
}
