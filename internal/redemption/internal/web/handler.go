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
	"errors"
	"net/http"

	"github.com/ecodeclub/ginx"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/domain"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/errs"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/core/elog"
)

var _ ginx.Handler = &Handler{}

// Config 结账页调用方的可配置行为
type Config struct {
	// Enabled 商户级开关, 关闭后结账页的兑换入口直接拒绝
	Enabled bool `yaml:"enabled"`
	// Currency 请求未携带币种时的默认值
	Currency string `yaml:"currency"`
}

type Handler struct {
	svc    service.Service
	cfg    Config
	logger *elog.Component
}

func NewHandler(svc service.Service, cfg Config) *Handler {
	return &Handler{
		svc:    svc,
		cfg:    cfg,
		logger: elog.DefaultLogger,
	}
}

// PublicRoutes 结账页经由店面直接调用, 不走会员登录态
func (h *Handler) PublicRoutes(server *gin.Engine) {
	g := server.Group("/api/giftcard")
	g.POST("/redeem", h.Redeem)
	g.POST("/cancel", h.Cancel)
}

func (h *Handler) PrivateRoutes(_ *gin.Engine) {}

func (h *Handler) Redeem(ctx *gin.Context) {
	if !h.cfg.Enabled {
		ctx.JSON(http.StatusBadRequest, RedeemResp{Success: false, Message: errs.RedemptionDisabled.Msg})
		return
	}
	var req RedeemReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, RedeemResp{Success: false, Message: "请求格式非法"})
		return
	}
	if req.CardNumber == "" || req.Amount <= 0 {
		ctx.JSON(http.StatusBadRequest, RedeemResp{Success: false, Message: "卡号和金额不能为空"})
		return
	}
	if req.Currency == "" {
		req.Currency = h.cfg.Currency
	}

	r, err := h.svc.Redeem(ctx.Request.Context(), domain.RedeemRequest{
		CardNumber: req.CardNumber,
		Pin:        req.Pin,
		Amount:     req.Amount,
		Currency:   req.Currency,
	})
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, RedeemResp{
			Success:         true,
			DiscountCode:    r.DiscountCode,
			DiscountID:      r.DiscountID,
			ReferenceNumber: r.ReferenceNumber,
			Amount:          r.Amount,
		})
	case errors.Is(err, service.ErrRedemptionRejected):
		// 网关拒绝(余额不足/PIN错误)属于正常业务结果, 不算失败
		ctx.JSON(http.StatusOK, RedeemResp{Success: false, Message: errs.RedemptionRejected.Msg})
	default:
		h.logger.Error("礼品卡兑换失败", elog.FieldErr(err))
		ctx.JSON(http.StatusInternalServerError, RedeemResp{Success: false, Message: errs.SystemError.Msg})
	}
}

func (h *Handler) Cancel(ctx *gin.Context) {
	var req CancelReq
	if err := ctx.ShouldBindJSON(&req); err != nil || req.DiscountCode == "" {
		ctx.JSON(http.StatusBadRequest, CancelResp{Success: false, Message: "请求格式非法"})
		return
	}

	err := h.svc.Cancel(ctx.Request.Context(), req.DiscountCode)
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, CancelResp{Success: true})
	case errors.Is(err, service.ErrRedemptionNotFound):
		ctx.JSON(http.StatusNotFound, CancelResp{Success: false, Message: errs.RedemptionNotFound.Msg})
	case errors.Is(err, service.ErrAlreadyFinalized):
		ctx.JSON(http.StatusBadRequest, CancelResp{Success: false, Message: errs.RedemptionFinal.Msg})
	default:
		h.logger.Error("取消礼品卡兑换失败",
			elog.FieldErr(err),
			elog.String("discount_code", req.DiscountCode),
		)
		ctx.JSON(http.StatusInternalServerError, CancelResp{Success: false, Message: errs.SystemError.Msg})
	}
}
