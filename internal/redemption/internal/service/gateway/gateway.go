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

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/ecodeclub/ekit/retry"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/pkg/sequencenumber"
	"github.com/go-resty/resty/v2"
	"github.com/gotomicro/ego/client/ehttp"
	"github.com/gotomicro/ego/core/elog"
)

var (
	// ErrIndeterminate 网关调用超时且结果未知
	// redemption/confirmTransaction 不是幂等的, 调用方绝不能把它当作普通失败去重试
	ErrIndeterminate = errors.New("网关调用结果未知")

	ErrExceedTheMaximumNumberOfRetries = errors.New("超过最大重试次数")
)

const (
	redemptionPath     = "/gc-restful-gateway/giftCardService/redemption"
	confirmPath        = "/gc-restful-gateway/giftCardService/confirmTransaction"
	cancelPath         = "/gc-restful-gateway/giftCardService/cancelTransaction"
	reconciliationPath = "/gc-restful-gateway/giftCardService/reconciliation"
)

//go:generate mockgen -source=./gateway.go -package=gatewaymocks -destination=./mocks/gateway.mock.go -typed Client
type Client interface {
	// Redeem 冻结卡内资金, 网关拒绝(余额不足/PIN错误等)通过 RedeemResponse 报告而非error
	Redeem(ctx context.Context, req RedeemRequest) (RedeemResponse, error)
	// ConfirmTransaction 只允许在成功路径上对同一引用号调用一次
	ConfirmTransaction(ctx context.Context, referenceNumber string) error
	CancelTransaction(ctx context.Context, referenceNumber string) error
	Reconcile(ctx context.Context, businessDate string, records []ReconciliationRecord) error
	// NewReconciliationRecord 组装单条对账记录, 终端/收银员标识来自网关配置
	NewReconciliationRecord(referenceNumber, cardNumber, currency string, amount int64) ReconciliationRecord
}

type RedeemRequest struct {
	CardNumber string
	PinCode    string
	// Amount 请求冻结的金额, 单位为分
	Amount   int64
	Currency string
}

type RedeemResponse struct {
	Approved        bool
	ReferenceNumber string
	// AuthorizedAmount 网关实际授权的金额, 单位为分, 可能小于请求金额
	AuthorizedAmount int64
	Reason           string
}

type ReconciliationRecord struct {
	TerminalTxNo    string  `json:"terminalTxNo"`
	LineCount       int     `json:"lineCount"`
	TerminalId      string  `json:"terminalId"`
	CashierId       string  `json:"cashierId"`
	TransactionNo   string  `json:"transactionNumber"`
	ReferenceNumber string  `json:"referenceNumber"`
	TransactionType string  `json:"transactionType"`
	CardNumber      string  `json:"cardNumber"`
	Currency        string  `json:"currency"`
	Amount          float64 `json:"amount"`
	FinalStatus     string  `json:"finalStatus"`
}

type Config struct {
	APIKey     string
	APIVersion string
	MerchantId string
	TerminalId string
	CashierId  string
}

type OglobaClient struct {
	client      *ehttp.Component
	cfg         Config
	snGenerator *sequencenumber.Generator
	l           *elog.Component

	initialInterval time.Duration
	maxInterval     time.Duration
	maxRetries      int32
}

func NewOglobaClient(client *ehttp.Component, cfg Config, snGenerator *sequencenumber.Generator) *OglobaClient {
	return &OglobaClient{
		client:          client,
		cfg:             cfg,
		snGenerator:     snGenerator,
		l:               elog.DefaultLogger,
		initialInterval: 100 * time.Millisecond,
		maxInterval:     1 * time.Second,
		maxRetries:      3,
	}
}

type gatewayResponse struct {
	IsSuccessful    bool        `json:"isSuccessful"`
	Amount          float64     `json:"amount"`
	ReferenceNumber json.Number `json:"referenceNumber"`
	ErrorMessage    string      `json:"errorMessage"`
}

func (o *OglobaClient) Redeem(ctx context.Context, req RedeemRequest) (RedeemResponse, error) {
	txNumber := o.snGenerator.Generate()
	var res gatewayResponse
	resp, err := o.request(ctx).
		SetBody(map[string]any{
			"merchantId":        o.cfg.MerchantId,
			"terminalId":        o.cfg.TerminalId,
			"cashierId":         o.cfg.CashierId,
			"transactionNumber": txNumber,
			"amount":            toDecimal(req.Amount),
			"cardNumber":        req.CardNumber,
			"pinCode":           req.PinCode,
		}).
		SetResult(&res).
		Post(redemptionPath)
	if err != nil {
		if isTimeout(err) {
			// 冻结请求已发出但结果未知, 留给人工对账, 不能换事务号盲目重试
			o.l.Error("礼品卡冻结结果未知",
				elog.String("transaction_number", txNumber),
				elog.FieldErr(err),
			)
			return RedeemResponse{}, fmt.Errorf("%w: %w", ErrIndeterminate, err)
		}
		return RedeemResponse{}, fmt.Errorf("请求网关冻结资金失败: %w", err)
	}
	if resp.IsError() {
		return RedeemResponse{}, fmt.Errorf("网关冻结资金响应异常: %s", resp.Status())
	}
	if !res.IsSuccessful {
		return RedeemResponse{Approved: false, Reason: res.ErrorMessage}, nil
	}
	return RedeemResponse{
		Approved:         true,
		ReferenceNumber:  res.ReferenceNumber.String(),
		AuthorizedAmount: toCents(res.Amount),
	}, nil
}

func (o *OglobaClient) ConfirmTransaction(ctx context.Context, referenceNumber string) error {
	var res gatewayResponse
	resp, err := o.request(ctx).
		SetBody(map[string]any{
			"merchantId":      o.cfg.MerchantId,
			"terminalId":      o.cfg.TerminalId,
			"cashierId":       o.cfg.CashierId,
			"referenceNumber": referenceNumber,
		}).
		SetResult(&res).
		Post(confirmPath)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %w", ErrIndeterminate, err)
		}
		return fmt.Errorf("请求网关确认事务失败: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("网关确认事务响应异常: %s", resp.Status())
	}
	if !res.IsSuccessful {
		return fmt.Errorf("网关拒绝确认事务: %s", res.ErrorMessage)
	}
	return nil
}

// CancelTransaction 释放冻结资金, 幂等性由网关侧假定但不保证, 瞬时失败可重试
func (o *OglobaClient) CancelTransaction(ctx context.Context, referenceNumber string) error {
	return o.withRetry(func() error {
		resp, err := o.request(ctx).
			SetBody(map[string]any{
				"merchantId":      o.cfg.MerchantId,
				"terminalId":      o.cfg.TerminalId,
				"cashierId":       o.cfg.CashierId,
				"referenceNumber": referenceNumber,
			}).
			Post(cancelPath)
		if err != nil {
			return fmt.Errorf("请求网关取消事务失败: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("网关取消事务响应异常: %s", resp.Status())
		}
		return nil
	})
}

func (o *OglobaClient) Reconcile(ctx context.Context, businessDate string, records []ReconciliationRecord) error {
	return o.withRetry(func() error {
		resp, err := o.request(ctx).
			SetBody(map[string]any{
				"merchantId":            o.cfg.MerchantId,
				"businessDate":          businessDate,
				"reconciliationRecords": records,
			}).
			Post(reconciliationPath)
		if err != nil {
			return fmt.Errorf("请求网关对账失败: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("网关对账响应异常: %s", resp.Status())
		}
		return nil
	})
}

// NewReconciliationRecord 卡号使用台账中已脱敏的值
func (o *OglobaClient) NewReconciliationRecord(referenceNumber, cardNumber, currency string, amount int64) ReconciliationRecord {
	return ReconciliationRecord{
		TerminalTxNo:    "1",
		LineCount:       1,
		TerminalId:      o.cfg.TerminalId,
		CashierId:       o.cfg.CashierId,
		TransactionNo:   o.snGenerator.Generate(),
		ReferenceNumber: referenceNumber,
		TransactionType: "P",
		CardNumber:      cardNumber,
		Currency:        currency,
		Amount:          toDecimal(amount),
		FinalStatus:     "N",
	}
}

func (o *OglobaClient) request(ctx context.Context) *resty.Request {
	return o.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-WSRG-API-Version", o.cfg.APIVersion).
		SetHeader("Authorization", "Basic "+o.cfg.APIKey)
}

func (o *OglobaClient) withRetry(fn func() error) error {
	strategy, _ := retry.NewExponentialBackoffRetryStrategy(o.initialInterval, o.maxInterval, o.maxRetries)
	for {
		err := fn()
		if err == nil {
			return nil
		}
		next, ok := strategy.Next()
		if !ok {
			return fmt.Errorf("%w: %w", ErrExceedTheMaximumNumberOfRetries, err)
		}
		time.Sleep(next)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func toDecimal(cents int64) float64 {
	return float64(cents) / 100
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
