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

package discount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/gotomicro/ego/client/ehttp"
	"github.com/gotomicro/ego/core/elog"
	"github.com/lithammer/shortuuid/v4"
)

// CodePrefix 本系统签发的折扣码统一前缀, 消费侧据此过滤订单上的普通折扣码
const CodePrefix = "OGL-"

const createMutation = `mutation discountCodeBasicCreate($basicCodeDiscount: DiscountCodeBasicInput!) {
  discountCodeBasicCreate(basicCodeDiscount: $basicCodeDiscount) {
    codeDiscountNode { id }
    userErrors { field message }
  }
}`

const deleteMutation = `mutation discountCodeDelete($id: ID!) {
  discountCodeDelete(id: $id) {
    deletedCodeDiscountId
    userErrors { field message }
  }
}`

//go:generate mockgen -source=./discount.go -package=discountmocks -destination=./mocks/discount.mock.go -typed Issuer
type Issuer interface {
	// CreateFixedAmountCode 创建一次性定额折扣码, 金额单位为分
	CreateFixedAmountCode(ctx context.Context, amount int64, currency, label string) (Discount, error)
	// DeleteCode 折扣码已被消费或已删除时视为成功, 目标(码不可用)已经达成
	DeleteCode(ctx context.Context, discountID string) error
}

type Discount struct {
	// ID Shopify折扣对象的GID, 删除时使用
	ID   string
	Code string
}

type Config struct {
	AccessToken string
	APIVersion  string
	// 可组合性属于商户策略, 不允许硬编码
	CombinesWithOrderDiscounts    bool
	CombinesWithProductDiscounts  bool
	CombinesWithShippingDiscounts bool
}

type ShopifyIssuer struct {
	client *ehttp.Component
	cfg    Config
	l      *elog.Component
	// codeGenFunc 生成折扣码的随机后缀, 必须是密码学强度的随机源
	codeGenFunc func() string
}

func NewShopifyIssuer(client *ehttp.Component, cfg Config) *ShopifyIssuer {
	return &ShopifyIssuer{
		client: client,
		cfg:    cfg,
		l:      elog.DefaultLogger,
		codeGenFunc: func() string {
			// shortuuid 基于 crypto/rand, 取前8位已经足以避免撞码
			return CodePrefix + strings.ToUpper(shortuuid.New()[:8])
		},
	}
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type graphQLResponse struct {
	Data struct {
		DiscountCodeBasicCreate *struct {
			CodeDiscountNode *struct {
				ID string `json:"id"`
			} `json:"codeDiscountNode"`
			UserErrors []userError `json:"userErrors"`
		} `json:"discountCodeBasicCreate"`
		DiscountCodeDelete *struct {
			DeletedCodeDiscountId string      `json:"deletedCodeDiscountId"`
			UserErrors            []userError `json:"userErrors"`
		} `json:"discountCodeDelete"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (s *ShopifyIssuer) CreateFixedAmountCode(ctx context.Context, amount int64, currency, label string) (Discount, error) {
	code := s.codeGenFunc()
	variables := map[string]any{
		"basicCodeDiscount": map[string]any{
			"title":             label,
			"code":              code,
			"startsAt":          time.Now().UTC().Format(time.RFC3339),
			"customerSelection": map[string]any{"all": true},
			"combinesWith": map[string]any{
				"orderDiscounts":    s.cfg.CombinesWithOrderDiscounts,
				"productDiscounts":  s.cfg.CombinesWithProductDiscounts,
				"shippingDiscounts": s.cfg.CombinesWithShippingDiscounts,
			},
			"customerGets": map[string]any{
				"value": map[string]any{
					"discountAmount": map[string]any{
						"amount":           formatAmount(amount),
						"appliesOnEachItem": false,
					},
				},
				"items": map[string]any{"all": true},
			},
			"usageLimit": 1,
		},
	}

	var res graphQLResponse
	if err := s.execute(ctx, createMutation, variables, &res); err != nil {
		return Discount{}, fmt.Errorf("创建折扣码失败: %w", err)
	}
	created := res.Data.DiscountCodeBasicCreate
	if created == nil {
		return Discount{}, fmt.Errorf("创建折扣码失败: 响应中缺少结果")
	}
	if len(created.UserErrors) > 0 {
		return Discount{}, fmt.Errorf("创建折扣码失败: %s", joinUserErrors(created.UserErrors))
	}
	if created.CodeDiscountNode == nil || created.CodeDiscountNode.ID == "" {
		return Discount{}, fmt.Errorf("创建折扣码失败: 响应中缺少折扣ID")
	}
	return Discount{ID: created.CodeDiscountNode.ID, Code: code}, nil
}

func (s *ShopifyIssuer) DeleteCode(ctx context.Context, discountID string) error {
	var res graphQLResponse
	if err := s.execute(ctx, deleteMutation, map[string]any{"id": discountID}, &res); err != nil {
		return fmt.Errorf("删除折扣码失败: %w", err)
	}
	deleted := res.Data.DiscountCodeDelete
	if deleted == nil {
		return fmt.Errorf("删除折扣码失败: 响应中缺少结果")
	}
	if len(deleted.UserErrors) > 0 {
		if isNotFound(deleted.UserErrors) {
			// 折扣码已经不存在, 删除的目的已经达成
			s.l.Warn("待删除的折扣码已不存在",
				elog.String("discount_id", discountID),
			)
			return nil
		}
		return fmt.Errorf("删除折扣码失败: %s", joinUserErrors(deleted.UserErrors))
	}
	return nil
}

func (s *ShopifyIssuer) execute(ctx context.Context, query string, variables map[string]any, res *graphQLResponse) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Shopify-Access-Token", s.cfg.AccessToken).
		SetBody(map[string]any{
			"query":     query,
			"variables": variables,
		}).
		SetResult(res).
		Post(fmt.Sprintf("/admin/api/%s/graphql.json", s.cfg.APIVersion))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("Shopify Admin API 响应异常: %s", resp.Status())
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("GraphQL 错误: %s", res.Errors[0].Message)
	}
	return nil
}

func isNotFound(errs []userError) bool {
	for _, e := range errs {
		msg := strings.ToLower(e.Message)
		if strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found") {
			return true
		}
	}
	return false
}

func joinUserErrors(errs []userError) string {
	return strings.Join(slice.Map(errs, func(_ int, src userError) string {
		return src.Message
	}), "; ")
}

// formatAmount 分转为带两位小数的金额字符串
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
