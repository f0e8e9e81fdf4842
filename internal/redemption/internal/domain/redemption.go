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

package domain

import "strings"

type RedemptionStatus uint8

const (
	// RedemptionStatusPending 礼品卡资金已冻结且折扣码已创建, 等待订单支付
	RedemptionStatusPending RedemptionStatus = iota + 1
	// RedemptionStatusConfirmed 订单已支付, 网关确认+对账均已完成
	RedemptionStatusConfirmed
	// RedemptionStatusCancelled 已取消, 冻结资金已释放, 折扣码已删除
	RedemptionStatusCancelled
	// RedemptionStatusIndeterminate 网关确认结果未知(超时等), 需要人工对账, 不允许自动重试
	RedemptionStatusIndeterminate
)

func (s RedemptionStatus) ToUint8() uint8 {
	return uint8(s)
}

// Redemption 一次礼品卡兑换的台账记录
// 记录的存在本身就证明网关冻结和折扣码创建都至少成功过一次
type Redemption struct {
	ID int64
	// DiscountCode 全局唯一, 三个协调器共同的查找键
	DiscountCode string
	// DiscountID Shopify侧折扣对象ID, 删除时使用
	DiscountID string
	// ReferenceNumber 网关事务引用号, confirm/cancel/reconcile时使用
	ReferenceNumber string
	// CardNumber 已脱敏的卡号, 只保留末四位
	CardNumber string
	// Amount 网关实际授权的金额, 单位为分, 不是请求金额
	Amount   int64
	Currency string
	Status   RedemptionStatus
	Ctime    int64
	Utime    int64
}

// RedeemRequest 结账侧发起的授权请求
// Pin 只透传给网关, 永远不落库
type RedeemRequest struct {
	CardNumber string
	Pin        string
	// Amount 请求冻结的金额, 单位为分; 网关可能授权更少
	Amount   int64
	Currency string
}

// MaskCardNumber 卡号脱敏, 只保留末四位
func MaskCardNumber(cardNumber string) string {
	const visible = 4
	if len(cardNumber) <= visible {
		return cardNumber
	}
	return strings.Repeat("*", len(cardNumber)-visible) + cardNumber[len(cardNumber)-visible:]
}
