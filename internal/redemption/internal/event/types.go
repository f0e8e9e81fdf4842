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

const (
	// OrderPaidEvents webhook收到orders/paid后往该topic发消息
	OrderPaidEvents = "order_paid_events"
	// RedemptionStatusEvents 兑换记录发生状态迁移时往该topic发消息, 供下游审计
	RedemptionStatusEvents = "redemption_status_events"
)

// OrderPaidEvent 只携带订单上出现的折扣码, 非本系统发出的码由消费方过滤
type OrderPaidEvent struct {
	OrderID       int64    `json:"orderId"`
	DiscountCodes []string `json:"discountCodes"`
}

type RedemptionStatusEvent struct {
	DiscountCode    string `json:"discountCode"`
	ReferenceNumber string `json:"referenceNumber"`
	Status          uint8  `json:"status"`
}
