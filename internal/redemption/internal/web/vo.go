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

type RedeemReq struct {
	CardNumber string `json:"cardNumber"`
	Pin        string `json:"pin"`
	// Amount 单位为分
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type RedeemResp struct {
	Success         bool   `json:"success"`
	DiscountCode    string `json:"discountCode,omitempty"`
	DiscountID      string `json:"discountId,omitempty"`
	ReferenceNumber string `json:"referenceNumber,omitempty"`
	// Amount 网关实际授权的金额, 单位为分
	Amount  int64  `json:"amount,omitempty"`
	Message string `json:"message,omitempty"`
}

type CancelReq struct {
	DiscountCode string `json:"discountCode"`
}

type CancelResp struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
