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

package redemption

import (
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/domain"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/event"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/job"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/web"
)

type (
	Handler                   = web.Handler
	WebhookHandler            = web.WebhookHandler
	Redemption                = domain.Redemption
	RedeemRequest             = domain.RedeemRequest
	Status                    = domain.RedemptionStatus
	Service                   = service.Service
	ConfirmRedemptionConsumer = event.ConfirmRedemptionConsumer
	SweepStaleRedemptionsJob  = job.SweepStaleRedemptionsJob
)

const (
	StatusPending       = domain.RedemptionStatusPending
	StatusConfirmed     = domain.RedemptionStatusConfirmed
	StatusCancelled     = domain.RedemptionStatusCancelled
	StatusIndeterminate = domain.RedemptionStatusIndeterminate
)

type Module struct {
	Hdl        *Handler
	WebhookHdl *WebhookHandler
	Svc        Service
	Consumer   *ConfirmRedemptionConsumer
	SweepJob   *SweepStaleRedemptionsJob
}
