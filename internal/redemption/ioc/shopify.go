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

package ioc

import (
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service/discount"
	"github.com/gotomicro/ego/client/ehttp"
	"github.com/gotomicro/ego/core/econf"
)

func InitShopifyIssuer() discount.Issuer {
	var cfg discount.Config
	err := econf.UnmarshalKey("shopify", &cfg)
	if err != nil {
		panic(err)
	}
	client := ehttp.Load("shopify").Build()
	return discount.NewShopifyIssuer(client, cfg)
}

// WebhookSecret Shopify webhook签名密钥
func WebhookSecret() string {
	return econf.GetString("shopify.webhookSecret")
}
