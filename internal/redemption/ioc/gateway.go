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
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/pkg/sequencenumber"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service/gateway"
	"github.com/gotomicro/ego/client/ehttp"
	"github.com/gotomicro/ego/core/econf"
)

// InitOglobaClient 网关的地址和超时走ego的ehttp配置(ogloba.addr等)
// 认证和终端身份走业务配置
func InitOglobaClient(snGenerator *sequencenumber.Generator) gateway.Client {
	var cfg gateway.Config
	err := econf.UnmarshalKey("ogloba", &cfg)
	if err != nil {
		panic(err)
	}
	client := ehttp.Load("ogloba").Build()
	return gateway.NewOglobaClient(client, cfg, snGenerator)
}
