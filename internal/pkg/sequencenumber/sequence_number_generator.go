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

package sequencenumber

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// TimestampGenerateFunc 定义生成时间戳的函数类型
type TimestampGenerateFunc func(time.Time) int64

// RandomGenerateFunc 定义生成随机数的函数类型
type RandomGenerateFunc func() int64

// Generator 生成网关要求的10位数字事务号
// 每次网关调用都必须使用新号, 同一毫秒内的并发调用也不能重复
type Generator struct {
	timestampGenFunc TimestampGenerateFunc
	randomGenFunc    RandomGenerateFunc
}

// NewGeneratorWith 创建一个Generator实例
func NewGeneratorWith(timestampGen TimestampGenerateFunc, randomGen RandomGenerateFunc) *Generator {
	return &Generator{
		timestampGenFunc: timestampGen,
		randomGenFunc:    randomGen,
	}
}

// NewGenerator 创建一个Generator实例
func NewGenerator() *Generator {
	return NewGeneratorWith(
		func(t time.Time) int64 { return t.UnixMilli() },
		func() int64 {
			n, err := rand.Int(rand.Reader, big.NewInt(10000))
			if err != nil {
				// crypto/rand 不可用时退化为时间噪声
				return time.Now().UnixNano() % 10000
			}
			return n.Int64()
		})
}

// Generate 生成 10 位长度的数字事务号: 时间戳后6位 + 4位随机数
func (s *Generator) Generate() string {
	timestamp := s.timestampGenFunc(time.Now())
	return fmt.Sprintf("%06d%04d", timestamp%1_000_000, s.randomGenFunc())
}
