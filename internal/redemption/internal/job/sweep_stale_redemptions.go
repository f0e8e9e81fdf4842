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

package job

import (
	"context"
	"fmt"
	"time"

	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/domain"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service"
	"github.com/gotomicro/ego/core/elog"
)

// SweepStaleRedemptionsJob 清理被放弃的结账: 长时间停留在PENDING的记录
// 说明买家拿到折扣码之后没有完成下单, 需要走中止路径释放网关冻结的资金
// 顺带上报INDETERMINATE的记录, 这类记录只能人工对账, 任务不碰它们
type SweepStaleRedemptionsJob struct {
	svc     service.Service
	stale   time.Duration
	limit   int
	timeout time.Duration
	logger  *elog.Component
}

func NewSweepStaleRedemptionsJob(svc service.Service, stale time.Duration, limit int, timeout time.Duration) *SweepStaleRedemptionsJob {
	return &SweepStaleRedemptionsJob{
		svc:     svc,
		stale:   stale,
		limit:   limit,
		timeout: timeout,
		logger:  elog.DefaultLogger,
	}
}

func (s *SweepStaleRedemptionsJob) Name() string {
	return "SweepStaleRedemptionsJob"
}

func (s *SweepStaleRedemptionsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.sweepPending(ctx); err != nil {
		return err
	}
	return s.reportIndeterminate(ctx)
}

func (s *SweepStaleRedemptionsJob) sweepPending(ctx context.Context) error {
	// 取消成功的记录会离开PENDING集合, 所以翻页时只需要跳过取消失败的
	failed := 0
	for {
		rs, err := s.svc.FindStaleByStatus(ctx, domain.RedemptionStatusPending, s.stale, failed, s.limit)
		if err != nil {
			return fmt.Errorf("获取超时未结算的兑换记录失败: %w", err)
		}
		for _, r := range rs {
			er := s.svc.Cancel(ctx, r.DiscountCode)
			if er != nil {
				failed++
				s.logger.Error("取消超时兑换失败",
					elog.FieldErr(er),
					elog.String("discount_code", r.DiscountCode),
					elog.String("reference_number", r.ReferenceNumber),
				)
			}
		}
		if len(rs) < s.limit {
			return nil
		}
	}
}

func (s *SweepStaleRedemptionsJob) reportIndeterminate(ctx context.Context) error {
	for offset := 0; ; offset += s.limit {
		rs, err := s.svc.FindStaleByStatus(ctx, domain.RedemptionStatusIndeterminate, s.stale, offset, s.limit)
		if err != nil {
			return fmt.Errorf("获取结果未知的兑换记录失败: %w", err)
		}
		for _, r := range rs {
			s.logger.Warn("发现结果未知的兑换记录, 需要人工对账",
				elog.String("discount_code", r.DiscountCode),
				elog.String("reference_number", r.ReferenceNumber),
				elog.Int64("amount", r.Amount),
			)
		}
		if len(rs) < s.limit {
			return nil
		}
	}
}
