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
	"errors"
	"testing"
	"time"

	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSweepService 模拟PENDING集合的语义: 取消成功的记录会从集合中消失
type fakeSweepService struct {
	pending       []domain.Redemption
	indeterminate []domain.Redemption
	cancelErr     map[string]error
	cancelled     []string
	findErr       error
}

func (f *fakeSweepService) Redeem(_ context.Context, _ domain.RedeemRequest) (domain.Redemption, error) {
	return domain.Redemption{}, nil
}

func (f *fakeSweepService) ConfirmByCode(_ context.Context, _ string) error {
	return nil
}

func (f *fakeSweepService) Cancel(_ context.Context, code string) error {
	if err, ok := f.cancelErr[code]; ok {
		return err
	}
	for i, r := range f.pending {
		if r.DiscountCode == code {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
	f.cancelled = append(f.cancelled, code)
	return nil
}

func (f *fakeSweepService) FindStaleByStatus(_ context.Context, status domain.RedemptionStatus, _ time.Duration, offset, limit int) ([]domain.Redemption, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	src := f.pending
	if status == domain.RedemptionStatusIndeterminate {
		src = f.indeterminate
	}
	if offset >= len(src) {
		return nil, nil
	}
	end := offset + limit
	if end > len(src) {
		end = len(src)
	}
	// 返回快照, 避免Cancel对f.pending的原地删除改写正在被遍历的切片
	res := make([]domain.Redemption, end-offset)
	copy(res, src[offset:end])
	return res, nil
}

func pendings(codes ...string) []domain.Redemption {
	res := make([]domain.Redemption, 0, len(codes))
	for _, c := range codes {
		res = append(res, domain.Redemption{
			DiscountCode: c,
			Status:       domain.RedemptionStatusPending,
		})
	}
	return res
}

func TestSweepStaleRedemptionsJob(t *testing.T) {
	t.Parallel()

	t.Run("取消所有过期的PENDING记录", func(t *testing.T) {
		svc := &fakeSweepService{
			pending: pendings("OGL-AAAA1111", "OGL-BBBB2222", "OGL-CCCC3333"),
		}
		j := NewSweepStaleRedemptionsJob(svc, 30*time.Minute, 2, time.Minute)
		require.NoError(t, j.Run(context.Background()))
		assert.Equal(t, []string{"OGL-AAAA1111", "OGL-BBBB2222", "OGL-CCCC3333"}, svc.cancelled)
		assert.Empty(t, svc.pending)
	})

	t.Run("单条取消失败_翻页跳过并继续", func(t *testing.T) {
		svc := &fakeSweepService{
			pending: pendings("OGL-AAAA1111", "OGL-BBBB2222", "OGL-CCCC3333"),
			cancelErr: map[string]error{
				"OGL-BBBB2222": errors.New("gateway down"),
			},
		}
		j := NewSweepStaleRedemptionsJob(svc, 30*time.Minute, 1, time.Minute)
		require.NoError(t, j.Run(context.Background()))
		assert.Equal(t, []string{"OGL-AAAA1111", "OGL-CCCC3333"}, svc.cancelled)
		// 失败的那条留在PENDING集合里, 等下一轮任务重试
		assert.Equal(t, pendings("OGL-BBBB2222"), svc.pending)
	})

	t.Run("查询失败向上返回", func(t *testing.T) {
		svc := &fakeSweepService{findErr: errors.New("db down")}
		j := NewSweepStaleRedemptionsJob(svc, 30*time.Minute, 10, time.Minute)
		require.Error(t, j.Run(context.Background()))
	})

	t.Run("INDETERMINATE只上报不取消", func(t *testing.T) {
		svc := &fakeSweepService{
			indeterminate: []domain.Redemption{
				{DiscountCode: "OGL-DDDD4444", Status: domain.RedemptionStatusIndeterminate},
			},
		}
		j := NewSweepStaleRedemptionsJob(svc, 30*time.Minute, 10, time.Minute)
		require.NoError(t, j.Run(context.Background()))
		assert.Empty(t, svc.cancelled)
	})
}
