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

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/domain"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/event"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/repository"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service/discount"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/service/gateway"
	"github.com/gotomicro/ego/core/elog"
)

var (
	// ErrRedemptionRejected 网关拒绝冻结(卡无效/余额不足/PIN错误), 无需补偿
	ErrRedemptionRejected = errors.New("礼品卡兑换被网关拒绝")
	// ErrRedemptionNotFound 台账中不存在该折扣码
	ErrRedemptionNotFound = repository.ErrRedemptionNotFound
	// ErrAlreadyFinalized 记录已处于终态, 不允许取消
	ErrAlreadyFinalized = errors.New("兑换记录已终结")
	// ErrIndeterminateOutcome 网关调用结果未知, 需要人工对账
	ErrIndeterminateOutcome = gateway.ErrIndeterminate
)

const businessDateLayout = "2006-01-02"

//go:generate mockgen -source=./service.go -destination=../../mocks/redemption.mock.go -package=redemptionmocks Service
type Service interface {
	// Redeem 授权路径: 网关冻结 -> 创建折扣码 -> 写台账
	// 冻结成功之后的任何失败都会触发对已获取资源的补偿
	Redeem(ctx context.Context, req domain.RedeemRequest) (domain.Redemption, error)
	// ConfirmByCode 结算路径: 只有PENDING的记录才会触发网关confirm+reconcile
	// 不认识的折扣码和已终结的记录都静默忽略, 以容忍webhook重投
	ConfirmByCode(ctx context.Context, code string) error
	// Cancel 中止路径: 可安全地重复调用, 但不允许取消已确认的兑换
	Cancel(ctx context.Context, code string) error
	// FindStaleByStatus 供巡检任务分页查询长时间未迁移的记录
	FindStaleByStatus(ctx context.Context, status domain.RedemptionStatus, stale time.Duration, offset, limit int) ([]domain.Redemption, error)
}

func NewService(repo repository.RedemptionRepository,
	gatewayClient gateway.Client,
	issuer discount.Issuer,
	producer event.RedemptionStatusEventProducer,
) Service {
	return &service{
		repo:     repo,
		gateway:  gatewayClient,
		issuer:   issuer,
		producer: producer,
		l:        elog.DefaultLogger,
	}
}

type service struct {
	repo     repository.RedemptionRepository
	gateway  gateway.Client
	issuer   discount.Issuer
	producer event.RedemptionStatusEventProducer
	l        *elog.Component
}

// compensation 一个已获取资源的补偿动作, 执行结果逐条记录
type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

func (s *service) Redeem(ctx context.Context, req domain.RedeemRequest) (domain.Redemption, error) {
	res, err := s.gateway.Redeem(ctx, gateway.RedeemRequest{
		CardNumber: req.CardNumber,
		PinCode:    req.Pin,
		Amount:     req.Amount,
		Currency:   req.Currency,
	})
	if err != nil {
		// 结果未知时不能换事务号重试, 否则可能重复扣卡
		return domain.Redemption{}, fmt.Errorf("冻结礼品卡资金失败: %w", err)
	}
	if !res.Approved {
		return domain.Redemption{}, fmt.Errorf("%w: %s", ErrRedemptionRejected, res.Reason)
	}

	// 冻结已成功, 从这里开始的失败都要补偿
	compensations := []compensation{
		{
			name: "取消网关冻结",
			fn: func(ctx context.Context) error {
				return s.gateway.CancelTransaction(ctx, res.ReferenceNumber)
			},
		},
	}

	d, err := s.issuer.CreateFixedAmountCode(ctx, res.AuthorizedAmount, req.Currency,
		fmt.Sprintf("Ogloba %s", res.ReferenceNumber))
	if err != nil {
		s.compensate(ctx, res.ReferenceNumber, compensations)
		return domain.Redemption{}, fmt.Errorf("创建折扣码失败: %w", err)
	}
	compensations = append(compensations, compensation{
		name: "删除折扣码",
		fn: func(ctx context.Context) error {
			return s.issuer.DeleteCode(ctx, d.ID)
		},
	})

	created, err := s.repo.Create(ctx, domain.Redemption{
		DiscountCode:    d.Code,
		DiscountID:      d.ID,
		ReferenceNumber: res.ReferenceNumber,
		CardNumber:      domain.MaskCardNumber(req.CardNumber),
		// 台账记的是网关实际授权的金额, 不是请求金额
		Amount:   res.AuthorizedAmount,
		Currency: req.Currency,
		Status:   domain.RedemptionStatusPending,
	})
	if err != nil {
		s.compensate(ctx, res.ReferenceNumber, compensations)
		return domain.Redemption{}, fmt.Errorf("写入兑换台账失败: %w", err)
	}
	return created, nil
}

// compensate 逆序执行补偿, 补偿失败只记录不上抛, 残留的冻结依赖对账清理
func (s *service) compensate(ctx context.Context, referenceNumber string, compensations []compensation) {
	for i := len(compensations) - 1; i >= 0; i-- {
		c := compensations[i]
		if err := c.fn(ctx); err != nil {
			s.l.Error("兑换补偿步骤失败",
				elog.String("step", c.name),
				elog.String("reference_number", referenceNumber),
				elog.FieldErr(err),
			)
			continue
		}
		s.l.Info("兑换补偿步骤完成",
			elog.String("step", c.name),
			elog.String("reference_number", referenceNumber),
		)
	}
}

func (s *service) ConfirmByCode(ctx context.Context, code string) error {
	r, err := s.repo.FindByCode(ctx, code)
	if errors.Is(err, ErrRedemptionNotFound) {
		// 不是我们发的码
		return nil
	}
	if err != nil {
		return fmt.Errorf("查找兑换记录失败: %w", err)
	}
	if r.Status != domain.RedemptionStatusPending {
		// webhook重投或已取消, 不能再次confirm
		return nil
	}

	err = s.gateway.ConfirmTransaction(ctx, r.ReferenceNumber)
	if err != nil {
		if errors.Is(err, gateway.ErrIndeterminate) {
			// 确认结果未知, 标记后等待人工对账, 不做自动重试
			if err2 := s.repo.UpdateStatus(ctx, code,
				domain.RedemptionStatusPending, domain.RedemptionStatusIndeterminate); err2 != nil &&
				!errors.Is(err2, repository.ErrStatusConflict) {
				s.l.Error("标记兑换结果未知失败",
					elog.String("discount_code", code),
					elog.FieldErr(err2),
				)
			}
		}
		return fmt.Errorf("确认网关事务失败: %w", err)
	}

	if err = s.gateway.Reconcile(ctx, time.Now().Format(businessDateLayout),
		[]gateway.ReconciliationRecord{
			s.gateway.NewReconciliationRecord(r.ReferenceNumber, r.CardNumber, r.Currency, r.Amount),
		}); err != nil {
		// 资金已确认入账, 对账失败留给运营侧补账, 不回滚确认
		s.l.Error("网关对账失败",
			elog.String("discount_code", code),
			elog.String("reference_number", r.ReferenceNumber),
			elog.FieldErr(err),
		)
	}

	err = s.repo.UpdateStatus(ctx, code, domain.RedemptionStatusPending, domain.RedemptionStatusConfirmed)
	if errors.Is(err, repository.ErrStatusConflict) {
		// 另一个协调器赢了, 视为已处理
		return nil
	}
	if err != nil {
		return fmt.Errorf("更新兑换状态失败: %w", err)
	}
	s.produceStatusEvent(ctx, r, domain.RedemptionStatusConfirmed)
	return nil
}

func (s *service) Cancel(ctx context.Context, code string) error {
	r, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrRedemptionNotFound) {
			return fmt.Errorf("%w: %s", ErrRedemptionNotFound, code)
		}
		return fmt.Errorf("查找兑换记录失败: %w", err)
	}

	switch r.Status {
	case domain.RedemptionStatusCancelled:
		// 重复取消, 直接成功, 不再发起外部调用
		return nil
	case domain.RedemptionStatusConfirmed, domain.RedemptionStatusIndeterminate:
		return fmt.Errorf("%w: 当前状态 %d", ErrAlreadyFinalized, r.Status.ToUint8())
	}

	// 取消冻结失败不阻断本地取消, 残留冻结依赖对账清理
	if err = s.gateway.CancelTransaction(ctx, r.ReferenceNumber); err != nil {
		s.l.Error("取消网关冻结失败",
			elog.String("discount_code", code),
			elog.String("reference_number", r.ReferenceNumber),
			elog.FieldErr(err),
		)
	}

	// 折扣码还能用就意味着钱可能被花掉, 删除失败必须让调用方重试
	if err = s.issuer.DeleteCode(ctx, r.DiscountID); err != nil {
		return fmt.Errorf("删除折扣码失败: %w", err)
	}

	err = s.repo.UpdateStatus(ctx, code, domain.RedemptionStatusPending, domain.RedemptionStatusCancelled)
	if errors.Is(err, repository.ErrStatusConflict) {
		// 状态已被并发修改, 重新读取判断输给了谁
		latest, err2 := s.repo.FindByCode(ctx, code)
		if err2 != nil {
			return fmt.Errorf("查找兑换记录失败: %w", err2)
		}
		if latest.Status == domain.RedemptionStatusCancelled {
			return nil
		}
		return fmt.Errorf("%w: 当前状态 %d", ErrAlreadyFinalized, latest.Status.ToUint8())
	}
	if err != nil {
		return fmt.Errorf("更新兑换状态失败: %w", err)
	}
	s.produceStatusEvent(ctx, r, domain.RedemptionStatusCancelled)
	return nil
}

func (s *service) FindStaleByStatus(ctx context.Context, status domain.RedemptionStatus, stale time.Duration, offset, limit int) ([]domain.Redemption, error) {
	return s.repo.FindStaleByStatus(ctx, status, stale, offset, limit)
}

func (s *service) produceStatusEvent(ctx context.Context, r domain.Redemption, status domain.RedemptionStatus) {
	evt := event.RedemptionStatusEvent{
		DiscountCode:    r.DiscountCode,
		ReferenceNumber: r.ReferenceNumber,
		Status:          status.ToUint8(),
	}
	if err := s.producer.Produce(ctx, evt); err != nil {
		s.l.Error("发送兑换状态事件失败",
			elog.String("discount_code", r.DiscountCode),
			elog.FieldErr(err),
		)
	}
}
