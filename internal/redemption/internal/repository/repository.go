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

package repository

import (
	"context"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/domain"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption/internal/repository/dao"
)

var (
	ErrStatusConflict     = dao.ErrStatusConflict
	ErrRedemptionNotFound = dao.ErrRedemptionNotFound
)

type RedemptionRepository interface {
	Create(ctx context.Context, r domain.Redemption) (domain.Redemption, error)
	FindByCode(ctx context.Context, code string) (domain.Redemption, error)
	// UpdateStatus 对单行状态做 (折扣码, 预期状态) 的CAS迁移
	UpdateStatus(ctx context.Context, code string, expected, target domain.RedemptionStatus) error
	FindStaleByStatus(ctx context.Context, status domain.RedemptionStatus, stale time.Duration, offset, limit int) ([]domain.Redemption, error)
}

func NewRedemptionRepository(d dao.RedemptionDAO) RedemptionRepository {
	return &redemptionRepository{dao: d}
}

type redemptionRepository struct {
	dao dao.RedemptionDAO
}

func (r *redemptionRepository) Create(ctx context.Context, rd domain.Redemption) (domain.Redemption, error) {
	id, err := r.dao.Insert(ctx, r.toEntity(rd))
	if err != nil {
		return domain.Redemption{}, err
	}
	rd.ID = id
	return rd, nil
}

func (r *redemptionRepository) FindByCode(ctx context.Context, code string) (domain.Redemption, error) {
	entity, err := r.dao.FindByCode(ctx, code)
	if err != nil {
		return domain.Redemption{}, err
	}
	return r.toDomain(entity), nil
}

func (r *redemptionRepository) UpdateStatus(ctx context.Context, code string, expected, target domain.RedemptionStatus) error {
	return r.dao.UpdateStatus(ctx, code, expected.ToUint8(), target.ToUint8())
}

func (r *redemptionRepository) FindStaleByStatus(ctx context.Context, status domain.RedemptionStatus, stale time.Duration, offset, limit int) ([]domain.Redemption, error) {
	utime := time.Now().Add(-stale).UnixMilli()
	entities, err := r.dao.FindStaleByStatus(ctx, status.ToUint8(), utime, offset, limit)
	if err != nil {
		return nil, err
	}
	return slice.Map(entities, func(_ int, src dao.Redemption) domain.Redemption {
		return r.toDomain(src)
	}), nil
}

func (r *redemptionRepository) toEntity(rd domain.Redemption) dao.Redemption {
	return dao.Redemption{
		Id:              rd.ID,
		DiscountCode:    rd.DiscountCode,
		DiscountId:      rd.DiscountID,
		ReferenceNumber: rd.ReferenceNumber,
		CardNumber:      rd.CardNumber,
		Amount:          rd.Amount,
		Currency:        rd.Currency,
		Status:          rd.Status.ToUint8(),
	}
}

func (r *redemptionRepository) toDomain(rd dao.Redemption) domain.Redemption {
	return domain.Redemption{
		ID:              rd.Id,
		DiscountCode:    rd.DiscountCode,
		DiscountID:      rd.DiscountId,
		ReferenceNumber: rd.ReferenceNumber,
		CardNumber:      rd.CardNumber,
		Amount:          rd.Amount,
		Currency:        rd.Currency,
		Status:          domain.RedemptionStatus(rd.Status),
		Ctime:           rd.Ctime,
		Utime:           rd.Utime,
	}
}
