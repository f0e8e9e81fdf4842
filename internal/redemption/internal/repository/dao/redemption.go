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

package dao

import (
	"context"
	"time"

	"github.com/ego-component/egorm"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	// ErrStatusConflict CAS更新时预期状态不匹配, 说明另一个协调器已经抢先完成了状态迁移
	ErrStatusConflict = errors.New("兑换记录状态已被并发修改")
	// ErrRedemptionNotFound 台账中不存在该折扣码对应的记录
	ErrRedemptionNotFound = gorm.ErrRecordNotFound
	// ErrDuplicateDiscountCode 同一折扣码重复入账
	ErrDuplicateDiscountCode = errors.New("折扣码已存在")
)

type RedemptionDAO interface {
	Insert(ctx context.Context, r Redemption) (int64, error)
	FindByCode(ctx context.Context, code string) (Redemption, error)
	// UpdateStatus 以 (discount_code, 预期状态) 为条件的CAS更新
	// 没有命中任何行时返回 ErrStatusConflict, 调用方应视为"已被处理"并停止
	UpdateStatus(ctx context.Context, code string, expected, target uint8) error
	FindStaleByStatus(ctx context.Context, status uint8, utime int64, offset, limit int) ([]Redemption, error)
}

type RedemptionGORMDAO struct {
	db *egorm.Component
}

func NewRedemptionGORMDAO(db *egorm.Component) RedemptionDAO {
	return &RedemptionGORMDAO{db: db}
}

func (g *RedemptionGORMDAO) Insert(ctx context.Context, r Redemption) (int64, error) {
	now := time.Now().UnixMilli()
	r.Ctime, r.Utime = now, now
	err := g.db.WithContext(ctx).Create(&r).Error
	if me, ok := err.(*mysql.MySQLError); ok {
		const uniqueIndexErrNo uint16 = 1062
		if me.Number == uniqueIndexErrNo {
			return 0, ErrDuplicateDiscountCode
		}
	}
	return r.Id, err
}

func (g *RedemptionGORMDAO) FindByCode(ctx context.Context, code string) (Redemption, error) {
	var res Redemption
	err := g.db.WithContext(ctx).Where("discount_code = ?", code).First(&res).Error
	return res, err
}

func (g *RedemptionGORMDAO) UpdateStatus(ctx context.Context, code string, expected, target uint8) error {
	res := g.db.WithContext(ctx).Model(&Redemption{}).
		Where("discount_code = ? AND status = ?", code, expected).
		Updates(map[string]any{
			"status": target,
			"utime":  time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (g *RedemptionGORMDAO) FindStaleByStatus(ctx context.Context, status uint8, utime int64, offset, limit int) ([]Redemption, error) {
	var res []Redemption
	err := g.db.WithContext(ctx).
		Where("status = ? AND utime < ?", status, utime).
		Order("utime ASC").
		Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

type Redemption struct {
	Id              int64  `gorm:"primaryKey;autoIncrement;comment:兑换台账自增ID"`
	DiscountCode    string `gorm:"type:varchar(64);not null;uniqueIndex:uniq_discount_code;comment:折扣码, 全局唯一查找键"`
	DiscountId      string `gorm:"type:varchar(255);not null;comment:Shopify折扣对象ID"`
	ReferenceNumber string `gorm:"type:varchar(255);not null;index:idx_reference_number;comment:网关事务引用号"`
	CardNumber      string `gorm:"type:varchar(64);not null;comment:脱敏卡号, 只保留末四位"`
	Amount          int64  `gorm:"not null;comment:网关实际授权金额;单位为分, 999表示9.99"`
	Currency        string `gorm:"type:varchar(8);not null;comment:ISO货币代码"`
	Status          uint8  `gorm:"type:tinyint unsigned;not null;default:1;index:idx_status;comment:兑换状态 1=待确认 2=已确认 3=已取消 4=结果未知"`
	Ctime           int64
	Utime           int64
}
