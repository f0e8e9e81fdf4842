package database

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	// 用于GORM追踪的仪器名称
	instrumentationName = "internal/pkg/database/tracing"

	spanKey = "tracing:span"
)

// GormTracingPlugin 实现gorm.Plugin接口, 为台账的所有数据库操作生成OpenTelemetry span
// CAS更新丢失竞争时RowsAffected为0但db.Error为nil, 所以span状态只看Error
type GormTracingPlugin struct {
	tracer trace.Tracer
}

func NewGormTracingPlugin() *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer: otel.GetTracerProvider().Tracer(instrumentationName),
	}
}

func (p *GormTracingPlugin) Name() string {
	return "GormTracingPlugin"
}

// Initialize 给增删改查和原始SQL都挂上before/after回调
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tracing:before_query", p.beforeFn("SELECT")); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("tracing:after_query", p.afterFn("SELECT")); err != nil {
		return err
	}
	if err := db.Callback().Create().Before("gorm:create").Register("tracing:before_create", p.beforeFn("INSERT")); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("tracing:after_create", p.afterFn("INSERT")); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tracing:before_update", p.beforeFn("UPDATE")); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("tracing:after_update", p.afterFn("UPDATE")); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tracing:before_delete", p.beforeFn("DELETE")); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("tracing:after_delete", p.afterFn("DELETE")); err != nil {
		return err
	}
	if err := db.Callback().Raw().Before("gorm:raw").Register("tracing:before_raw", p.beforeFn("RAW")); err != nil {
		return err
	}
	return db.Callback().Raw().After("gorm:raw").Register("tracing:after_raw", p.afterFn("RAW"))
}

func (p *GormTracingPlugin) beforeFn(op string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := context.Background()
		if db.Statement.Context != nil {
			ctx = db.Statement.Context
		}
		spanName := op
		if db.Statement.Table != "" {
			spanName = fmt.Sprintf("%s %s", db.Statement.Table, op)
		}
		ctx, span := p.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
		db.Statement.Context = ctx
		db.Set(spanKey, span)
	}
}

func (p *GormTracingPlugin) afterFn(op string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		spanValue, exists := db.Get(spanKey)
		if !exists {
			return
		}
		span, ok := spanValue.(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		attrs := []attribute.KeyValue{
			attribute.String("db.system", "mysql"),
			attribute.String("db.operation", op),
		}
		if db.Statement.Table != "" {
			attrs = append(attrs, attribute.String("db.table", db.Statement.Table))
		}
		if sql := db.Statement.SQL.String(); sql != "" {
			attrs = append(attrs, attribute.String("db.statement", sql))
		}
		if db.Statement.RowsAffected > 0 {
			attrs = append(attrs, attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		}
		span.SetAttributes(attrs...)

		// 没查到记录是业务常态, 不算错误
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, db.Error.Error())
			return
		}
		span.SetStatus(codes.Ok, "")
	}
}
