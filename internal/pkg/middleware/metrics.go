package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsBuilder 按 method/path/status_code 维度统计HTTP请求量和耗时
// 兑换接口的P99直接反映网关和Shopify两个上游的健康程度
type MetricsBuilder struct {
	durationVec *prometheus.SummaryVec
	requestsVec *prometheus.CounterVec
}

func NewMetricsBuilder() *MetricsBuilder {
	labels := []string{"method", "path", "status_code"}
	return &MetricsBuilder{
		durationVec: promauto.NewSummaryVec(
			prometheus.SummaryOpts{
				Namespace: "giftcard",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Objectives: map[float64]float64{
					0.5:  0.05,
					0.9:  0.01,
					0.95: 0.005,
					0.99: 0.001,
				},
			},
			labels,
		),
		requestsVec: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "giftcard",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			labels,
		),
	}
}

func (b *MetricsBuilder) Build() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		duration := time.Since(start).Seconds()

		method := ctx.Request.Method
		// 未命中注册路由时兜底用原始路径
		path := ctx.FullPath()
		if path == "" {
			path = ctx.Request.URL.Path
		}
		statusCode := strconv.Itoa(ctx.Writer.Status())

		b.durationVec.WithLabelValues(method, path, statusCode).Observe(duration)
		b.requestsVec.WithLabelValues(method, path, statusCode).Inc()
	}
}
