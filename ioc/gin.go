package ioc

import (
	"net/http"
	"strings"

	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/pkg/middleware"
	"github.com/gaetan-hts/Shopify-Giftcard-Redemption/internal/redemption"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/server/egin"
)

func initGinxServer(
	hdl *redemption.Handler,
	webhookHdl *redemption.WebhookHandler,
) *egin.Component {
	shopDomain := econf.GetString("shopify.shopDomain")
	res := egin.Load("web").Build()
	res.Use(cors.New(cors.Config{
		AllowCredentials: true,
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowOriginFunc: func(origin string) bool {
			if strings.HasPrefix(origin, "http://localhost") {
				return true
			}
			// 结账页脚本从店面域名发起调用
			return strings.Contains(origin, "myshopify.com") ||
				(shopDomain != "" && strings.Contains(origin, shopDomain))
		},
	}))
	res.Use(middleware.NewMetricsBuilder().Build())
	res.GET("/hello", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "hello, world!")
	})
	// 结账页和Shopify回调都是免登录入口
	hdl.PublicRoutes(res.Engine)
	webhookHdl.PublicRoutes(res.Engine)
	return res
}
