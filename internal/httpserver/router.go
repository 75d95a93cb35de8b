package httpserver

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/connectedhumber/arena-locator/internal/core"
)

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Arena Locator</title></head>
<body>
<h1>Arena Locator</h1>
<img src="/video_feed" />
</body>
</html>`

// NewRouter builds the gin engine serving the external HTTP surface:
// the index page, the MJPEG video feed, the dashboard WebSocket, and
// /healthz and /metrics for operational visibility.
func NewRouter(c *core.Core, hub *Hub) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	r.GET("/", func(ctx *gin.Context) {
		ctx.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
	})
	r.GET("/video_feed", VideoFeed(c))
	r.GET("/ws", hub.HandleWS)
	r.GET("/healthz", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
