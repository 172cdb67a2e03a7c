package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"halaqa/internal/auth"
	"halaqa/internal/httpmiddleware"
	"halaqa/internal/logging"
	"halaqa/internal/metrics"
	"halaqa/internal/roster"
)

// RouterOptions configures the HTTP surface. Limiter and Gatherer are optional.
type RouterOptions struct {
	Tokens       auth.Issuer
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Limiter      httpmiddleware.Limiter
	AllowOrigins []string
	Log          *zap.Logger
}

// Router builds the gin engine with every route.
func (h *Handler) Router(o RouterOptions) *gin.Engine {
	if o.Log == nil {
		o.Log = h.log
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Nop()
	}
	if o.Gatherer == nil {
		o.Gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Gin(o.Log, "/healthz", "/metrics"))
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(o.AllowOrigins) == 0 || o.AllowOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = o.AllowOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.Instrument(o.Metrics))
	if o.Limiter != nil {
		r.Use(httpmiddleware.RateLimit(o.Limiter, o.Log))
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{})))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	v1 := r.Group("/v1")

	pub := v1.Group("/auth")
	pub.POST("/register", h.Register)
	pub.POST("/login", h.Login)
	pub.POST("/otp/request", h.RequestCode)
	pub.POST("/otp/verify", h.VerifyCode)
	pub.POST("/refresh", h.Refresh)

	authed := v1.Group("", auth.Authenticate(o.Tokens))
	authed.GET("/stream", h.Stream)
	authed.GET("/hadith/catalog", h.Catalog)
	authed.GET("/hadith/catalog/:id", h.Hadith)

	me := authed.Group("/me", auth.RequireRole(string(roster.RoleStudent)))
	me.GET("", h.Me)
	me.POST("/checkin", h.CheckIn)
	me.POST("/memorization", h.SetupMemorization)
	me.POST("/avatar", h.UploadAvatar)
	me.GET("/history", h.MyHistory)
	me.GET("/hadith", h.MyHadith)
	me.GET("/hadith/history", h.MyHadithHistory)
	me.POST("/hadith/:id/seen", h.HadithSeen)
	me.POST("/hadith/:id/done", h.HadithDone)

	sheikh := authed.Group("", auth.RequireRole(string(roster.RoleSheikh)))
	sheikh.GET("/queue", h.Queue)
	sheikh.GET("/queue/active", h.ActiveSession)
	sheikh.GET("/queue/next", h.NextSession)
	sheikh.GET("/queue/today", h.TodaySessions)
	sheikh.POST("/queue/start", h.StartNext)
	sheikh.POST("/sessions/:id/complete", h.Complete)
	sheikh.POST("/sessions/:id/skip", h.Skip)
	sheikh.POST("/sessions/:id/absent", h.MarkAbsent)

	sheikh.GET("/students", h.Students)
	sheikh.GET("/students/pending", h.PendingStudents)
	sheikh.GET("/students/today", h.TodaysSchedule)
	sheikh.GET("/students/:id/history", h.StudentHistory)
	sheikh.POST("/students/:id/approve", h.Approve)
	sheikh.POST("/students/:id/reject", h.Reject)
	sheikh.POST("/students/:id/suspend", h.Suspend)
	sheikh.PUT("/students/:id/schedule", h.UpdateSchedule)
	sheikh.PUT("/students/:id/notes", h.UpdateNotes)
	sheikh.DELETE("/students/:id", h.DeleteStudent)

	sheikh.GET("/hadith/settings", h.HadithSettings)
	sheikh.PUT("/hadith/settings", h.UpdateHadithSettings)
	sheikh.POST("/hadith/assign", h.AssignHadith)
	sheikh.GET("/hadith/stats", h.HadithStats)

	sheikh.GET("/audit", h.AuditLog)

	return r
}
