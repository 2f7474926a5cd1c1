package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"talentflow/internal/api/middleware"
	"talentflow/internal/auth"
	"talentflow/internal/events"
	"talentflow/internal/store"
)

// Dependencies 汇总路由需要的外部组件。可选组件为 nil 时对应端点不注册或降级。
type Dependencies struct {
	Store      *store.Store
	Publisher  events.Publisher
	Queue      TaskEnqueuer
	Subscriber EventSubscriber
	Tokens     *auth.TokenService
	Storage    ObjectStorage
	RateRedis  redisRateCounter
	Logger     *slog.Logger

	Roster           []string
	AllowedOrigins   []string
	ClamdAddr        string
	RequireForWrites bool
	// Delay 返回每个请求的模拟延迟；nil 表示不延迟。
	Delay func() time.Duration
}

// RegisterRoutes 注册 /v1 下的全部业务路由。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.Discard{}
	}

	jobHandler := NewJobHandler(deps.Store, publisher)
	candidateHandler := NewCandidateHandler(deps.Store, publisher, deps.Roster)
	assessmentHandler := NewAssessmentHandler(deps.Store, deps.Queue, publisher)

	readAuth := middleware.AuthMiddleware(deps.Tokens, false)
	writeAuth := middleware.AuthMiddleware(deps.Tokens, deps.RequireForWrites)

	v1 := router.Group("/v1")
	if deps.Subscriber != nil {
		wsHandler := NewWsHandler(deps.Subscriber, deps.Logger, deps.AllowedOrigins)
		v1.GET("/ws", wsHandler.HandleConnection)
	}

	simulated := v1.Group("")
	if deps.Delay != nil {
		simulated.Use(middleware.SimulatedLatencyMiddleware(deps.Delay))
	}

	jobs := simulated.Group("/jobs")
	{
		jobs.GET("", readAuth, jobHandler.ListJobs)
		jobs.GET("/:id", readAuth, jobHandler.GetJob)
		jobs.GET("/:id/pipeline", readAuth, jobHandler.JobPipeline)
		jobs.POST("", writeAuth, jobHandler.CreateJob)
		jobs.PATCH("/:id", writeAuth, jobHandler.UpdateJob)
		jobs.PATCH("/:id/reorder", writeAuth, jobHandler.ReorderJob)
	}

	candidates := simulated.Group("/candidates")
	{
		candidates.GET("", readAuth, candidateHandler.ListCandidates)
		candidates.GET("/:id", readAuth, candidateHandler.GetCandidate)
		candidates.GET("/:id/timeline", readAuth, candidateHandler.GetTimeline)
		candidates.POST("", writeAuth, candidateHandler.CreateCandidate)
		candidates.PATCH("/:id", writeAuth, candidateHandler.UpdateCandidate)
		candidates.POST("/:id/notes", writeAuth, candidateHandler.AddNote)
	}

	assessments := simulated.Group("/assessments/:jobId")
	{
		assessments.GET("", readAuth, assessmentHandler.GetAssessment)
		assessments.PUT("", writeAuth, assessmentHandler.PutAssessment)
		assessments.POST("/evaluate", readAuth, assessmentHandler.EvaluateAssessment)
		assessments.POST("/submit", writeAuth, assessmentHandler.SubmitAssessment)
		assessments.GET("/submissions", readAuth, assessmentHandler.ListSubmissions)

		if deps.Storage != nil {
			uploadHandler := NewUploadHandler(deps.Store.Assessments(), deps.Storage, deps.RateRedis, deps.ClamdAddr)
			assessments.POST("/uploads", writeAuth, uploadHandler.UploadAttachment)
			assessments.GET("/uploads/url", readAuth, uploadHandler.GetAttachmentURL)
		}
	}
}
