package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"talentflow/internal/api/middleware"
	"talentflow/internal/assessment"
	"talentflow/internal/events"
	"talentflow/internal/store"
	"talentflow/internal/tasks"
)

// TaskEnqueuer 是 *asynq.Client 的最小子集，便于测试替换。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AssessmentHandler 提供测评的读取、整体替换、预览校验与提交接口。
type AssessmentHandler struct {
	assessments *store.AssessmentStore
	queue       TaskEnqueuer
	notifier
}

// NewAssessmentHandler 返回 AssessmentHandler 实例；queue 为 nil 时提交不会进入异步审阅。
func NewAssessmentHandler(s *store.Store, queue TaskEnqueuer, publisher events.Publisher) *AssessmentHandler {
	return &AssessmentHandler{assessments: s.Assessments(), queue: queue, notifier: newNotifier(publisher)}
}

type assessmentDTO struct {
	JobID     uint                 `json:"jobId"`
	Sections  []assessment.Section `json:"sections"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

func toAssessmentDTO(rec store.AssessmentRecord) assessmentDTO {
	return assessmentDTO{JobID: rec.JobID, Sections: rec.Document.Sections, UpdatedAt: rec.UpdatedAt}
}

// GetAssessment 返回岗位的测评文档。
func (h *AssessmentHandler) GetAssessment(c *gin.Context) {
	jobID, ok := parseID(c, "jobId")
	if !ok {
		return
	}
	rec, err := h.assessments.Get(c.Request.Context(), jobID)
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}
	c.JSON(http.StatusOK, toAssessmentDTO(rec))
}

// PutAssessment 用请求体整体替换测评文档。
func (h *AssessmentHandler) PutAssessment(c *gin.Context) {
	jobID, ok := parseID(c, "jobId")
	if !ok {
		return
	}
	var doc assessment.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		BadRequest(c, err.Error())
		return
	}

	rec, err := h.assessments.Put(c.Request.Context(), jobID, doc)
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	h.publish(c, events.Event{
		Type:  events.AssessmentUpdated,
		JobID: jobID,
		Data:  gin.H{"questions": rec.Document.QuestionCount()},
	})
	c.JSON(http.StatusOK, toAssessmentDTO(rec))
}

type responsesRequest struct {
	CandidateID *uint                `json:"candidateId"`
	Responses   assessment.Responses `json:"responses"`
}

// EvaluateAssessment 在不落库的情况下返回草稿答案对应的可见题目与校验问题。
func (h *AssessmentHandler) EvaluateAssessment(c *gin.Context) {
	jobID, ok := parseID(c, "jobId")
	if !ok {
		return
	}
	var req responsesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	rec, err := h.assessments.Get(c.Request.Context(), jobID)
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	visible := rec.Document.VisibleQuestions(req.Responses)
	ids := make([]string, 0, len(visible))
	for _, q := range visible {
		ids = append(ids, q.ID)
	}
	issues := rec.Document.ValidateResponses(req.Responses)
	if issues == nil {
		issues = []assessment.Issue{}
	}
	c.JSON(http.StatusOK, gin.H{"visibleQuestionIds": ids, "issues": issues, "valid": len(issues) == 0})
}

// SubmitAssessment 追加一次提交（服务端不校验答案），并投递异步审阅任务。
func (h *AssessmentHandler) SubmitAssessment(c *gin.Context) {
	jobID, ok := parseID(c, "jobId")
	if !ok {
		return
	}
	var req responsesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)

	sub, err := h.assessments.Submit(ctx, jobID, store.SubmissionInput{CandidateID: req.CandidateID, Responses: req.Responses})
	if err != nil {
		respondStoreError(c, log, err)
		return
	}

	if h.queue != nil {
		task, err := tasks.NewSubmissionReviewTask(sub.ID, jobID, middleware.GetCorrelationID(c))
		if err == nil {
			_, err = h.queue.EnqueueContext(ctx, task)
		}
		if err != nil {
			log.Error("enqueue submission review failed", slog.Uint64("submission_id", uint64(sub.ID)), slog.Any("error", err))
		}
	}

	dto := toSubmissionDTO(sub)
	h.publish(c, events.Event{Type: events.SubmissionReceived, JobID: jobID, SubmissionID: sub.ID})
	c.JSON(http.StatusCreated, dto)
}

// ListSubmissions 返回岗位的全部提交及审阅状态，新的在前。
func (h *AssessmentHandler) ListSubmissions(c *gin.Context) {
	jobID, ok := parseID(c, "jobId")
	if !ok {
		return
	}
	subs, err := h.assessments.Submissions(c.Request.Context(), jobID)
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	items := make([]submissionDTO, 0, len(subs))
	for _, s := range subs {
		items = append(items, toSubmissionDTO(s))
	}
	writeList(c, items, int64(len(items)), false)
}
