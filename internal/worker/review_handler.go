package worker

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"talentflow/internal/assessment"
	"talentflow/internal/errcode"
	"talentflow/internal/events"
	"talentflow/internal/store"
	"talentflow/internal/tasks"
)

// SubmissionStore 是审阅任务所需的存储能力，*store.AssessmentStore 实现了它。
type SubmissionStore interface {
	Get(ctx context.Context, jobID uint) (store.AssessmentRecord, error)
	Submission(ctx context.Context, id uint) (store.SubmissionRecord, error)
	RecordReview(ctx context.Context, id uint, issues []assessment.Issue) (store.SubmissionRecord, error)
}

// ReviewResult 是 submission.reviewed 事件的数据部分。
type ReviewResult struct {
	ReviewStatus string             `json:"reviewStatus"`
	Visible      int                `json:"visibleQuestions"`
	Issues       []assessment.Issue `json:"issues"`
	Error        string             `json:"error,omitempty"`
}

// SubmissionReviewHandler 消费提交审阅任务：按条件可见性校验答案并记录结果。
type SubmissionReviewHandler struct {
	store     SubmissionStore
	publisher events.Publisher
	logger    *slog.Logger
}

// NewSubmissionReviewHandler 创建任务处理器。
func NewSubmissionReviewHandler(s SubmissionStore, publisher events.Publisher, logger *slog.Logger) *SubmissionReviewHandler {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &SubmissionReviewHandler{store: s, publisher: publisher, logger: logger}
}

// ProcessTask 实现 asynq.Handler。
func (h *SubmissionReviewHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	payload, err := tasks.ParseSubmissionReview(t)
	if err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return errors.Join(err, asynq.SkipRetry)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("submission_id", uint64(payload.SubmissionID)),
	)

	sub, err := h.store.Submission(ctx, payload.SubmissionID)
	if err != nil {
		if errors.Is(err, store.ErrSubmissionNotFound) {
			log.Warn("submission not found, skipping task")
			return nil
		}
		log.Error("query submission failed", slog.Any("error", err))
		return err
	}
	log = log.With(slog.Uint64("job_id", uint64(sub.JobID)))

	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		h.publish(ctx, log, events.Event{
			Type:          events.SubmissionReviewed,
			JobID:         sub.JobID,
			SubmissionID:  sub.ID,
			CorrelationID: payload.CorrelationID,
			Code:          errcode.SystemError,
			Data:          ReviewResult{ReviewStatus: sub.ReviewStatus, Issues: []assessment.Issue{}, Error: strings.TrimSpace(retErr.Error())},
		})
	}()

	rec, err := h.store.Get(ctx, sub.JobID)
	if err != nil {
		if errors.Is(err, store.ErrAssessmentNotFound) {
			log.Warn("assessment not found, skipping task")
			return nil
		}
		log.Error("query assessment failed", slog.Any("error", err))
		return err
	}

	issues := rec.Document.ValidateResponses(sub.Responses)
	reviewed, err := h.store.RecordReview(ctx, sub.ID, issues)
	if err != nil {
		log.Error("record review failed", slog.Any("error", err))
		return err
	}

	code := errcode.OK
	if len(issues) > 0 {
		code = errcode.ValidationFailed
	}
	h.publish(ctx, log, events.Event{
		Type:          events.SubmissionReviewed,
		JobID:         reviewed.JobID,
		SubmissionID:  reviewed.ID,
		CorrelationID: payload.CorrelationID,
		Code:          code,
		Data: ReviewResult{
			ReviewStatus: reviewed.ReviewStatus,
			Visible:      len(rec.Document.VisibleQuestions(sub.Responses)),
			Issues:       reviewed.Issues,
		},
	})

	log.Info("submission reviewed", slog.Int("issues", len(issues)))
	return nil
}

func (h *SubmissionReviewHandler) publish(ctx context.Context, log *slog.Logger, ev events.Event) {
	if err := h.publisher.Publish(ctx, ev); err != nil {
		log.Error("publish review event failed", slog.Any("error", err))
	}
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
