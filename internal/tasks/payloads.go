package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeSubmissionReview = "submission:review"
)

// SubmissionReviewPayload 描述审阅一次测评提交所需的最小信息。
type SubmissionReviewPayload struct {
	SubmissionID  uint   `json:"submission_id"`
	JobID         uint   `json:"job_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewSubmissionReviewTask 构造一个新的提交审阅任务，最多重试 3 次。
func NewSubmissionReviewTask(submissionID, jobID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SubmissionReviewPayload{
		SubmissionID:  submissionID,
		JobID:         jobID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSubmissionReview, payload, asynq.MaxRetry(3)), nil
}

// ParseSubmissionReview 解析任务负载。
func ParseSubmissionReview(task *asynq.Task) (SubmissionReviewPayload, error) {
	var p SubmissionReviewPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.SubmissionID == 0 {
		return p, fmt.Errorf("payload missing submission_id")
	}
	return p, nil
}
