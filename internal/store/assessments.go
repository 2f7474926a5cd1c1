package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"talentflow/internal/assessment"
	"talentflow/internal/database"
	"talentflow/internal/fault"
	"talentflow/internal/metrics"
)

// AssessmentRecord is a decoded assessment row.
type AssessmentRecord struct {
	JobID     uint
	Document  assessment.Document
	UpdatedAt time.Time
}

// SubmissionInput is one candidate's answers. Responses are stored as sent.
type SubmissionInput struct {
	CandidateID *uint
	Responses   assessment.Responses
}

// SubmissionRecord is a decoded submission row.
type SubmissionRecord struct {
	ID           uint
	JobID        uint
	CandidateID  *uint
	Responses    assessment.Responses
	SubmittedAt  time.Time
	ReviewStatus string
	Issues       []assessment.Issue
	ReviewedAt   *time.Time
}

// AssessmentStore owns assessments, their submissions and attachments.
type AssessmentStore struct {
	db     *gorm.DB
	mu     *sync.Mutex
	faults FaultInjector
	now    func() time.Time
	logger *slog.Logger
}

// Get loads the assessment for jobID.
func (s *AssessmentStore) Get(ctx context.Context, jobID uint) (AssessmentRecord, error) {
	var row database.Assessment
	if err := s.db.WithContext(ctx).First(&row, "job_id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AssessmentRecord{}, notFound(ErrAssessmentNotFound, jobID)
		}
		return AssessmentRecord{}, fmt.Errorf("load assessment %d: %w", jobID, err)
	}
	return decodeAssessment(row)
}

func decodeAssessment(row database.Assessment) (AssessmentRecord, error) {
	rec := AssessmentRecord{JobID: row.JobID, UpdatedAt: row.UpdatedAt}
	if err := json.Unmarshal(row.Sections, &rec.Document.Sections); err != nil {
		return AssessmentRecord{}, fmt.Errorf("decode assessment %d: %w", row.JobID, err)
	}
	if rec.Document.Sections == nil {
		rec.Document.Sections = []assessment.Section{}
	}
	return rec, nil
}

// Put replaces the whole document for jobID after structural validation.
func (s *AssessmentStore) Put(ctx context.Context, jobID uint, doc assessment.Document) (AssessmentRecord, error) {
	if err := doc.Validate(); err != nil {
		return AssessmentRecord{}, err
	}
	if doc.Sections == nil {
		doc.Sections = []assessment.Section{}
	}
	raw, err := json.Marshal(doc.Sections)
	if err != nil {
		return AssessmentRecord{}, fmt.Errorf("encode assessment: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := database.Assessment{JobID: jobID, Sections: datatypes.JSON(raw), UpdatedAt: s.now()}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"sections", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("save assessment %d: %w", jobID, err)
		}
		return s.faults.Inject(fault.OpWrite, "save assessment")
	})
	metrics.ObserveStoreOperation("assessment_put", err)
	if err != nil {
		return AssessmentRecord{}, err
	}
	s.logger.DebugContext(ctx, "assessment saved", "job_id", jobID, "questions", doc.QuestionCount())
	return AssessmentRecord{JobID: jobID, Document: doc, UpdatedAt: row.UpdatedAt}, nil
}

// Submit appends a pending submission for an existing assessment.
func (s *AssessmentStore) Submit(ctx context.Context, jobID uint, in SubmissionInput) (SubmissionRecord, error) {
	responses := in.Responses
	if responses == nil {
		responses = assessment.Responses{}
	}
	raw, err := json.Marshal(responses)
	if err != nil {
		return SubmissionRecord{}, fmt.Errorf("encode responses: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := database.Submission{
		JobID:        jobID,
		CandidateID:  in.CandidateID,
		Responses:    datatypes.JSON(raw),
		SubmittedAt:  s.now(),
		ReviewStatus: database.ReviewPending,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.Assessment{}).Where("job_id = ?", jobID).Count(&count).Error; err != nil {
			return fmt.Errorf("check assessment: %w", err)
		}
		if count == 0 {
			return notFound(ErrAssessmentNotFound, jobID)
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
		return s.faults.Inject(fault.OpWrite, "submit assessment")
	})
	metrics.ObserveStoreOperation("assessment_submit", err)
	if err != nil {
		return SubmissionRecord{}, err
	}
	return decodeSubmission(row)
}

// Submissions lists the submissions for jobID, newest first.
func (s *AssessmentStore) Submissions(ctx context.Context, jobID uint) ([]SubmissionRecord, error) {
	var rows []database.Submission
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).
		Order("submitted_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	out := make([]SubmissionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeSubmission(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Submission loads one submission.
func (s *AssessmentStore) Submission(ctx context.Context, id uint) (SubmissionRecord, error) {
	var row database.Submission
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SubmissionRecord{}, notFound(ErrSubmissionNotFound, id)
		}
		return SubmissionRecord{}, fmt.Errorf("load submission %d: %w", id, err)
	}
	return decodeSubmission(row)
}

// RecordReview stores the review result and marks the submission reviewed.
func (s *AssessmentStore) RecordReview(ctx context.Context, id uint, issues []assessment.Issue) (SubmissionRecord, error) {
	if issues == nil {
		issues = []assessment.Issue{}
	}
	raw, err := json.Marshal(issues)
	if err != nil {
		return SubmissionRecord{}, fmt.Errorf("encode issues: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rec SubmissionRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		res := tx.Model(&database.Submission{}).Where("id = ?", id).Updates(map[string]any{
			"review_status": database.ReviewReviewed,
			"review_issues": datatypes.JSON(raw),
			"reviewed_at":   now,
		})
		if res.Error != nil {
			return fmt.Errorf("record review %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound(ErrSubmissionNotFound, id)
		}

		var row database.Submission
		if err := tx.First(&row, id).Error; err != nil {
			return fmt.Errorf("reload submission %d: %w", id, err)
		}
		var err error
		rec, err = decodeSubmission(row)
		return err
	})
	metrics.ObserveStoreOperation("submission_review", err)
	return rec, err
}

func decodeSubmission(row database.Submission) (SubmissionRecord, error) {
	rec := SubmissionRecord{
		ID:           row.ID,
		JobID:        row.JobID,
		CandidateID:  row.CandidateID,
		SubmittedAt:  row.SubmittedAt,
		ReviewStatus: row.ReviewStatus,
		ReviewedAt:   row.ReviewedAt,
		Responses:    assessment.Responses{},
		Issues:       []assessment.Issue{},
	}
	if len(row.Responses) > 0 {
		if err := json.Unmarshal(row.Responses, &rec.Responses); err != nil {
			return SubmissionRecord{}, fmt.Errorf("decode responses %d: %w", row.ID, err)
		}
	}
	if len(row.ReviewIssues) > 0 {
		if err := json.Unmarshal(row.ReviewIssues, &rec.Issues); err != nil {
			return SubmissionRecord{}, fmt.Errorf("decode issues %d: %w", row.ID, err)
		}
	}
	return rec, nil
}

// AddAttachment records an uploaded file for a job's assessment.
func (s *AssessmentStore) AddAttachment(ctx context.Context, a database.Attachment) (database.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	err := s.db.WithContext(ctx).Create(&a).Error
	metrics.ObserveStoreOperation("attachment_add", err)
	if err != nil {
		return database.Attachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	return a, nil
}

// FindAttachment looks up an attachment by job and object key.
func (s *AssessmentStore) FindAttachment(ctx context.Context, jobID uint, key string) (database.Attachment, error) {
	var a database.Attachment
	err := s.db.WithContext(ctx).Where("job_id = ? AND object_key = ?", jobID, key).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Attachment{}, ErrAttachmentNotFound
		}
		return database.Attachment{}, fmt.Errorf("load attachment: %w", err)
	}
	return a, nil
}
