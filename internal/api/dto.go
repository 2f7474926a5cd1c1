package api

import (
	"time"

	"talentflow/internal/assessment"
	"talentflow/internal/database"
	"talentflow/internal/mention"
	"talentflow/internal/store"
)

type jobDTO struct {
	ID        uint      `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Tags      []string  `json:"tags"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
}

func toJobDTO(j database.Job) jobDTO {
	return jobDTO{
		ID:        j.ID,
		Slug:      j.Slug,
		Title:     j.Title,
		Status:    j.Status,
		Tags:      j.TagNames(),
		Order:     j.SortOrder,
		CreatedAt: j.CreatedAt,
	}
}

type candidateDTO struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Stage string `json:"stage"`
	JobID uint   `json:"jobId"`
}

func toCandidateDTO(c database.Candidate) candidateDTO {
	return candidateDTO{ID: c.ID, Name: c.Name, Email: c.Email, Stage: c.Stage, JobID: c.JobID}
}

// stageChangeDTO 是阶段流转的响应：更新后的候选人与新增的时间线记录。
type stageChangeDTO struct {
	candidateDTO
	TimelineEntry timelineDTO `json:"timelineEntry"`
}

type timelineDTO struct {
	ID          uint      `json:"id"`
	CandidateID uint      `json:"candidateId"`
	Type        string    `json:"type"`
	Details     string    `json:"details"`
	Author      string    `json:"author,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func toTimelineDTO(e database.TimelineEntry) timelineDTO {
	return timelineDTO{
		ID:          e.ID,
		CandidateID: e.CandidateID,
		Type:        e.Type,
		Details:     e.Details,
		Author:      e.Author,
		Timestamp:   e.Timestamp,
	}
}

// noteDTO 附带按团队名册识别出的 @提及，仅用于前端高亮。
type noteDTO struct {
	ID        uint      `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Mentions  []string  `json:"mentions"`
}

func toNoteDTO(e database.TimelineEntry, roster []string) noteDTO {
	mentions := mention.Find(e.Details, roster)
	if mentions == nil {
		mentions = []string{}
	}
	return noteDTO{ID: e.ID, Text: e.Details, Author: e.Author, Timestamp: e.Timestamp, Mentions: mentions}
}

type candidateDetailDTO struct {
	candidateDTO
	Notes []noteDTO `json:"notes"`
}

type submissionDTO struct {
	ID           uint                 `json:"id"`
	JobID        uint                 `json:"jobId"`
	CandidateID  *uint                `json:"candidateId,omitempty"`
	Responses    assessment.Responses `json:"responses"`
	SubmittedAt  time.Time            `json:"submittedAt"`
	ReviewStatus string               `json:"reviewStatus"`
	Issues       []assessment.Issue   `json:"issues"`
	ReviewedAt   *time.Time           `json:"reviewedAt,omitempty"`
}

func toSubmissionDTO(s store.SubmissionRecord) submissionDTO {
	return submissionDTO{
		ID:           s.ID,
		JobID:        s.JobID,
		CandidateID:  s.CandidateID,
		Responses:    s.Responses,
		SubmittedAt:  s.SubmittedAt,
		ReviewStatus: s.ReviewStatus,
		Issues:       s.Issues,
		ReviewedAt:   s.ReviewedAt,
	}
}
