package database

import (
	"time"

	"gorm.io/datatypes"
)

// Job 表示一个招聘岗位。SortOrder 在全部岗位间构成 1..N 的稠密排列。
type Job struct {
	ID        uint      `gorm:"primaryKey"`
	Slug      string    `gorm:"uniqueIndex;size:255;not null"`
	Title     string    `gorm:"index;size:255;not null"`
	Status    string    `gorm:"index;size:16;not null"`
	SortOrder int       `gorm:"index;not null"`
	Tags      []JobTag  `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// JobTag 是岗位标签的多值索引。
type JobTag struct {
	JobID uint   `gorm:"primaryKey;autoIncrement:false"`
	Tag   string `gorm:"primaryKey;index;size:64"`
}

// TagNames 返回标签名列表。
func (j Job) TagNames() []string {
	out := make([]string, 0, len(j.Tags))
	for _, t := range j.Tags {
		out = append(out, t.Tag)
	}
	return out
}

// Candidate 表示一位候选人及其当前阶段。JobID 不做外键约束。
type Candidate struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"index;size:255;not null"`
	Email     string `gorm:"uniqueIndex;size:255;not null"`
	Stage     string `gorm:"index;size:16;not null"`
	JobID     uint   `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	TimelineStageChange = "stage_change"
	TimelineNote        = "note"
)

// TimelineEntry 是候选人时间线上的只追加记录。
type TimelineEntry struct {
	ID          uint      `gorm:"primaryKey"`
	CandidateID uint      `gorm:"index;not null"`
	Type        string    `gorm:"index;size:16;not null"`
	Details     string    `gorm:"type:text"`
	Author      string    `gorm:"index;size:128"`
	Timestamp   time.Time `gorm:"index;not null"`
}

// Assessment 以岗位 ID 为主键，整体替换。
type Assessment struct {
	JobID     uint           `gorm:"primaryKey;autoIncrement:false"`
	Sections  datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

const (
	ReviewPending  = "pending"
	ReviewReviewed = "reviewed"
)

// Submission 记录一次测评提交，只追加；审阅结果由 worker 异步写入。
type Submission struct {
	ID           uint           `gorm:"primaryKey"`
	JobID        uint           `gorm:"index;not null"`
	CandidateID  *uint          `gorm:"index"`
	Responses    datatypes.JSON `gorm:"not null"`
	SubmittedAt  time.Time      `gorm:"index;not null"`
	ReviewStatus string         `gorm:"index;size:16;not null"`
	ReviewIssues datatypes.JSON
	ReviewedAt   *time.Time
}

// Attachment 记录为文件题上传到对象存储的文件。
type Attachment struct {
	ID          uint   `gorm:"primaryKey"`
	JobID       uint   `gorm:"index;not null"`
	ObjectKey   string `gorm:"uniqueIndex;size:512;not null"`
	FileName    string `gorm:"size:255"`
	ContentType string `gorm:"size:128"`
	Size        int64
	CreatedAt   time.Time
}

// All 返回需要迁移的全部模型。
func All() []any {
	return []any{&Job{}, &JobTag{}, &Candidate{}, &TimelineEntry{}, &Assessment{}, &Submission{}, &Attachment{}}
}
