package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"talentflow/internal/database"
	"talentflow/internal/fault"
	"talentflow/internal/metrics"
	"talentflow/internal/pipeline"
)

const (
	defaultCandidatePageSize = 50
	maxCandidatePageSize     = 1000
)

// CandidateInput describes a new candidate. Stage defaults to applied.
type CandidateInput struct {
	Name  string
	Email string
	JobID uint
	Stage pipeline.Stage
}

// CandidateFilter selects a page of candidates ordered by id.
type CandidateFilter struct {
	Search   string
	Stage    string
	JobID    uint
	Page     int
	PageSize int
}

func (f CandidateFilter) scopes() []queryFn {
	var fns []queryFn
	if s := strings.TrimSpace(f.Search); s != "" {
		fns = append(fns, searchAny(s, "name", "email"))
	}
	if f.Stage != "" {
		fns = append(fns, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("stage = ?", f.Stage)
		})
	}
	if f.JobID != 0 {
		fns = append(fns, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("job_id = ?", f.JobID)
		})
	}
	return fns
}

// CandidateDetail is a candidate with its notes, newest first.
type CandidateDetail struct {
	Candidate database.Candidate
	Notes     []database.TimelineEntry
}

// CandidateStore owns candidates and their timelines. A stage change and its
// timeline entry are always written together.
type CandidateStore struct {
	db                 *gorm.DB
	mu                 *sync.Mutex
	faults             FaultInjector
	now                func() time.Time
	logger             *slog.Logger
	enforceTransitions bool
}

// Create inserts a candidate and logs the application on its timeline.
func (s *CandidateStore) Create(ctx context.Context, in CandidateInput) (database.Candidate, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" {
		return database.Candidate{}, ErrInvalidCandidate
	}
	stage := in.Stage
	if stage == "" {
		stage = pipeline.StageApplied
	}
	if !stage.Valid() {
		return database.Candidate{}, fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cand database.Candidate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.Candidate{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
		}

		now := s.now()
		cand = database.Candidate{
			Name:      name,
			Email:     email,
			Stage:     string(stage),
			JobID:     in.JobID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&cand).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
			}
			return fmt.Errorf("insert candidate: %w", err)
		}

		entry := database.TimelineEntry{
			CandidateID: cand.ID,
			Type:        database.TimelineStageChange,
			Details:     fmt.Sprintf("Application submitted. Stage: %s", stage),
			Timestamp:   now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("log application: %w", err)
		}
		return s.faults.Inject(fault.OpWrite, "create candidate")
	})
	metrics.ObserveStoreOperation("candidate_create", err)
	if err != nil {
		return database.Candidate{}, err
	}
	return cand, nil
}

// Get loads a candidate with its notes.
func (s *CandidateStore) Get(ctx context.Context, id uint) (CandidateDetail, error) {
	db := s.db.WithContext(ctx)
	cand, err := getCandidate(db, id)
	if err != nil {
		return CandidateDetail{}, err
	}

	notes := []database.TimelineEntry{}
	err = db.Where("candidate_id = ? AND type = ?", id, database.TimelineNote).
		Order("timestamp DESC, id DESC").
		Find(&notes).Error
	if err != nil {
		return CandidateDetail{}, fmt.Errorf("load notes: %w", err)
	}
	return CandidateDetail{Candidate: cand, Notes: notes}, nil
}

func getCandidate(tx *gorm.DB, id uint) (database.Candidate, error) {
	var cand database.Candidate
	if err := tx.First(&cand, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Candidate{}, notFound(ErrCandidateNotFound, id)
		}
		return database.Candidate{}, fmt.Errorf("load candidate %d: %w", id, err)
	}
	return cand, nil
}

// List returns one page of candidates matching f and the filtered total.
func (s *CandidateStore) List(ctx context.Context, f CandidateFilter) ([]database.Candidate, int64, error) {
	page := newPage(f.Page, f.PageSize, defaultCandidatePageSize, maxCandidatePageSize)
	base := s.db.WithContext(ctx).Model(&database.Candidate{}).Scopes(f.scopes()...)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count candidates: %w", err)
	}

	cands := make([]database.Candidate, 0, page.Size)
	if err := base.Session(&gorm.Session{}).Order("id ASC").Scopes(page.scope).Find(&cands).Error; err != nil {
		return nil, 0, fmt.Errorf("list candidates: %w", err)
	}
	return cands, total, nil
}

// MoveStage sets the candidate's stage and appends the matching timeline
// entry. Either both are stored or neither is.
func (s *CandidateStore) MoveStage(ctx context.Context, id uint, stage pipeline.Stage) (database.Candidate, database.TimelineEntry, error) {
	if !stage.Valid() {
		return database.Candidate{}, database.TimelineEntry{}, fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		cand  database.Candidate
		entry database.TimelineEntry
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cand, err = getCandidate(tx, id)
		if err != nil {
			return err
		}
		from := pipeline.Stage(cand.Stage)
		if s.enforceTransitions && !pipeline.CanTransition(from, stage) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, stage)
		}

		now := s.now()
		err = tx.Model(&database.Candidate{}).Where("id = ?", id).
			Updates(map[string]any{"stage": string(stage), "updated_at": now}).Error
		if err != nil {
			return fmt.Errorf("update stage: %w", err)
		}
		cand.Stage = string(stage)
		cand.UpdatedAt = now

		entry = database.TimelineEntry{
			CandidateID: id,
			Type:        database.TimelineStageChange,
			Details:     fmt.Sprintf("Moved to %s", stage),
			Timestamp:   now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append timeline: %w", err)
		}

		return s.faults.Inject(fault.OpWrite, "stage change")
	})
	metrics.ObserveStoreOperation("candidate_move_stage", err)
	if err != nil {
		return database.Candidate{}, database.TimelineEntry{}, err
	}
	s.logger.DebugContext(ctx, "candidate moved", "candidate_id", id, "stage", stage)
	return cand, entry, nil
}

// AddNote appends a note to the candidate's timeline.
func (s *CandidateStore) AddNote(ctx context.Context, id uint, text, author string) (database.TimelineEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return database.TimelineEntry{}, ErrEmptyNote
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var entry database.TimelineEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getCandidate(tx, id); err != nil {
			return err
		}
		entry = database.TimelineEntry{
			CandidateID: id,
			Type:        database.TimelineNote,
			Details:     text,
			Author:      strings.TrimSpace(author),
			Timestamp:   s.now(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append note: %w", err)
		}
		return s.faults.Inject(fault.OpWrite, "add note")
	})
	metrics.ObserveStoreOperation("candidate_add_note", err)
	if err != nil {
		return database.TimelineEntry{}, err
	}
	return entry, nil
}

// Timeline returns every entry for the candidate ordered by time.
func (s *CandidateStore) Timeline(ctx context.Context, id uint, newestFirst bool) ([]database.TimelineEntry, error) {
	db := s.db.WithContext(ctx)
	if _, err := getCandidate(db, id); err != nil {
		return nil, err
	}

	order := "timestamp ASC, id ASC"
	if newestFirst {
		order = "timestamp DESC, id DESC"
	}
	entries := []database.TimelineEntry{}
	if err := db.Where("candidate_id = ?", id).Order(order).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	return entries, nil
}

// StageCounts counts candidates per stage, restricted to jobID when non-zero.
// Every stage is present in the result.
func (s *CandidateStore) StageCounts(ctx context.Context, jobID uint) (map[pipeline.Stage]int64, error) {
	var rows []struct {
		Stage string
		Count int64
	}
	q := s.db.WithContext(ctx).Model(&database.Candidate{}).Select("stage, COUNT(*) AS count")
	if jobID != 0 {
		q = q.Where("job_id = ?", jobID)
	}
	if err := q.Group("stage").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count stages: %w", err)
	}

	counts := make(map[pipeline.Stage]int64, len(pipeline.Stages))
	for _, st := range pipeline.Stages {
		counts[st] = 0
	}
	for _, r := range rows {
		counts[pipeline.Stage(r.Stage)] = r.Count
	}
	return counts, nil
}
