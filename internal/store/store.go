// Package store is the single mutation path for jobs, candidates, timelines
// and assessments. Every multi-record operation runs in one database
// transaction while holding the writer lock of the tables it touches, so
// readers never observe a partially applied change.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"talentflow/internal/database"
	"talentflow/internal/fault"
	"talentflow/internal/metrics"
	"talentflow/internal/seed"
)

// FaultInjector decides whether a write fails at the boundary.
type FaultInjector interface {
	Inject(op fault.Op, action string) error
}

type noFaults struct{}

func (noFaults) Inject(fault.Op, string) error { return nil }

// writeLocks serialize writers per table group. Acquire in field order when
// more than one is needed.
type writeLocks struct {
	jobs        sync.Mutex
	candidates  sync.Mutex
	assessments sync.Mutex
}

type options struct {
	faults             FaultInjector
	now                func() time.Time
	logger             *slog.Logger
	enforceTransitions bool
}

// Option configures a Store.
type Option func(*options)

// WithFaults injects simulated failures into write operations.
func WithFaults(f FaultInjector) Option {
	return func(o *options) {
		if f != nil {
			o.faults = f
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger for transaction-level debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTransitionRules enforces the linear stage graph on MoveStage.
func WithTransitionRules(enforce bool) Option {
	return func(o *options) { o.enforceTransitions = enforce }
}

// Store groups the per-table stores over one database handle.
type Store struct {
	db          *gorm.DB
	locks       *writeLocks
	logger      *slog.Logger
	jobs        *JobStore
	candidates  *CandidateStore
	assessments *AssessmentStore
}

// New builds a Store. The database must already be migrated.
func New(db *gorm.DB, opts ...Option) *Store {
	o := options{
		faults: noFaults{},
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	locks := &writeLocks{}
	return &Store{
		db:          db,
		locks:       locks,
		logger:      o.logger,
		jobs:        &JobStore{db: db, mu: &locks.jobs, faults: o.faults, now: o.now, logger: o.logger},
		candidates:  &CandidateStore{db: db, mu: &locks.candidates, faults: o.faults, now: o.now, logger: o.logger, enforceTransitions: o.enforceTransitions},
		assessments: &AssessmentStore{db: db, mu: &locks.assessments, faults: o.faults, now: o.now, logger: o.logger},
	}
}

func (s *Store) Jobs() *JobStore               { return s.jobs }
func (s *Store) Candidates() *CandidateStore   { return s.candidates }
func (s *Store) Assessments() *AssessmentStore { return s.assessments }

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) lockAll() func() {
	s.locks.jobs.Lock()
	s.locks.candidates.Lock()
	s.locks.assessments.Lock()
	return func() {
		s.locks.assessments.Unlock()
		s.locks.candidates.Unlock()
		s.locks.jobs.Unlock()
	}
}

// EnsureSeeded populates an empty database with build's dataset. The emptiness
// check and the inserts share one transaction under every writer lock, so
// concurrent callers seed at most once. It reports whether it seeded.
func (s *Store) EnsureSeeded(ctx context.Context, build func() seed.Dataset) (bool, error) {
	defer s.lockAll()()

	seeded := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.Job{}).Count(&count).Error; err != nil {
			return fmt.Errorf("count jobs: %w", err)
		}
		if count > 0 {
			return nil
		}
		if err := insertDataset(tx, build()); err != nil {
			return err
		}
		seeded = true
		return nil
	})
	metrics.ObserveStoreOperation("ensure_seeded", err)
	return seeded, err
}

// Reset deletes every record and inserts ds in a single transaction.
func (s *Store) Reset(ctx context.Context, ds seed.Dataset) error {
	defer s.lockAll()()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range database.All() {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return insertDataset(tx, ds)
	})
	metrics.ObserveStoreOperation("reset", err)
	return err
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// insertDataset writes ds, translating its local ids into database ids.
func insertDataset(tx *gorm.DB, ds seed.Dataset) error {
	jobIDs := make(map[uint]uint, len(ds.Jobs))
	for i := range ds.Jobs {
		job := ds.Jobs[i]
		local := job.ID
		job.ID = 0
		if err := tx.Create(&job).Error; err != nil {
			return fmt.Errorf("seed job %d: %w", local, err)
		}
		jobIDs[local] = job.ID
	}

	candidateIDs := make(map[uint]uint, len(ds.Candidates))
	candidates := make([]database.Candidate, len(ds.Candidates))
	for i, c := range ds.Candidates {
		c.JobID = jobIDs[c.JobID]
		c.ID = 0
		candidates[i] = c
	}
	if len(candidates) > 0 {
		if err := tx.CreateInBatches(&candidates, 200).Error; err != nil {
			return fmt.Errorf("seed candidates: %w", err)
		}
	}
	for i, c := range ds.Candidates {
		candidateIDs[c.ID] = candidates[i].ID
	}

	entries := make([]database.TimelineEntry, 0, len(ds.Timeline))
	for _, e := range ds.Timeline {
		id, ok := candidateIDs[e.CandidateID]
		if !ok {
			continue
		}
		e.ID = 0
		e.CandidateID = id
		entries = append(entries, e)
	}
	if len(entries) > 0 {
		if err := tx.CreateInBatches(&entries, 500).Error; err != nil {
			return fmt.Errorf("seed timeline: %w", err)
		}
	}

	for _, a := range ds.Assessments {
		id, ok := jobIDs[a.JobID]
		if !ok {
			continue
		}
		a.JobID = id
		if err := tx.Create(&a).Error; err != nil {
			return fmt.Errorf("seed assessment for job %d: %w", id, err)
		}
	}
	return nil
}
