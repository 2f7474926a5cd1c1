package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"talentflow/internal/database"
	"talentflow/internal/fault"
	"talentflow/internal/metrics"
	"talentflow/internal/pipeline"
	"talentflow/internal/seed"
)

const (
	defaultJobPageSize = 10
	maxJobPageSize     = 100
)

// JobInput describes a job to create. An empty Slug is derived from Title.
type JobInput struct {
	Title string
	Slug  string
	Tags  []string
}

// JobFilter selects a page of jobs ordered by their board position.
type JobFilter struct {
	Search   string
	Status   string
	Tag      string
	Page     int
	PageSize int
}

func (f JobFilter) scopes() []queryFn {
	var fns []queryFn
	if s := strings.TrimSpace(f.Search); s != "" {
		fns = append(fns, searchAny(s, "title"))
	}
	if f.Status != "" {
		fns = append(fns, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("status = ?", f.Status)
		})
	}
	if f.Tag != "" {
		fns = append(fns, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("EXISTS (SELECT 1 FROM job_tags WHERE job_tags.job_id = jobs.id AND job_tags.tag = ?)", f.Tag)
		})
	}
	return fns
}

// JobPatch holds the mutable fields of a job. Nil fields are left unchanged.
type JobPatch struct {
	Title  *string
	Status *pipeline.JobStatus
	Tags   *[]string
}

// OrderReport describes how far the stored orders are from 1..N.
type OrderReport struct {
	Total   int
	Missing []int
	Extra   []int
}

// Dense reports whether the orders form a permutation of 1..Total.
func (r OrderReport) Dense() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0
}

// JobStore owns the jobs table and the order permutation over it.
type JobStore struct {
	db     *gorm.DB
	mu     *sync.Mutex
	faults FaultInjector
	now    func() time.Time
	logger *slog.Logger
}

// Create appends a job at the end of the board with status active.
func (s *JobStore) Create(ctx context.Context, in JobInput) (database.Job, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return database.Job{}, ErrEmptyTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var job database.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := s.pickSlug(tx, title, in.Slug)
		if err != nil {
			return err
		}

		var maxOrder int
		if err := tx.Model(&database.Job{}).Select("COALESCE(MAX(sort_order), 0)").Scan(&maxOrder).Error; err != nil {
			return fmt.Errorf("max order: %w", err)
		}

		now := s.now()
		job = database.Job{
			Title:     title,
			Slug:      slug,
			Status:    string(pipeline.JobActive),
			SortOrder: maxOrder + 1,
			Tags:      tagRows(in.Tags),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrDuplicateSlug, slug)
			}
			return fmt.Errorf("insert job: %w", err)
		}
		return s.faults.Inject(fault.OpWrite, "create job")
	})
	metrics.ObserveStoreOperation("job_create", err)
	if err != nil {
		return database.Job{}, err
	}
	s.logger.DebugContext(ctx, "job created", "job_id", job.ID, "order", job.SortOrder)
	return job, nil
}

// pickSlug returns explicit when it is free, or the first free variant of
// title's slug with a numeric suffix.
func (s *JobStore) pickSlug(tx *gorm.DB, title, explicit string) (string, error) {
	if explicit = seed.Slugify(explicit); explicit != "" {
		taken, err := slugTaken(tx, explicit)
		if err != nil {
			return "", err
		}
		if taken {
			return "", fmt.Errorf("%w: %s", ErrDuplicateSlug, explicit)
		}
		return explicit, nil
	}

	base := seed.Slugify(title)
	if base == "" {
		base = "job"
	}
	candidate := base
	for n := 2; ; n++ {
		taken, err := slugTaken(tx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

func slugTaken(tx *gorm.DB, slug string) (bool, error) {
	var count int64
	if err := tx.Model(&database.Job{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return count > 0, nil
}

func tagRows(tags []string) []database.JobTag {
	seen := make(map[string]bool, len(tags))
	var rows []database.JobTag
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		rows = append(rows, database.JobTag{Tag: t})
	}
	return rows
}

// Get loads one job with its tags.
func (s *JobStore) Get(ctx context.Context, id uint) (database.Job, error) {
	return getJob(s.db.WithContext(ctx), id)
}

func getJob(tx *gorm.DB, id uint) (database.Job, error) {
	var job database.Job
	if err := tx.Preload("Tags").First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Job{}, notFound(ErrJobNotFound, id)
		}
		return database.Job{}, fmt.Errorf("load job %d: %w", id, err)
	}
	return job, nil
}

// List returns one page of jobs matching f and the size of the filtered set.
func (s *JobStore) List(ctx context.Context, f JobFilter) ([]database.Job, int64, error) {
	page := newPage(f.Page, f.PageSize, defaultJobPageSize, maxJobPageSize)
	base := s.db.WithContext(ctx).Model(&database.Job{}).Scopes(f.scopes()...)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	jobs := make([]database.Job, 0, page.Size)
	err := base.Session(&gorm.Session{}).
		Preload("Tags").
		Order("sort_order ASC, id ASC").
		Scopes(page.scope).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, total, nil
}

// Update applies p. Order is only changed through SetOrder.
func (s *JobStore) Update(ctx context.Context, id uint, p JobPatch) (database.Job, error) {
	updates := map[string]any{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return database.Job{}, ErrEmptyTitle
		}
		updates["title"] = title
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return database.Job{}, fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
		}
		updates["status"] = string(*p.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var job database.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getJob(tx, id); err != nil {
			return err
		}

		updates["updated_at"] = s.now()
		if err := tx.Model(&database.Job{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("update job %d: %w", id, err)
		}

		if p.Tags != nil {
			if err := tx.Where("job_id = ?", id).Delete(&database.JobTag{}).Error; err != nil {
				return fmt.Errorf("clear tags: %w", err)
			}
			rows := tagRows(*p.Tags)
			for i := range rows {
				rows[i].JobID = id
			}
			if len(rows) > 0 {
				if err := tx.Create(&rows).Error; err != nil {
					return fmt.Errorf("insert tags: %w", err)
				}
			}
		}

		if err := s.faults.Inject(fault.OpWrite, "update job"); err != nil {
			return err
		}

		var err error
		job, err = getJob(tx, id)
		return err
	})
	metrics.ObserveStoreOperation("job_update", err)
	if err != nil {
		return database.Job{}, err
	}
	return job, nil
}

// SetStatus overwrites the job's status.
func (s *JobStore) SetStatus(ctx context.Context, id uint, status pipeline.JobStatus) (database.Job, error) {
	return s.Update(ctx, id, JobPatch{Status: &status})
}

// SetOrder moves the job at position from to position to and shifts every
// job in between by one, keeping orders a permutation of 1..N. from must be
// the job's current order. Nothing is written unless every step succeeds.
func (s *JobStore) SetOrder(ctx context.Context, id uint, from, to int) (database.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job database.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getJob(tx, id)
		if err != nil {
			return err
		}

		var n int64
		if err := tx.Model(&database.Job{}).Count(&n).Error; err != nil {
			return fmt.Errorf("count jobs: %w", err)
		}
		if from < 1 || int64(from) > n || to < 1 || int64(to) > n {
			return fmt.Errorf("%w: from=%d to=%d, want 1..%d", ErrOrderOutOfRange, from, to, n)
		}
		if current.SortOrder != from {
			return fmt.Errorf("%w: job %d is at %d, not %d", ErrStaleOrder, id, current.SortOrder, from)
		}

		if from != to {
			shift := tx.Model(&database.Job{}).Where("id <> ?", id)
			if from < to {
				shift = shift.Where("sort_order > ? AND sort_order <= ?", from, to).
					UpdateColumn("sort_order", gorm.Expr("sort_order - 1"))
			} else {
				shift = shift.Where("sort_order >= ? AND sort_order < ?", to, from).
					UpdateColumn("sort_order", gorm.Expr("sort_order + 1"))
			}
			if shift.Error != nil {
				return fmt.Errorf("shift orders: %w", shift.Error)
			}

			err := tx.Model(&database.Job{}).Where("id = ?", id).
				UpdateColumns(map[string]any{"sort_order": to, "updated_at": s.now()}).Error
			if err != nil {
				return fmt.Errorf("move job %d: %w", id, err)
			}
		}

		if err := s.faults.Inject(fault.OpReorder, "reorder"); err != nil {
			return err
		}

		job, err = getJob(tx, id)
		return err
	})
	metrics.ObserveStoreOperation("job_reorder", err)
	if err != nil {
		return database.Job{}, err
	}
	s.logger.DebugContext(ctx, "job reordered", "job_id", id, "from", from, "to", to)
	return job, nil
}

// CheckOrder inspects the stored orders without changing them.
func (s *JobStore) CheckOrder(ctx context.Context) (OrderReport, error) {
	var orders []int
	if err := s.db.WithContext(ctx).Model(&database.Job{}).Pluck("sort_order", &orders).Error; err != nil {
		return OrderReport{}, fmt.Errorf("load orders: %w", err)
	}
	missing, extra := denseViolations(orders)
	return OrderReport{Total: len(orders), Missing: missing, Extra: extra}, nil
}

// Normalize renumbers every job 1..N by (order, id) and returns how many
// rows changed.
func (s *JobStore) Normalize(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var jobs []database.Job
		if err := tx.Select("id", "sort_order").Order("sort_order ASC, id ASC").Find(&jobs).Error; err != nil {
			return fmt.Errorf("load jobs: %w", err)
		}
		for i, j := range jobs {
			if j.SortOrder == i+1 {
				continue
			}
			if err := tx.Model(&database.Job{}).Where("id = ?", j.ID).UpdateColumn("sort_order", i+1).Error; err != nil {
				return fmt.Errorf("renumber job %d: %w", j.ID, err)
			}
			changed++
		}
		return nil
	})
	metrics.ObserveStoreOperation("job_normalize", err)
	return changed, err
}

// denseViolations returns the values of 1..len(orders) that are absent and
// the values that occur more than once or fall outside that range.
func denseViolations(orders []int) (missing, extra []int) {
	counts := make(map[int]int, len(orders))
	for _, o := range orders {
		counts[o]++
	}
	for i := 1; i <= len(orders); i++ {
		if counts[i] == 0 {
			missing = append(missing, i)
		}
	}
	for o, c := range counts {
		if c > 1 || o < 1 || o > len(orders) {
			extra = append(extra, o)
		}
	}
	sort.Ints(extra)
	return missing, extra
}
