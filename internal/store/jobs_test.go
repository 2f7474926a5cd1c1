package store_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"talentflow/internal/database"
	"talentflow/internal/fault"
	"talentflow/internal/pipeline"
	"talentflow/internal/store"
)

// ordersByID returns every job's order keyed by id.
func ordersByID(db *gorm.DB) map[uint]int {
	var jobs []database.Job
	Expect(db.Order("id").Find(&jobs).Error).To(Succeed())
	out := make(map[uint]int, len(jobs))
	for _, j := range jobs {
		out[j.ID] = j.SortOrder
	}
	return out
}

func expectDense(db *gorm.DB) {
	orders := ordersByID(db)
	seen := make(map[int]bool, len(orders))
	for _, o := range orders {
		Expect(o).To(BeNumerically(">=", 1))
		Expect(o).To(BeNumerically("<=", len(orders)))
		Expect(seen[o]).To(BeFalse(), "order %d duplicated", o)
		seen[o] = true
	}
}

func createJobs(s *store.Store, n int) []database.Job {
	jobs := make([]database.Job, 0, n)
	for i := 1; i <= n; i++ {
		job, err := s.Jobs().Create(context.TODO(), store.JobInput{Title: fmt.Sprintf("Job %d", i)})
		Expect(err).NotTo(HaveOccurred())
		jobs = append(jobs, job)
	}
	return jobs
}

var _ = Describe("JobStore", func() {
	var (
		s   *store.Store
		db  *gorm.DB
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.TODO()
		s, db = newTestStore()
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
	})

	Context("create", func() {
		It("appends at max+1 with status active", func() {
			jobs := createJobs(s, 3)
			for i, j := range jobs {
				Expect(j.SortOrder).To(Equal(i + 1))
				Expect(j.Status).To(Equal(string(pipeline.JobActive)))
			}
		})

		It("derives unique slugs from the title", func() {
			a, err := s.Jobs().Create(ctx, store.JobInput{Title: "Backend Engineer"})
			Expect(err).NotTo(HaveOccurred())
			b, err := s.Jobs().Create(ctx, store.JobInput{Title: "Backend Engineer"})
			Expect(err).NotTo(HaveOccurred())

			Expect(a.Slug).To(Equal("backend-engineer"))
			Expect(b.Slug).To(Equal("backend-engineer-2"))
		})

		It("rejects a taken explicit slug", func() {
			_, err := s.Jobs().Create(ctx, store.JobInput{Title: "One", Slug: "shared"})
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Jobs().Create(ctx, store.JobInput{Title: "Two", Slug: "shared"})
			Expect(err).To(MatchError(store.ErrDuplicateSlug))
		})

		It("deduplicates tags", func() {
			job, err := s.Jobs().Create(ctx, store.JobInput{Title: "Tagged", Tags: []string{"Go", "SQL", "Go", " "}})
			Expect(err).NotTo(HaveOccurred())

			loaded, err := s.Jobs().Get(ctx, job.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.TagNames()).To(ConsistOf("Go", "SQL"))
		})

		It("requires a title", func() {
			_, err := s.Jobs().Create(ctx, store.JobInput{Title: "  "})
			Expect(err).To(MatchError(store.ErrEmptyTitle))
		})
	})

	Context("set order", func() {
		It("moves the job at 2 to 5 and shifts 3..5 down", func() {
			jobs := createJobs(s, 5)

			_, err := s.Jobs().SetOrder(ctx, jobs[1].ID, 2, 5)
			Expect(err).NotTo(HaveOccurred())

			orders := ordersByID(db)
			Expect(orders[jobs[0].ID]).To(Equal(1))
			Expect(orders[jobs[1].ID]).To(Equal(5))
			Expect(orders[jobs[2].ID]).To(Equal(2))
			Expect(orders[jobs[3].ID]).To(Equal(3))
			Expect(orders[jobs[4].ID]).To(Equal(4))
		})

		It("moves last to first", func() {
			jobs := createJobs(s, 4)

			_, err := s.Jobs().SetOrder(ctx, jobs[3].ID, 4, 1)
			Expect(err).NotTo(HaveOccurred())

			orders := ordersByID(db)
			Expect(orders[jobs[3].ID]).To(Equal(1))
			Expect(orders[jobs[0].ID]).To(Equal(2))
			Expect(orders[jobs[1].ID]).To(Equal(3))
			Expect(orders[jobs[2].ID]).To(Equal(4))
		})

		It("treats from == to as a no-op", func() {
			jobs := createJobs(s, 3)
			before := ordersByID(db)

			_, err := s.Jobs().SetOrder(ctx, jobs[1].ID, 2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(ordersByID(db)).To(Equal(before))
		})

		It("restores every order after a round trip", func() {
			jobs := createJobs(s, 6)
			before := ordersByID(db)

			_, err := s.Jobs().SetOrder(ctx, jobs[4].ID, 5, 2)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Jobs().SetOrder(ctx, jobs[4].ID, 2, 5)
			Expect(err).NotTo(HaveOccurred())

			Expect(ordersByID(db)).To(Equal(before))
		})

		It("keeps a dense permutation over random moves", func() {
			jobs := createJobs(s, 8)
			rng := rand.New(rand.NewSource(7))

			for i := 0; i < 50; i++ {
				job := jobs[rng.Intn(len(jobs))]
				current, err := s.Jobs().Get(ctx, job.ID)
				Expect(err).NotTo(HaveOccurred())

				_, err = s.Jobs().SetOrder(ctx, job.ID, current.SortOrder, 1+rng.Intn(len(jobs)))
				Expect(err).NotTo(HaveOccurred())
				expectDense(db)
			}
		})

		It("rejects out of range targets", func() {
			jobs := createJobs(s, 3)

			_, err := s.Jobs().SetOrder(ctx, jobs[0].ID, 1, 4)
			Expect(err).To(MatchError(store.ErrOrderOutOfRange))
			_, err = s.Jobs().SetOrder(ctx, jobs[0].ID, 1, 0)
			Expect(err).To(MatchError(store.ErrOrderOutOfRange))
			expectDense(db)
		})

		It("rejects a stale from order", func() {
			jobs := createJobs(s, 3)

			_, err := s.Jobs().SetOrder(ctx, jobs[0].ID, 2, 3)
			Expect(err).To(MatchError(store.ErrStaleOrder))
		})

		It("returns not found for unknown jobs", func() {
			createJobs(s, 2)

			_, err := s.Jobs().SetOrder(ctx, 999, 1, 2)
			Expect(err).To(MatchError(store.ErrJobNotFound))
		})

		It("serializes concurrent reorders", func() {
			jobs := createJobs(s, 10)

			var wg sync.WaitGroup
			for w := 0; w < 8; w++ {
				wg.Add(1)
				go func(seed int64) {
					defer GinkgoRecover()
					defer wg.Done()
					rng := rand.New(rand.NewSource(seed))
					for i := 0; i < 10; i++ {
						job := jobs[rng.Intn(len(jobs))]
						current, err := s.Jobs().Get(ctx, job.ID)
						Expect(err).NotTo(HaveOccurred())
						_, err = s.Jobs().SetOrder(ctx, job.ID, current.SortOrder, 1+rng.Intn(len(jobs)))
						if err != nil {
							Expect(errors.Is(err, store.ErrStaleOrder)).To(BeTrue(), err.Error())
						}
					}
				}(int64(w))
			}
			wg.Wait()

			expectDense(db)
		})
	})

	Context("with reorder failures", func() {
		It("leaves every order untouched", func() {
			s, db = newTestStore(store.WithFaults(fault.Always{fault.OpReorder}))
			jobs := createJobs(s, 5)
			before := ordersByID(db)

			_, err := s.Jobs().SetOrder(ctx, jobs[0].ID, 1, 5)
			Expect(err).To(MatchError(fault.ErrSimulated))
			Expect(ordersByID(db)).To(Equal(before))
		})
	})

	Context("update", func() {
		It("sets status and replaces tags", func() {
			jobs := createJobs(s, 1)

			job, err := s.Jobs().SetStatus(ctx, jobs[0].ID, pipeline.JobArchived)
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(string(pipeline.JobArchived)))

			tags := []string{"React"}
			job, err = s.Jobs().Update(ctx, jobs[0].ID, store.JobPatch{Tags: &tags})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.TagNames()).To(Equal([]string{"React"}))
			Expect(job.SortOrder).To(Equal(1))
		})

		It("rejects unknown statuses", func() {
			jobs := createJobs(s, 1)

			_, err := s.Jobs().SetStatus(ctx, jobs[0].ID, pipeline.JobStatus("paused"))
			Expect(err).To(MatchError(store.ErrInvalidStatus))
		})

		It("rolls back on a simulated write failure", func() {
			s, _ = newTestStore(store.WithFaults(fault.Always{fault.OpWrite}))
			_, err := s.Jobs().Create(ctx, store.JobInput{Title: "Never"})
			Expect(err).To(MatchError(fault.ErrSimulated))

			_, total, err := s.Jobs().List(ctx, store.JobFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeZero())
		})
	})

	Context("list", func() {
		It("filters by search, status and tag in board order", func() {
			for _, in := range []store.JobInput{
				{Title: "Frontend Engineer", Tags: []string{"React"}},
				{Title: "Backend Engineer", Tags: []string{"SQL"}},
				{Title: "Frontend Lead", Tags: []string{"React"}},
			} {
				_, err := s.Jobs().Create(ctx, in)
				Expect(err).NotTo(HaveOccurred())
			}
			lead, _, err := s.Jobs().List(ctx, store.JobFilter{Search: "lead"})
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Jobs().SetStatus(ctx, lead[0].ID, pipeline.JobArchived)
			Expect(err).NotTo(HaveOccurred())

			jobs, total, err := s.Jobs().List(ctx, store.JobFilter{Search: "FRONTEND"})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeEquivalentTo(2))
			Expect(jobs[0].Title).To(Equal("Frontend Engineer"))
			Expect(jobs[1].Title).To(Equal("Frontend Lead"))

			jobs, total, err = s.Jobs().List(ctx, store.JobFilter{Search: "frontend", Status: "active"})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeEquivalentTo(1))
			Expect(jobs[0].Title).To(Equal("Frontend Engineer"))

			_, total, err = s.Jobs().List(ctx, store.JobFilter{Tag: "SQL"})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeEquivalentTo(1))
		})

		It("treats LIKE wildcards literally", func() {
			createJobs(s, 3)

			_, total, err := s.Jobs().List(ctx, store.JobFilter{Search: "%"})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeZero())
		})

		It("paginates with the filtered total", func() {
			createJobs(s, 25)

			jobs, total, err := s.Jobs().List(ctx, store.JobFilter{Page: 3, PageSize: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeEquivalentTo(25))
			Expect(jobs).To(HaveLen(5))
			Expect(jobs[0].SortOrder).To(Equal(21))
		})
	})

	Context("order maintenance", func() {
		It("reports and repairs gaps", func() {
			jobs := createJobs(s, 4)
			Expect(db.Model(&database.Job{}).Where("id = ?", jobs[1].ID).UpdateColumn("sort_order", 9).Error).To(Succeed())

			report, err := s.Jobs().CheckOrder(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Dense()).To(BeFalse())
			Expect(report.Missing).To(Equal([]int{2}))
			Expect(report.Extra).To(Equal([]int{9}))

			changed, err := s.Jobs().Normalize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(Equal(3))

			report, err = s.Jobs().CheckOrder(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Dense()).To(BeTrue())
			Expect(ordersByID(db)[jobs[1].ID]).To(Equal(4))
		})
	})
})
