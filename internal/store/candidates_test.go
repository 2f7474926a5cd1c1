package store_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"talentflow/internal/database"
	"talentflow/internal/fault"
	"talentflow/internal/pipeline"
	"talentflow/internal/store"
)

func timelineCount(db *gorm.DB, candidateID uint) int64 {
	var n int64
	Expect(db.Model(&database.TimelineEntry{}).Where("candidate_id = ?", candidateID).Count(&n).Error).To(Succeed())
	return n
}

var _ = Describe("CandidateStore", func() {
	var (
		s   *store.Store
		db  *gorm.DB
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.TODO()
		s, db = newTestStore(store.WithClock(func() time.Time { return time.Now().UTC() }))
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
	})

	create := func(name, email string) database.Candidate {
		c, err := s.Candidates().Create(ctx, store.CandidateInput{Name: name, Email: email, JobID: 1})
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	Context("create", func() {
		It("starts in applied with an application entry", func() {
			c := create("Alice Smith", "Alice@Example.com")
			Expect(c.Stage).To(Equal(string(pipeline.StageApplied)))
			Expect(c.Email).To(Equal("alice@example.com"))

			entries, err := s.Candidates().Timeline(ctx, c.ID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Details).To(Equal("Application submitted. Stage: applied"))
		})

		It("rejects duplicate emails", func() {
			create("Alice", "alice@example.com")
			_, err := s.Candidates().Create(ctx, store.CandidateInput{Name: "Other", Email: "ALICE@example.com"})
			Expect(err).To(MatchError(store.ErrDuplicateEmail))
		})
	})

	Context("move stage", func() {
		It("updates the stage and appends one stage_change entry together", func() {
			c := create("Bob", "bob@example.com")
			callTime := time.Now().UTC().Add(-time.Millisecond)

			moved, entry, err := s.Candidates().MoveStage(ctx, c.ID, pipeline.StageTech)
			Expect(err).NotTo(HaveOccurred())
			Expect(moved.Stage).To(Equal("tech"))
			Expect(entry.Type).To(Equal(database.TimelineStageChange))
			Expect(entry.Details).To(ContainSubstring("tech"))
			Expect(entry.Timestamp).To(BeTemporally(">=", callTime))

			detail, err := s.Candidates().Get(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(detail.Candidate.Stage).To(Equal("tech"))
			Expect(timelineCount(db, c.ID)).To(BeEquivalentTo(2))
		})

		It("accepts any target when transitions are not enforced", func() {
			c := create("Carol", "carol@example.com")

			_, _, err := s.Candidates().MoveStage(ctx, c.ID, pipeline.StageHired)
			Expect(err).NotTo(HaveOccurred())
			_, _, err = s.Candidates().MoveStage(ctx, c.ID, pipeline.StageApplied)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects unknown stages", func() {
			c := create("Dan", "dan@example.com")

			_, _, err := s.Candidates().MoveStage(ctx, c.ID, pipeline.Stage("interview"))
			Expect(err).To(MatchError(store.ErrInvalidStage))
		})

		It("returns not found for unknown candidates", func() {
			_, _, err := s.Candidates().MoveStage(ctx, 42, pipeline.StageScreen)
			Expect(err).To(MatchError(store.ErrCandidateNotFound))
		})
	})

	Context("with enforced transitions", func() {
		It("only allows edges of the linear graph", func() {
			s, db = newTestStore(store.WithTransitionRules(true))
			c := create("Eve", "eve@example.com")

			_, _, err := s.Candidates().MoveStage(ctx, c.ID, pipeline.StageOffer)
			Expect(err).To(MatchError(store.ErrIllegalTransition))
			Expect(timelineCount(db, c.ID)).To(BeEquivalentTo(1))

			_, _, err = s.Candidates().MoveStage(ctx, c.ID, pipeline.StageScreen)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("with write failures", func() {
		It("leaves stage and timeline unchanged", func() {
			ok, okDB := newTestStore()
			c, err := ok.Candidates().Create(ctx, store.CandidateInput{Name: "Frank", Email: "frank@example.com"})
			Expect(err).NotTo(HaveOccurred())

			failing := store.New(okDB, store.WithFaults(fault.Always{fault.OpWrite}))
			_, _, err = failing.Candidates().MoveStage(ctx, c.ID, pipeline.StageOffer)
			Expect(err).To(MatchError(fault.ErrSimulated))

			detail, err := ok.Candidates().Get(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(detail.Candidate.Stage).To(Equal("applied"))
			Expect(timelineCount(okDB, c.ID)).To(BeEquivalentTo(1))

			_, err = failing.Candidates().AddNote(ctx, c.ID, "hello", "")
			Expect(err).To(MatchError(fault.ErrSimulated))
			Expect(timelineCount(okDB, c.ID)).To(BeEquivalentTo(1))
		})
	})

	Context("notes", func() {
		It("appends notes returned newest first", func() {
			c := create("Grace", "grace@example.com")

			_, err := s.Candidates().AddNote(ctx, c.ID, "first", "John Doe")
			Expect(err).NotTo(HaveOccurred())
			note, err := s.Candidates().AddNote(ctx, c.ID, "  ping @jane smith  ", "John Doe")
			Expect(err).NotTo(HaveOccurred())
			Expect(note.Details).To(Equal("ping @jane smith"))
			Expect(note.Author).To(Equal("John Doe"))

			detail, err := s.Candidates().Get(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(detail.Notes).To(HaveLen(2))
			Expect(detail.Notes[0].Details).To(Equal("ping @jane smith"))
		})

		It("rejects empty notes", func() {
			c := create("Heidi", "heidi@example.com")

			_, err := s.Candidates().AddNote(ctx, c.ID, "   ", "")
			Expect(err).To(MatchError(store.ErrEmptyNote))
		})
	})

	Context("list", func() {
		It("combines search and stage before paginating", func() {
			for i := 1; i <= 25; i++ {
				c := create(fmt.Sprintf("Alice %d", i), fmt.Sprintf("a%d@example.com", i))
				if i%2 == 1 {
					_, _, err := s.Candidates().MoveStage(ctx, c.ID, pipeline.StageScreen)
					Expect(err).NotTo(HaveOccurred())
				}
			}
			create("Bob", "alice.bob@example.com")
			create("Zed", "zed@example.com")

			page, total, err := s.Candidates().List(ctx, store.CandidateFilter{Search: "ALICE", Stage: "screen", Page: 2, PageSize: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeEquivalentTo(13))
			Expect(page).To(HaveLen(3))
			for _, c := range page {
				Expect(c.Stage).To(Equal("screen"))
			}

			_, total, err = s.Candidates().List(ctx, store.CandidateFilter{Search: "alice"})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeEquivalentTo(26))
		})

		It("counts stages per job", func() {
			c := create("Ivan", "ivan@example.com")
			create("Judy", "judy@example.com")
			_, _, err := s.Candidates().MoveStage(ctx, c.ID, pipeline.StageOffer)
			Expect(err).NotTo(HaveOccurred())

			counts, err := s.Candidates().StageCounts(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(counts).To(HaveLen(len(pipeline.Stages)))
			Expect(counts[pipeline.StageApplied]).To(BeEquivalentTo(1))
			Expect(counts[pipeline.StageOffer]).To(BeEquivalentTo(1))
			Expect(counts[pipeline.StageHired]).To(BeZero())
		})
	})
})
