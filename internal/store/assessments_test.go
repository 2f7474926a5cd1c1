package store_test

import (
	"context"
	"math/rand"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"talentflow/internal/assessment"
	"talentflow/internal/database"
	"talentflow/internal/fault"
	"talentflow/internal/seed"
	"talentflow/internal/store"
)

func sampleDocument() assessment.Document {
	return assessment.Document{Sections: []assessment.Section{{
		ID:    "s1",
		Title: "Basics",
		Questions: []assessment.Question{
			{ID: "q1", Type: assessment.SingleChoice, Text: "Remote?", Required: true, Options: []string{"Yes", "No"}},
			{ID: "q2", Type: assessment.ShortText, Text: "Where?", Required: true, MaxLength: 20,
				Conditional: &assessment.Conditional{TargetQuestionID: "q1", TargetValue: "Yes"}},
		},
	}}}
}

var _ = Describe("AssessmentStore", func() {
	var (
		s   *store.Store
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.TODO()
		s, _ = newTestStore()
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
	})

	It("replaces the whole document on put", func() {
		_, err := s.Assessments().Put(ctx, 7, sampleDocument())
		Expect(err).NotTo(HaveOccurred())

		replacement := assessment.Document{Sections: []assessment.Section{{ID: "only", Title: "Only"}}}
		_, err = s.Assessments().Put(ctx, 7, replacement)
		Expect(err).NotTo(HaveOccurred())

		rec, err := s.Assessments().Get(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Document.Sections).To(HaveLen(1))
		Expect(rec.Document.Sections[0].ID).To(Equal("only"))
	})

	It("rejects structurally invalid documents", func() {
		doc := sampleDocument()
		doc.Sections[0].Questions[1].Conditional.TargetQuestionID = "missing"

		_, err := s.Assessments().Put(ctx, 7, doc)
		Expect(err).To(MatchError(assessment.ErrInvalidDocument))
	})

	It("returns not found for a job without an assessment", func() {
		_, err := s.Assessments().Get(ctx, 3)
		Expect(err).To(MatchError(store.ErrAssessmentNotFound))
	})

	It("stores submissions unvalidated and records reviews", func() {
		_, err := s.Assessments().Put(ctx, 7, sampleDocument())
		Expect(err).NotTo(HaveOccurred())

		sub, err := s.Assessments().Submit(ctx, 7, store.SubmissionInput{Responses: assessment.Responses{"q1": "Yes"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(sub.ReviewStatus).To(Equal(database.ReviewPending))

		issues := []assessment.Issue{{QuestionID: "q2", Message: "required"}}
		reviewed, err := s.Assessments().RecordReview(ctx, sub.ID, issues)
		Expect(err).NotTo(HaveOccurred())
		Expect(reviewed.ReviewStatus).To(Equal(database.ReviewReviewed))
		Expect(reviewed.Issues).To(Equal(issues))
		Expect(reviewed.ReviewedAt).NotTo(BeNil())
		Expect(reviewed.Responses).To(HaveKeyWithValue("q1", "Yes"))

		subs, err := s.Assessments().Submissions(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(subs).To(HaveLen(1))
	})

	It("refuses submissions for missing assessments", func() {
		_, err := s.Assessments().Submit(ctx, 9, store.SubmissionInput{})
		Expect(err).To(MatchError(store.ErrAssessmentNotFound))
	})

	It("keeps the previous document when the write fails", func() {
		_, err := s.Assessments().Put(ctx, 7, sampleDocument())
		Expect(err).NotTo(HaveOccurred())

		failing := store.New(s.DB(), store.WithFaults(fault.Always{fault.OpWrite}))
		_, err = failing.Assessments().Put(ctx, 7, assessment.Document{})
		Expect(err).To(MatchError(fault.ErrSimulated))

		rec, err := s.Assessments().Get(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Document.QuestionCount()).To(Equal(2))
	})

	It("finds attachments by job and key", func() {
		_, err := s.Assessments().AddAttachment(ctx, database.Attachment{JobID: 7, ObjectKey: "assessments/7/a.pdf", FileName: "a.pdf"})
		Expect(err).NotTo(HaveOccurred())

		a, err := s.Assessments().FindAttachment(ctx, 7, "assessments/7/a.pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(a.FileName).To(Equal("a.pdf"))

		_, err = s.Assessments().FindAttachment(ctx, 8, "assessments/7/a.pdf")
		Expect(err).To(MatchError(store.ErrAttachmentNotFound))
	})
})

var _ = Describe("Seeding", func() {
	var (
		s   *store.Store
		db  *gorm.DB
		ctx context.Context
	)

	counts := seed.Counts{Jobs: 6, Candidates: 40, Assessments: 3}
	dataset := func() seed.Dataset {
		return seed.Generate(rand.New(rand.NewSource(1)), counts, fixedNow)
	}

	BeforeEach(func() {
		ctx = context.TODO()
		s, db = newTestStore()
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
	})

	It("seeds an empty database exactly once", func() {
		seeded, err := s.EnsureSeeded(ctx, dataset)
		Expect(err).NotTo(HaveOccurred())
		Expect(seeded).To(BeTrue())

		seeded, err = s.EnsureSeeded(ctx, dataset)
		Expect(err).NotTo(HaveOccurred())
		Expect(seeded).To(BeFalse())

		var jobs, candidates, assessments int64
		Expect(db.Model(&database.Job{}).Count(&jobs).Error).To(Succeed())
		Expect(db.Model(&database.Candidate{}).Count(&candidates).Error).To(Succeed())
		Expect(db.Model(&database.Assessment{}).Count(&assessments).Error).To(Succeed())
		Expect(jobs).To(BeEquivalentTo(6))
		Expect(candidates).To(BeEquivalentTo(40))
		Expect(assessments).To(BeEquivalentTo(3))
		expectDense(db)
	})

	It("seeds once under concurrent callers", func() {
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			times int
		)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				seeded, err := s.EnsureSeeded(ctx, dataset)
				Expect(err).NotTo(HaveOccurred())
				if seeded {
					mu.Lock()
					times++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		Expect(times).To(Equal(1))
	})

	It("ends every seeded timeline at the candidate's stage", func() {
		_, err := s.EnsureSeeded(ctx, dataset)
		Expect(err).NotTo(HaveOccurred())

		cands, _, err := s.Candidates().List(ctx, store.CandidateFilter{PageSize: 100})
		Expect(err).NotTo(HaveOccurred())
		for _, c := range cands {
			entries, err := s.Candidates().Timeline(ctx, c.ID, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).NotTo(BeEmpty())
			Expect(entries[0].Details).To(HaveSuffix(c.Stage))
		}
	})

	It("resets to a fresh dataset", func() {
		_, err := s.EnsureSeeded(ctx, dataset)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Candidates().AddNote(ctx, 1, "extra", "")
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Reset(ctx, seed.Generate(rand.New(rand.NewSource(2)), seed.Counts{Jobs: 2}, fixedNow))).To(Succeed())

		var jobs, notes int64
		Expect(db.Model(&database.Job{}).Count(&jobs).Error).To(Succeed())
		Expect(db.Model(&database.TimelineEntry{}).Where("type = ?", database.TimelineNote).Count(&notes).Error).To(Succeed())
		Expect(jobs).To(BeEquivalentTo(2))
		Expect(notes).To(BeZero())
	})
})
