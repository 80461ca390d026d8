package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/Mahirobot/aegis-feedback-engine/internal/apperrors"
	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
	"github.com/Mahirobot/aegis-feedback-engine/internal/store"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Suite")
}

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(GinkgoWriter)
	return l
}

// openTempStore opens a fresh, migrated store backed by a file in a
// per-spec temp directory, exercising the real goose migration path and
// the real SQLite unique-index behavior Insert's conflict handling
// depends on.
func openTempStore() *store.Store {
	dir := GinkgoT().TempDir()
	s, err := store.Open(filepath.Join(dir, "feedback.db"), silentLogger())
	Expect(err).NotTo(HaveOccurred())
	return s
}

func sampleRecord(hash string) *feedback.Feedback {
	return &feedback.Feedback{
		RawContent:      "the app keeps crashing",
		ContentHash:     hash,
		Sentiment:       feedback.SentimentNegative,
		Topics:          feedback.TopicList{feedback.TopicTechnical},
		IsUrgent:        false,
		ConfidenceScore: 0.5,
		Source:          feedback.SourceFallback,
		AIProvider:      feedback.ProviderHeuristic,
		Department:      feedback.DepartmentEngineering,
		Status:          feedback.StatusOpen,
		Priority:        feedback.PriorityMedium,
	}
}

var _ = Describe("Store", func() {
	var s *store.Store

	BeforeEach(func() {
		s = openTempStore()
		DeferCleanup(func() { Expect(s.Close()).To(Succeed()) })
	})

	Describe("Insert and FindByHash", func() {
		It("finds nothing for a hash that was never inserted", func() {
			got, err := s.FindByHash(context.Background(), "absent")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("round-trips a record through Insert and FindByHash", func() {
			rec := sampleRecord("hash-1")
			inserted, dup, err := s.Insert(context.Background(), rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(dup).To(BeFalse())
			Expect(inserted.ID).NotTo(BeEmpty())

			got, err := s.FindByHash(context.Background(), "hash-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.ContentHash).To(Equal("hash-1"))
			Expect(got.Topics).To(Equal(feedback.TopicList{feedback.TopicTechnical}))
		})

		It("returns the existing row with a duplicate signal on a unique-index conflict", func() {
			first := sampleRecord("hash-2")
			_, _, err := s.Insert(context.Background(), first)
			Expect(err).NotTo(HaveOccurred())

			second := sampleRecord("hash-2")
			existing, dup, err := s.Insert(context.Background(), second)
			Expect(err).NotTo(HaveOccurred())
			Expect(dup).To(BeTrue())
			Expect(existing.ID).To(Equal(first.ID))
		})
	})

	Describe("ListBySource", func() {
		It("returns only fallback records, oldest first", func() {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				r := sampleRecord(fmt.Sprintf("fallback-%d", i))
				_, _, err := s.Insert(ctx, r)
				Expect(err).NotTo(HaveOccurred())
			}
			ai := sampleRecord("ai-1")
			ai.Source = feedback.SourceAI
			_, _, err := s.Insert(ctx, ai)
			Expect(err).NotTo(HaveOccurred())

			rows, err := s.ListBySource(ctx, feedback.SourceFallback, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			for _, r := range rows {
				Expect(r.Source).To(Equal(feedback.SourceFallback))
			}
			Expect(rows[0].ContentHash).To(Equal("fallback-0"))
			Expect(rows[2].ContentHash).To(Equal("fallback-2"))
		})
	})

	Describe("Reconcile", func() {
		It("applies the upgrade when the row is still open", func() {
			ctx := context.Background()
			rec := sampleRecord("reconcile-1")
			inserted, _, err := s.Insert(ctx, rec)
			Expect(err).NotTo(HaveOccurred())

			applied, err := s.Reconcile(ctx, inserted.ID, func(current *feedback.Feedback) bool {
				current.Source = feedback.SourceAI
				current.AIProvider = feedback.ProviderPrimary
				current.IsUrgent = true
				current.NeedsReview = true
				return true
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(BeTrue())

			got, err := s.Get(ctx, inserted.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Source).To(Equal(feedback.SourceAI))
			Expect(got.IsUrgent).To(BeTrue())
			Expect(got.NeedsReview).To(BeTrue())
		})

		It("aborts the upgrade when the record was resolved in the interim", func() {
			ctx := context.Background()
			rec := sampleRecord("reconcile-2")
			inserted, _, err := s.Insert(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Resolve(ctx, inserted.ID, "handled manually")).To(Succeed())

			callbackRan := false
			applied, err := s.Reconcile(ctx, inserted.ID, func(current *feedback.Feedback) bool {
				callbackRan = true
				current.Source = feedback.SourceAI
				return true
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(BeFalse())
			Expect(callbackRan).To(BeFalse())

			got, err := s.Get(ctx, inserted.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(feedback.StatusResolved))
			Expect(got.Source).To(Equal(feedback.SourceFallback))
		})

		It("is a no-op for a missing record", func() {
			applied, err := s.Reconcile(context.Background(), "does-not-exist", func(current *feedback.Feedback) bool {
				Fail("apply should not be called for a missing record")
				return true
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(BeFalse())
		})
	})

	Describe("Resolve", func() {
		It("sets status, note, and clears needs_review", func() {
			ctx := context.Background()
			rec := sampleRecord("resolve-1")
			rec.NeedsReview = true
			inserted, _, err := s.Insert(ctx, rec)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Resolve(ctx, inserted.ID, "refund issued")).To(Succeed())

			got, err := s.Get(ctx, inserted.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(feedback.StatusResolved))
			Expect(got.ResolutionNote).To(Equal("refund issued"))
			Expect(got.NeedsReview).To(BeFalse())
		})

		It("returns ErrNotFound for an unknown id", func() {
			err := s.Resolve(context.Background(), "nope", "note")
			Expect(err).To(MatchError(apperrors.ErrNotFound))
		})
	})

	Describe("ReviewQueue", func() {
		It("returns only records flagged needs_review, oldest first", func() {
			ctx := context.Background()
			plain := sampleRecord("review-plain")
			_, _, err := s.Insert(ctx, plain)
			Expect(err).NotTo(HaveOccurred())

			flagged := sampleRecord("review-flagged")
			flagged.NeedsReview = true
			_, _, err = s.Insert(ctx, flagged)
			Expect(err).NotTo(HaveOccurred())

			rows, err := s.ReviewQueue(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].ContentHash).To(Equal("review-flagged"))
		})
	})

	Describe("Stats", func() {
		It("aggregates totals, status counts, and department breakdown", func() {
			ctx := context.Background()
			a := sampleRecord("stats-1")
			b := sampleRecord("stats-2")
			b.Department = feedback.DepartmentFinance
			_, _, err := s.Insert(ctx, a)
			Expect(err).NotTo(HaveOccurred())
			_, _, err = s.Insert(ctx, b)
			Expect(err).NotTo(HaveOccurred())
			inserted, _, err := s.Insert(ctx, sampleRecord("stats-3"))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Resolve(ctx, inserted.ID, "done")).To(Succeed())

			st, err := s.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Total).To(Equal(3))
			Expect(st.Resolved).To(Equal(1))
			Expect(st.Open).To(Equal(2))
			Expect(st.ByDepartment[string(feedback.DepartmentFinance)]).To(Equal(1))
		})
	})
})
