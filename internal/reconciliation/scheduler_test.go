package reconciliation_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
	"github.com/Mahirobot/aegis-feedback-engine/internal/reconciliation"
	"github.com/Mahirobot/aegis-feedback-engine/pkg/llm"
)

var _ = Describe("Scheduler.Run", func() {
	It("upgrades pending fallback records within a few idle passes", func() {
		st := openTempStore()
		for i := 0; i < 3; i++ {
			_, _, err := st.Insert(context.Background(), fallbackRecord(
				[]string{"sched-0", "sched-1", "sched-2"}[i]))
			Expect(err).NotTo(HaveOccurred())
		}

		llmClient := stubLLMClient{result: llm.Classification{
			Sentiment: feedback.SentimentNeutral,
			Topics:    []string{feedback.TopicTechnical},
			Provider:  feedback.ProviderPrimary,
		}}
		w := reconciliation.NewWorker(st, llmClient, silentLogger())
		sched := reconciliation.NewScheduler(st, w, 10*time.Millisecond, time.Millisecond, 10, silentLogger())

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		sched.Run(ctx)

		remaining, err := st.ListBySource(context.Background(), feedback.SourceFallback, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(remaining).To(BeEmpty())
	})

	It("returns promptly on context cancellation without waiting out the idle interval", func() {
		st := openTempStore()
		llmClient := stubLLMClient{result: llm.Classification{Sentiment: feedback.SentimentNeutral, Topics: []string{feedback.TopicGeneral}}}
		w := reconciliation.NewWorker(st, llmClient, silentLogger())
		sched := reconciliation.NewScheduler(st, w, 10*time.Second, time.Second, 10, silentLogger())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			sched.Run(ctx)
			close(done)
		}()

		cancel()
		Eventually(done, "50ms").Should(BeClosed())
	})
})
