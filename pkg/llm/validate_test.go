package llm_test

import (
	"testing"

	"github.com/go-faster/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Mahirobot/aegis-feedback-engine/internal/apperrors"
	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
	"github.com/Mahirobot/aegis-feedback-engine/pkg/llm"
)

func TestLLM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "LLM Validation Suite")
}

var _ = Describe("ValidateRaw", func() {
	It("parses a strictly-conforming reply", func() {
		c, err := llm.ValidateRaw(`{"sentiment":"NEGATIVE","topics":["Billing","UX"],"is_urgent":true}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Sentiment).To(Equal(feedback.SentimentNegative))
		Expect(c.Topics).To(Equal([]string{"Billing", "UX"}))
		Expect(c.IsUrgent).To(BeTrue())
	})

	It("defaults an unrecognized sentiment to NEUTRAL", func() {
		c, err := llm.ValidateRaw(`{"sentiment":"MOSTLY_FINE","topics":["General"],"is_urgent":false}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Sentiment).To(Equal(feedback.SentimentNeutral))
	})

	It("defaults empty topics to [General]", func() {
		c, err := llm.ValidateRaw(`{"sentiment":"POSITIVE","topics":[],"is_urgent":false}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Topics).To(Equal([]string{feedback.TopicGeneral}))
	})

	It("defaults a missing topics field to [General]", func() {
		c, err := llm.ValidateRaw(`{"sentiment":"POSITIVE","is_urgent":false}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Topics).To(Equal([]string{feedback.TopicGeneral}))
	})

	It("coerces a stringly-typed is_urgent", func() {
		c, err := llm.ValidateRaw(`{"sentiment":"NEUTRAL","topics":["General"],"is_urgent":"true"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.IsUrgent).To(BeTrue())
	})

	It("treats a non-boolean, non-true-string is_urgent as false", func() {
		c, err := llm.ValidateRaw(`{"sentiment":"NEUTRAL","topics":["General"],"is_urgent":"maybe"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.IsUrgent).To(BeFalse())
	})

	It("recovers a classification nested under a wrapper object via the candidate paths", func() {
		c, err := llm.ValidateRaw(`{"result":{"sentiment":"POSITIVE","topics":["UX"],"is_urgent":false}}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Sentiment).To(Equal(feedback.SentimentPositive))
		Expect(c.Topics).To(Equal([]string{"UX"}))
	})

	It("recovers a classification nested two levels deep under data.classification", func() {
		c, err := llm.ValidateRaw(`{"data":{"classification":{"sentiment":"NEGATIVE","topics":["Security"],"is_urgent":true}}}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Sentiment).To(Equal(feedback.SentimentNegative))
		Expect(c.IsUrgent).To(BeTrue())
	})

	It("raises ErrUpstreamBadFormat for prose with no JSON at all", func() {
		_, err := llm.ValidateRaw("Sure! Here's my analysis: this feedback seems negative.")
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, apperrors.ErrUpstreamBadFormat)).To(BeTrue())
	})

	It("raises ErrUpstreamBadFormat when no candidate path yields a recognizable object", func() {
		_, err := llm.ValidateRaw(`{"unrelated_field":"nothing to see here"}`)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, apperrors.ErrUpstreamBadFormat)).To(BeTrue())
	})

	It("raises ErrUpstreamBadFormat for malformed JSON", func() {
		_, err := llm.ValidateRaw(`{"sentiment": "POSITIVE", "topics": [`)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, apperrors.ErrUpstreamBadFormat)).To(BeTrue())
	})
})
