package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Mahirobot/aegis-feedback-engine/internal/apperrors"
	"github.com/Mahirobot/aegis-feedback-engine/internal/httpapi"
	"github.com/Mahirobot/aegis-feedback-engine/internal/ingestion"
	"github.com/Mahirobot/aegis-feedback-engine/internal/notification"
	"github.com/Mahirobot/aegis-feedback-engine/internal/reconciliation"
	"github.com/Mahirobot/aegis-feedback-engine/internal/store"
	"github.com/Mahirobot/aegis-feedback-engine/pkg/llm"
	"github.com/Mahirobot/aegis-feedback-engine/pkg/orchestrator"
)

func TestHTTPAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "HTTP API Suite")
}

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(GinkgoWriter)
	return l
}

// noopAlerter discards alerts so urgent-path tests don't need a webhook.
type noopAlerter struct{}

func (noopAlerter) Notify(ctx context.Context, a notification.Alert) {}

// failingLLMClient always errors, forcing the orchestrator onto the
// heuristic fallback path deterministically.
type failingLLMClient struct{}

func (failingLLMClient) Classify(ctx context.Context, text string) (llm.Classification, error) {
	return llm.Classification{}, apperrors.ErrUpstreamUnavailable
}

func newTestServer() (*httptest.Server, *store.Store) {
	dir := GinkgoT().TempDir()
	st, err := store.Open(filepath.Join(dir, "feedback.db"), silentLogger())
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { Expect(st.Close()).To(Succeed()) })

	orch := orchestrator.New(failingLLMClient{}, 20*time.Millisecond, 10, silentLogger())
	pipeline := ingestion.New(st, orch, noopAlerter{}, silentLogger())
	worker := reconciliation.NewWorker(st, failingLLMClient{}, silentLogger())

	reg := prometheus.NewRegistry()
	apiServer := httpapi.New(0, pipeline, st, worker, reg, silentLogger())
	srv := httptest.NewServer(apiServer.Router())
	return srv, st
}

var _ = Describe("HTTP API", func() {
	var srv *httptest.Server
	var baseURL string

	BeforeEach(func() {
		srv, _ = newTestServer()
		baseURL = srv.URL
		DeferCleanup(srv.Close)
	})

	Describe("POST /feedback", func() {
		It("ingests a new submission and returns it", func() {
			body, _ := json.Marshal(map[string]string{"raw_content": "the app keeps crashing on login"})
			resp, err := http.Post(baseURL+"/feedback", "application/json", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out map[string]interface{}
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out["raw_content"]).To(Equal("the app keeps crashing on login"))
		})

		It("flags a duplicate submission via the X-Status header", func() {
			body, _ := json.Marshal(map[string]string{"raw_content": "the card was charged twice"})
			resp1, err := http.Post(baseURL+"/feedback", "application/json", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			resp1.Body.Close()

			resp2, err := http.Post(baseURL+"/feedback", "application/json", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			defer resp2.Body.Close()
			Expect(resp2.Header.Get("X-Status")).To(Equal("Duplicate"))
		})

		It("rejects too-short content with 422", func() {
			body, _ := json.Marshal(map[string]string{"raw_content": "hi"})
			resp, err := http.Post(baseURL+"/feedback", "application/json", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})
	})

	Describe("GET /feedback", func() {
		It("lists submitted records", func() {
			body, _ := json.Marshal(map[string]string{"raw_content": "the dashboard colors are confusing"})
			resp, err := http.Post(baseURL+"/feedback", "application/json", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			listResp, err := http.Get(baseURL + "/feedback?limit=10")
			Expect(err).NotTo(HaveOccurred())
			defer listResp.Body.Close()
			Expect(listResp.StatusCode).To(Equal(http.StatusOK))

			var rows []map[string]interface{}
			Expect(json.NewDecoder(listResp.Body).Decode(&rows)).To(Succeed())
			Expect(rows).NotTo(BeEmpty())
		})
	})

	Describe("PATCH /feedback/{id}/resolve", func() {
		It("resolves an existing record", func() {
			body, _ := json.Marshal(map[string]string{"raw_content": "the export button is broken"})
			postResp, err := http.Post(baseURL+"/feedback", "application/json", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			var created map[string]interface{}
			Expect(json.NewDecoder(postResp.Body).Decode(&created)).To(Succeed())
			postResp.Body.Close()

			resolveBody, _ := json.Marshal(map[string]string{"note": "fixed in 1.2.3"})
			req, _ := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/feedback/%s/resolve", baseURL, created["id"]), bytes.NewReader(resolveBody))
			req.Header.Set("Content-Type", "application/json")
			resolveResp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resolveResp.Body.Close()
			Expect(resolveResp.StatusCode).To(Equal(http.StatusOK))
		})

		It("returns 404 for an unknown id", func() {
			resolveBody, _ := json.Marshal(map[string]string{"note": "n/a"})
			req, _ := http.NewRequest(http.MethodPatch, baseURL+"/feedback/does-not-exist/resolve", bytes.NewReader(resolveBody))
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /feedback/batch_csv", func() {
		It("accepts a CSV upload and processes it in the background", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, err := mw.CreateFormFile("file", "feedback.csv")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte("the checkout page times out\nlove the new dashboard\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(mw.Close()).To(Succeed())

			req, _ := http.NewRequest(http.MethodPost, baseURL+"/feedback/batch_csv", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		})
	})

	Describe("GET /admin/stats", func() {
		It("reports aggregate counts", func() {
			resp, err := http.Get(baseURL + "/admin/stats")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var st map[string]interface{}
			Expect(json.NewDecoder(resp.Body).Decode(&st)).To(Succeed())
			Expect(st).To(HaveKey("total"))
		})
	})

	Describe("POST /admin/reconcile", func() {
		It("queues fallback records for immediate reconciliation", func() {
			body, _ := json.Marshal(map[string]string{"raw_content": "the invoice totals look wrong"})
			postResp, err := http.Post(baseURL+"/feedback", "application/json", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			postResp.Body.Close()

			resp, err := http.Post(baseURL+"/admin/reconcile", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		})
	})

	Describe("GET /admin/reviews", func() {
		It("returns an empty list when nothing needs review", func() {
			resp, err := http.Get(baseURL + "/admin/reviews")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var rows []interface{}
			Expect(json.NewDecoder(resp.Body).Decode(&rows)).To(Succeed())
			Expect(rows).NotTo(BeNil())
			Expect(rows).To(BeEmpty())
		})
	})

	Describe("GET /admin/reviews/csv", func() {
		It("serves a CSV attachment", func() {
			resp, err := http.Get(baseURL + "/admin/reviews/csv")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/csv"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("review_queue.csv"))
		})
	})

	Describe("GET /healthz", func() {
		It("reports OK", func() {
			resp, err := http.Get(baseURL + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
