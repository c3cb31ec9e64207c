package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/office-erp/internal/transport/middleware"
)

func decodeLines(buf *bytes.Buffer) []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		Expect(json.Unmarshal([]byte(line), &entry)).To(Succeed())
		out = append(out, entry)
	}
	return out
}

var _ = Describe("LoggingMiddleware", func() {
	var (
		buf *bytes.Buffer
		lg  *slog.Logger
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		lg = slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	})

	serve := func(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		middleware.LoggingMiddleware(lg)(h).ServeHTTP(rec, req)
		return rec
	}

	It("redacts credentials and salary amounts in request bodies", func() {
		var seen string
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := new(bytes.Buffer)
			_, _ = raw.ReadFrom(r.Body)
			seen = raw.String()
			w.WriteHeader(http.StatusCreated)
		})
		body := `{"username":"ann","password":"hunter22","basic_idr":9000000}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/salary-records", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer abc")

		serve(h, req)

		Expect(seen).To(Equal(body))
		entries := decodeLines(buf)
		Expect(entries).To(HaveLen(2))
		Expect(entries[0]["body"]).To(ContainSubstring(`"password":"[FILTERED]"`))
		Expect(entries[0]["body"]).To(ContainSubstring(`"basic_idr":"[FILTERED]"`))
		Expect(entries[0]["body"]).To(ContainSubstring(`"username":"ann"`))
		Expect(entries[0]["headers"]).To(HaveKeyWithValue("Authorization", "[FILTERED]"))
		Expect(entries[1]["status_code"]).To(BeEquivalentTo(http.StatusCreated))
		Expect(entries[1]).NotTo(HaveKey("body"))
	})

	It("logs denial details on a 403", func() {
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"code":"PERMISSION_DENIED","reason":"not granted","resource":"salary_records","action":"can_view_all","attempted_path":"/api/v1/salary-records"}`))
		})

		serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/salary-records", nil))

		entries := decodeLines(buf)
		Expect(entries).To(HaveLen(2))
		Expect(entries[1]["level"]).To(Equal("WARN"))
		Expect(entries[1]["denial_reason"]).To(Equal("not granted"))
		Expect(entries[1]["denied_resource"]).To(Equal("salary_records"))
		Expect(entries[1]["attempted_path"]).To(Equal("/api/v1/salary-records"))
	})

	It("keeps health probes out of info logs", func() {
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))

		Expect(strings.TrimSpace(buf.String())).To(BeEmpty())
	})

	It("logs server errors at error level", func() {
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})

		serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil))

		entries := decodeLines(buf)
		Expect(entries[1]["level"]).To(Equal("ERROR"))
		Expect(entries[1]["body"]).To(ContainSubstring("boom"))
	})
})

var _ = Describe("RequestID", func() {
	It("keeps an incoming trace id", func() {
		h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil)
		req.Header.Set(middleware.TraceHeader, "trace-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		Expect(rec.Header().Get(middleware.TraceHeader)).To(Equal("trace-1"))
	})

	It("generates one when missing", func() {
		h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil))
		Expect(rec.Header().Get(middleware.TraceHeader)).NotTo(BeEmpty())
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("turns a panic into a 500 error body", func() {
		lg := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
		h := middleware.RecoveryMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil))
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(ContainSubstring("INTERNAL_ERROR"))
	})
})
