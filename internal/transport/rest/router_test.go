package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/auth"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/expense"
	"github.com/frahmantamala/office-erp/internal/notebook"
	"github.com/frahmantamala/office-erp/internal/role"
	"github.com/frahmantamala/office-erp/internal/salary"
	"github.com/frahmantamala/office-erp/internal/transport/rest"
	"github.com/frahmantamala/office-erp/internal/user"
)

const specPath = "../../../api/openapi.yml"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fullRoutes(health *rest.HealthHandler) rest.Routes {
	deny := authz.NewDenyResponder(internal.AuthzConfig{UnauthorizedPath: "/unauthorized"}, discardLogger())
	return rest.Routes{
		Health:        health,
		Auth:          auth.NewHandler(nil, nil),
		Users:         user.NewHandler(nil),
		Roles:         role.NewHandler(nil),
		Expenses:      expense.NewHandler(nil),
		Salaries:      salary.NewHandler(nil),
		Notes:         notebook.NewHandler(nil),
		Authorization: authz.NewAuthorization(deny, discardLogger()),
		Deny:          deny,
		OpenAPIFile:   specPath,
		Logger:        discardLogger(),
	}
}

func normalize(pattern string) string {
	if pattern != "/" {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	return pattern
}

var _ = Describe("Router", func() {
	var router *chi.Mux

	BeforeEach(func() {
		router = chi.NewRouter()
		rest.RegisterAllRoutes(router, fullRoutes(rest.NewHealthHandler(nil)))
	})

	It("ships a valid OpenAPI document", func() {
		doc, err := openapi3.NewLoader().LoadFromFile(specPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Validate(context.Background())).To(Succeed())
	})

	It("registers every operation the OpenAPI document describes", func() {
		doc, err := openapi3.NewLoader().LoadFromFile(specPath)
		Expect(err).NotTo(HaveOccurred())

		registered := map[string]bool{}
		Expect(chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			registered[method+" "+normalize(route)] = true
			return nil
		})).To(Succeed())

		for path, item := range doc.Paths.Map() {
			for method := range item.Operations() {
				Expect(registered).To(HaveKey(method+" "+normalize(path)), "missing route %s %s", method, path)
			}
		}
	})

	It("serves the OpenAPI document", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yml", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("openapi:"))
	})

	It("rejects protected routes without a token", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("answers preflight requests from allowed origins", func() {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/notes", nil)
		req.Header.Set("Origin", "https://erp.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).NotTo(BeEmpty())
	})

	It("tags responses with a trace id", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("X-Trace-ID")).NotTo(BeEmpty())
	})
})

var _ = Describe("Health", func() {
	serve := func(h *rest.HealthHandler) (*httptest.ResponseRecorder, rest.HealthResponse) {
		router := chi.NewRouter()
		rest.RegisterAllRoutes(router, rest.Routes{Health: h, Logger: discardLogger()})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		var body rest.HealthResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return rec, body
	}

	It("is healthy when every check passes", func() {
		h := rest.NewHealthHandler(nil).WithCheck("redis", func(context.Context) error { return nil })
		rec, body := serve(h)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(body.Status).To(Equal(rest.HealthHealthy))
		Expect(body.Components).To(HaveKey("redis"))
	})

	It("reports 503 when any check fails", func() {
		h := rest.NewHealthHandler(nil).
			WithCheck("redis", func(context.Context) error { return nil }).
			WithCheck("postgres", func(context.Context) error { return errors.New("connection refused") })
		rec, body := serve(h)
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(body.Status).To(Equal(rest.HealthUnhealthy))
		Expect(body.Components["postgres"].Message).To(Equal("connection refused"))
		Expect(body.Components["redis"].Status).To(Equal(rest.HealthHealthy))
		Expect(body.CheckedAt).To(BeTemporally("~", time.Now(), time.Minute))
	})
})
