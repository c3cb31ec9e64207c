package authz_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/authz"
)

type stubRelations struct {
	rel authz.RowRelation
	err error
}

func (s stubRelations) Relation(context.Context, authz.Resource, int64, authz.Subject) (authz.RowRelation, error) {
	return s.rel, s.err
}

var _ = Describe("Authorization middleware", func() {
	var (
		store    *fakeStore
		resolver *authz.Resolver
		deny     *authz.DenyResponder
		mw       *authz.Authorization
		ok       http.Handler
	)

	BeforeEach(func() {
		store = newFakeStore()
		store.assign(5, authz.Role{ID: 1, Name: "employee"})
		store.grant(1, authz.ResourceOfficeExpenses, authz.CapabilitiesOf(authz.ActionViewOwn, authz.ActionCreate))
		resolver = authz.NewResolver(store, nil, authz.Options{}, discardLogger())
		deny = authz.NewDenyResponder(internal.AuthzConfig{
			UnauthorizedPath: "/unauthorized",
			AttemptedPathTTL: 5 * time.Minute,
		}, discardLogger())
		mw = authz.NewAuthorization(deny, discardLogger())
		ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	serve := func(h http.Handler, req *http.Request, withSubject bool) *httptest.ResponseRecorder {
		if withSubject {
			req = req.WithContext(authz.WithRequest(req.Context(), authz.NewRequest(resolver, activeSubject(5))))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	It("passes granted requests through", func() {
		rec := serve(mw.Require(authz.ResourceOfficeExpenses, authz.ActionCreate)(ok),
			httptest.NewRequest(http.MethodPost, "/api/v1/expenses", nil), true)
		Expect(rec.Code).To(Equal(http.StatusNoContent))
	})

	It("rejects requests without a subject", func() {
		rec := serve(mw.Require(authz.ResourceOfficeExpenses, authz.ActionCreate)(ok),
			httptest.NewRequest(http.MethodPost, "/api/v1/expenses", nil), false)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("answers API clients with a JSON denial", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/salary-records?limit=5", nil)
		req.Header.Set("Accept", "application/json")
		rec := serve(mw.Require(authz.ResourceSalaryRecords, authz.ActionView)(ok), req, true)

		Expect(rec.Code).To(Equal(http.StatusForbidden))
		var body authz.DenialResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Resource).To(Equal("salary_records"))
		Expect(body.Action).To(Equal("can_view"))
		Expect(body.AttemptedPath).To(Equal("/api/v1/salary-records?limit=5"))
		Expect(body.Reason).NotTo(BeEmpty())
	})

	It("redirects browsers and remembers the attempted path", func() {
		req := httptest.NewRequest(http.MethodGet, "/salary", nil)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		rec := serve(mw.Require(authz.ResourceSalaryRecords, authz.ActionView)(ok), req, true)

		Expect(rec.Code).To(Equal(http.StatusSeeOther))
		Expect(rec.Header().Get("Location")).To(HavePrefix("/unauthorized?reason="))

		cookies := rec.Result().Cookies()
		Expect(cookies).To(HaveLen(1))
		Expect(cookies[0].Name).To(Equal(internal.DefaultAttemptedPathName))
		Expect(cookies[0].MaxAge).To(Equal(300))

		page := httptest.NewRequest(http.MethodGet, rec.Header().Get("Location"), nil)
		page.AddCookie(cookies[0])
		pageRec := httptest.NewRecorder()
		deny.Unauthorized(pageRec, page)

		var body authz.DenialResponse
		Expect(json.Unmarshal(pageRec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.AttemptedPath).To(Equal("/salary"))
		Expect(body.Reason).To(Equal(string(authz.ReasonNotGranted)))
		cleared := pageRec.Result().Cookies()
		Expect(cleared).To(HaveLen(1))
		Expect(cleared[0].MaxAge).To(BeNumerically("<", 0))
	})

	It("passes RequireAny when one alternative is granted", func() {
		h := mw.RequireAny(
			authz.Check{Resource: authz.ResourceOfficeExpenses, Action: authz.ActionViewAll},
			authz.Check{Resource: authz.ResourceOfficeExpenses, Action: authz.ActionViewOwn},
		)(ok)
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/expenses", nil), true)
		Expect(rec.Code).To(Equal(http.StatusNoContent))
	})

	It("lists every alternative when RequireAny denies", func() {
		h := mw.RequireAny(
			authz.Check{Resource: authz.ResourceSalaryRecords, Action: authz.ActionViewAll},
			authz.Check{Resource: authz.ResourceSalaryRecords, Action: authz.ActionViewOwn},
		)(ok)
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/salary-records", nil), true)
		Expect(rec.Code).To(Equal(http.StatusForbidden))

		var body authz.DenialResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Resource).To(Equal("salary_records"))
		Expect(body.Action).To(Equal("can_view"))
		Expect(body.Alternatives).To(Equal([]string{
			"salary_records:can_view_all",
			"salary_records:can_view_own",
		}))
	})

	It("blanks the resource when any-of checks span resources", func() {
		denial := authz.DenyAny(5, []authz.Check{
			{Resource: authz.ResourceSalaryRecords, Action: authz.ActionExport},
			{Resource: authz.ResourceOfficeExpenses, Action: authz.ActionExport},
		})
		Expect(denial.Resource).To(BeEmpty())
		Expect(denial.Action).To(Equal(authz.ActionExport))
		Expect(denial.AlternativeNames()).To(HaveLen(2))
	})

	It("returns 500 when the grant store fails", func() {
		store.grantsErr = errStoreDown
		rec := serve(mw.Require(authz.ResourceOfficeExpenses, authz.ActionCreate)(ok),
			httptest.NewRequest(http.MethodPost, "/api/v1/expenses", nil), true)
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
	})

	Describe("RequireRowAccess", func() {
		route := func(rel authz.RowRelation) http.Handler {
			r := chi.NewRouter()
			r.With(mw.RequireRowAccess(authz.ResourceOfficeExpenses, authz.ActionView, stubRelations{rel: rel}, "id")).
				Get("/expenses/{id}", ok.ServeHTTP)
			return r
		}

		It("allows owners with the own scope", func() {
			rec := serve(route(authz.RowRelation{Exists: true, IsOwner: true}), httptest.NewRequest(http.MethodGet, "/expenses/3", nil), true)
			Expect(rec.Code).To(Equal(http.StatusNoContent))
		})

		It("denies rows outside the scope", func() {
			rec := serve(route(authz.RowRelation{Exists: true, IsAssigned: true}), httptest.NewRequest(http.MethodGet, "/expenses/3", nil), true)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("returns 404 for missing rows", func() {
			rec := serve(route(authz.RowRelation{}), httptest.NewRequest(http.MethodGet, "/expenses/3", nil), true)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("rejects malformed ids", func() {
			rec := serve(route(authz.RowRelation{}), httptest.NewRequest(http.MethodGet, "/expenses/abc", nil), true)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
