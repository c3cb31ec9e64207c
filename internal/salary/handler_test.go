package salary_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/office-erp/internal/authz"
	userDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/user"
	"github.com/frahmantamala/office-erp/internal/salary"
)

// stubService records calls and returns canned results.
type stubService struct {
	err        error
	lastFilter salary.ListFilter
	lastID     int64
}

func (s *stubService) CreateRecord(_ context.Context, _ *authz.Request, dto salary.CreateRecordDTO) (*salary.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &salary.Record{ID: 1, EmployeeID: dto.EmployeeID, Period: dto.Period}, nil
}

func (s *stubService) GetRecord(_ context.Context, _ *authz.Request, id int64) (*salary.Record, error) {
	s.lastID = id
	if s.err != nil {
		return nil, s.err
	}
	return &salary.Record{ID: id}, nil
}

func (s *stubService) ListRecords(_ context.Context, _ *authz.Request, filter salary.ListFilter) ([]*salary.Record, int64, error) {
	s.lastFilter = filter
	return []*salary.Record{{ID: 1}}, 1, s.err
}

func (s *stubService) UpdateRecord(_ context.Context, _ *authz.Request, id int64, _ salary.UpdateRecordDTO) (*salary.Record, error) {
	return &salary.Record{ID: id}, s.err
}

func (s *stubService) DeleteRecord(_ context.Context, _ *authz.Request, id int64) error {
	s.lastID = id
	return s.err
}

var _ = Describe("Handler", func() {
	var (
		stub   *stubService
		router chi.Router
	)

	serve := func(method, target, body string, authenticated bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		if authenticated {
			az := authz.NewRequest(authz.NewResolver(nil, nil, authz.Options{}, nil), authz.Subject{UserID: 1, Status: userDatamodel.StatusActive})
			req = req.WithContext(authz.WithRequest(req.Context(), az))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		stub = &stubService{}
		h := salary.NewHandler(stub)
		router = chi.NewRouter()
		router.Post("/salary-records", h.CreateRecord)
		router.Get("/salary-records", h.ListRecords)
		router.Get("/salary-records/{id}", h.GetRecord)
		router.Delete("/salary-records/{id}", h.DeleteRecord)
	})

	It("returns 401 without an authorization context", func() {
		rec := serve(http.MethodGet, "/salary-records/3", "", false)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("creates records", func() {
		rec := serve(http.MethodPost, "/salary-records", `{"employee_id": 11, "period": "2024-05", "basic_idr": 10}`, true)
		Expect(rec.Code).To(Equal(http.StatusCreated))

		var body salary.Record
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Period).To(Equal("2024-05"))
	})

	It("rejects unknown fields", func() {
		rec := serve(http.MethodPost, "/salary-records", `{"employee_id": 11, "bonus": 1}`, true)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("passes filters and pagination through", func() {
		rec := serve(http.MethodGet, "/salary-records?period=2024-05&employee_id=11&limit=500&offset=4", "", true)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(stub.lastFilter.Period).To(Equal("2024-05"))
		Expect(*stub.lastFilter.EmployeeID).To(Equal(int64(11)))
		Expect(stub.lastFilter.Limit).To(Equal(100))
		Expect(stub.lastFilter.Offset).To(Equal(4))
	})

	It("rejects malformed periods in filters", func() {
		rec := serve(http.MethodGet, "/salary-records?period=May", "", true)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("maps denials to 403 with the attempted path", func() {
		stub.err = authz.Deny(1, authz.ResourceSalaryRecords, authz.ActionView, authz.ReasonOutOfScope)
		rec := serve(http.MethodGet, "/salary-records/9", "", true)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(rec.Body.String()).To(ContainSubstring("PERMISSION_DENIED"))
		Expect(rec.Body.String()).To(ContainSubstring("/salary-records/9"))
	})

	It("maps missing records to 404", func() {
		stub.err = salary.ErrRecordNotFound
		rec := serve(http.MethodDelete, "/salary-records/9", "", true)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(stub.lastID).To(Equal(int64(9)))
	})

	It("rejects non-numeric ids", func() {
		rec := serve(http.MethodGet, "/salary-records/abc", "", true)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})
})
