package user_test

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
	"github.com/frahmantamala/office-erp/internal/user"
)

type stubService struct {
	err        error
	lastID     int64
	lastFilter user.ListFilter
	lastRoles  []int64
}

func (s *stubService) result(id int64) (*user.User, error) {
	s.lastID = id
	if s.err != nil {
		return nil, s.err
	}
	return &user.User{ID: id, Username: "stub", Roles: []user.RoleRef{}}, nil
}

func (s *stubService) CreateUser(_ context.Context, _ *authz.Request, dto user.CreateUserDTO) (*user.User, error) {
	s.lastRoles = dto.RoleIDs
	return s.result(1)
}

func (s *stubService) GetUser(_ context.Context, _ *authz.Request, id int64) (*user.User, error) {
	return s.result(id)
}

func (s *stubService) ListUsers(_ context.Context, _ *authz.Request, filter user.ListFilter) ([]*user.User, int64, error) {
	s.lastFilter = filter
	if s.err != nil {
		return nil, 0, s.err
	}
	return []*user.User{}, 0, nil
}

func (s *stubService) Me(_ context.Context, az *authz.Request) (*user.Profile, error) {
	u, err := s.result(az.Subject().UserID)
	if err != nil {
		return nil, err
	}
	return &user.Profile{User: u, Permissions: map[authz.Resource]authz.CapabilitySet{
		authz.ResourceUsers: authz.CapabilitiesOf(authz.ActionViewOwn),
	}}, nil
}

func (s *stubService) UpdateProfile(_ context.Context, _ *authz.Request, id int64, _ user.UpdateProfileDTO) (*user.User, error) {
	return s.result(id)
}

func (s *stubService) ChangePassword(_ context.Context, _ *authz.Request, id int64, _ user.ChangePasswordDTO) error {
	_, err := s.result(id)
	return err
}

func (s *stubService) SetStatus(_ context.Context, _ *authz.Request, id int64, _ user.SetStatusDTO) (*user.User, error) {
	return s.result(id)
}

func (s *stubService) AssignRoles(_ context.Context, _ *authz.Request, id int64, dto user.AssignRolesDTO) (*user.User, error) {
	s.lastRoles = dto.RoleIDs
	return s.result(id)
}

func (s *stubService) DeleteUser(_ context.Context, _ *authz.Request, id int64) error {
	_, err := s.result(id)
	return err
}

var _ = Describe("Handler", func() {
	var (
		stub   *stubService
		router chi.Router
	)

	serve := func(method, target, body string, authenticated bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		if authenticated {
			az := authz.NewRequest(authz.NewResolver(nil, nil, authz.Options{}, nil), authz.Subject{UserID: 7, Status: userDatamodel.StatusActive})
			req = req.WithContext(authz.WithRequest(req.Context(), az))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		stub = &stubService{}
		h := user.NewHandler(stub)
		router = chi.NewRouter()
		router.Get("/users/me", h.Me)
		router.Get("/users", h.ListUsers)
		router.Post("/users", h.CreateUser)
		router.Put("/users/{id}/roles", h.AssignRoles)
		router.Delete("/users/{id}", h.DeleteUser)
	})

	It("returns the caller's profile with capability maps", func() {
		rec := serve(http.MethodGet, "/users/me", "", true)
		Expect(rec.Code).To(Equal(http.StatusOK))

		var body map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body["id"]).To(BeEquivalentTo(7))
		perms := body["permissions"].(map[string]interface{})
		Expect(perms["users"]).To(HaveKeyWithValue("can_view_own", true))
	})

	It("requires authentication", func() {
		rec := serve(http.MethodGet, "/users/me", "", false)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("validates the status filter", func() {
		rec := serve(http.MethodGet, "/users?status=Gone", "", true)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = serve(http.MethodGet, "/users?status=Suspended&q=bo", "", true)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(stub.lastFilter.Status).To(Equal("Suspended"))
		Expect(stub.lastFilter.Search).To(Equal("bo"))
	})

	It("passes role ids through", func() {
		rec := serve(http.MethodPut, "/users/3/roles", `{"role_ids": [1, 2]}`, true)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(stub.lastID).To(Equal(int64(3)))
		Expect(stub.lastRoles).To(Equal([]int64{1, 2}))
	})

	It("maps conflicts to 409", func() {
		stub.err = user.ErrUserHasDependents
		rec := serve(http.MethodDelete, "/users/3", "", true)
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(rec.Body.String()).To(ContainSubstring("USER_HAS_DEPENDENTS"))
	})
})
