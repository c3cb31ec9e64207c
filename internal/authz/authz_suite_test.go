package authz_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/datamodel/user"
)

func TestAuthz(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Authz Suite")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activeSubject(id int64) authz.Subject {
	return authz.Subject{UserID: id, Username: "user", Status: user.StatusActive}
}

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu         sync.Mutex
	roles      map[int64][]authz.Role
	grants     map[int64]map[authz.Resource]authz.CapabilitySet
	rolesErr   error
	grantsErr  error
	grantCalls int
	lockCalls  int
	rolesCalls int
	// afterGrants runs once a Grants read has produced its result, before it returns.
	afterGrants func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		roles:  make(map[int64][]authz.Role),
		grants: make(map[int64]map[authz.Resource]authz.CapabilitySet),
	}
}

func (f *fakeStore) assign(userID int64, roles ...authz.Role) {
	f.roles[userID] = append(f.roles[userID], roles...)
}

func (f *fakeStore) grant(roleID int64, resource authz.Resource, set authz.CapabilitySet) {
	if f.grants[roleID] == nil {
		f.grants[roleID] = make(map[authz.Resource]authz.CapabilitySet)
	}
	f.grants[roleID][resource] = set
}

func (f *fakeStore) ActiveRoles(_ context.Context, userID int64) ([]authz.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rolesCalls++
	if f.rolesErr != nil {
		return nil, f.rolesErr
	}
	return f.roles[userID], nil
}

func (f *fakeStore) Grants(_ context.Context, roleIDs []int64, resource authz.Resource) (map[int64]authz.CapabilitySet, error) {
	f.mu.Lock()
	f.grantCalls++
	out, err := f.lookup(roleIDs, resource)
	hook := f.afterGrants
	f.afterGrants = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, err
}

func (f *fakeStore) LockGrants(_ context.Context, roleIDs []int64, resource authz.Resource) (map[int64]authz.CapabilitySet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lockCalls++
	return f.lookup(roleIDs, resource)
}

func (f *fakeStore) lookup(roleIDs []int64, resource authz.Resource) (map[int64]authz.CapabilitySet, error) {
	if f.grantsErr != nil {
		return nil, f.grantsErr
	}
	out := make(map[int64]authz.CapabilitySet)
	for _, id := range roleIDs {
		if set, ok := f.grants[id][resource]; ok {
			out[id] = set
		}
	}
	return out, nil
}

var errStoreDown = errors.New("connection refused")
