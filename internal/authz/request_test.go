package authz_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/office-erp/internal/authz"
)

var _ = Describe("Request", func() {
	var (
		ctx   context.Context
		store *fakeStore
		req   *authz.Request
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newFakeStore()
		store.assign(7, authz.Role{ID: 1, Name: "employee"})
		store.grant(1, authz.ResourceNotebookNotes, authz.CapabilitiesOf(authz.ActionCreate, authz.ActionViewOwn))
		resolver := authz.NewResolver(store, nil, authz.Options{SuperAdminRole: "super_admin"}, discardLogger())
		req = authz.NewRequest(resolver, activeSubject(7))
	})

	It("round-trips through the context", func() {
		_, ok := authz.RequestFromContext(ctx)
		Expect(ok).To(BeFalse())

		got, ok := authz.RequestFromContext(authz.WithRequest(ctx, req))
		Expect(ok).To(BeTrue())
		Expect(got.Subject().UserID).To(Equal(int64(7)))
	})

	It("loads roles and grants once per request", func() {
		for i := 0; i < 5; i++ {
			Expect(req.Require(ctx, authz.ResourceNotebookNotes, authz.ActionCreate)).To(Succeed())
		}
		_, err := req.PermissionSet(ctx, authz.ResourceNotebookNotes)
		Expect(err).NotTo(HaveOccurred())

		Expect(store.rolesCalls).To(Equal(1))
		Expect(store.grantCalls).To(Equal(1))
	})

	It("reloads after Invalidate", func() {
		Expect(req.Require(ctx, authz.ResourceNotebookNotes, authz.ActionCreate)).To(Succeed())

		store.grant(1, authz.ResourceNotebookNotes, authz.CapabilitySet{})
		Expect(req.Require(ctx, authz.ResourceNotebookNotes, authz.ActionCreate)).To(Succeed())

		req.Invalidate()
		_, denied := authz.IsDenied(req.Require(ctx, authz.ResourceNotebookNotes, authz.ActionCreate))
		Expect(denied).To(BeTrue())
		Expect(store.rolesCalls).To(Equal(2))
	})

	It("answers CanAny and Visibility from the same cache", func() {
		ok, err := req.CanAny(ctx,
			authz.Check{Resource: authz.ResourceNotebookNotes, Action: authz.ActionViewAll},
			authz.Check{Resource: authz.ResourceNotebookNotes, Action: authz.ActionViewOwn},
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		vis, err := req.Visibility(ctx, authz.ResourceNotebookNotes, authz.ActionView)
		Expect(err).NotTo(HaveOccurred())
		Expect(vis).To(Equal(authz.Visibility{Own: true}))
		Expect(store.grantCalls).To(Equal(1))
	})

	It("reports super admins", func() {
		store.assign(7, authz.Role{ID: 2, Name: "super_admin"})
		isSuper, err := req.IsSuperAdmin(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(isSuper).To(BeTrue())
	})

	It("rechecks against the store", func() {
		Expect(req.Recheck(ctx, authz.ResourceNotebookNotes, authz.ActionCreate)).To(Succeed())
		Expect(store.lockCalls).To(Equal(1))
	})

	It("rechecks the row scope under lock", func() {
		store.grant(1, authz.ResourceNotebookNotes, authz.CapabilitiesOf(authz.ActionEditAll))
		Expect(req.Require(ctx, authz.ResourceNotebookNotes, authz.ActionEdit)).To(Succeed())

		store.grant(1, authz.ResourceNotebookNotes, authz.CapabilitiesOf(authz.ActionEditOwn))
		vis, err := req.RecheckVisibility(ctx, authz.ResourceNotebookNotes, authz.ActionEdit)
		Expect(err).NotTo(HaveOccurred())
		Expect(vis).To(Equal(authz.Visibility{Own: true}))
		Expect(store.lockCalls).To(Equal(2))

		store.grant(1, authz.ResourceNotebookNotes, authz.CapabilitySet{CanCreate: true})
		_, err = req.RecheckVisibility(ctx, authz.ResourceNotebookNotes, authz.ActionEdit)
		denial, denied := authz.IsDenied(err)
		Expect(denied).To(BeTrue())
		Expect(denial.Reason).To(Equal(authz.ReasonNotGranted))
	})
})
