package authz_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/datamodel/user"
)

var _ = Describe("Resolver", func() {
	var (
		ctx      context.Context
		store    *fakeStore
		resolver *authz.Resolver
		alice    authz.Subject
	)

	employeeRole := authz.Role{ID: 1, Name: "employee"}
	auditorRole := authz.Role{ID: 2, Name: "auditor"}
	emptyRole := authz.Role{ID: 3, Name: "visitor"}

	BeforeEach(func() {
		ctx = context.Background()
		store = newFakeStore()
		resolver = authz.NewResolver(store, nil, authz.Options{SuperAdminRole: "super_admin"}, discardLogger())
		alice = activeSubject(10)
	})

	Describe("GetPermissionSet", func() {
		It("reports can_view_all when any held role grants it", func() {
			store.assign(alice.UserID, employeeRole, auditorRole)
			store.grant(employeeRole.ID, authz.ResourceOfficeExpenses, authz.CapabilitiesOf(authz.ActionViewOwn))
			store.grant(auditorRole.ID, authz.ResourceOfficeExpenses, authz.CapabilitiesOf(authz.ActionViewAll))

			set, err := resolver.GetPermissionSet(ctx, alice, authz.ResourceOfficeExpenses)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.CanViewAll).To(BeTrue())
			Expect(set.CanViewOwn).To(BeTrue())
			Expect(set.CanExport).To(BeFalse())
		})

		It("unions grants rather than intersecting them", func() {
			store.assign(alice.UserID, employeeRole, emptyRole)
			store.grant(employeeRole.ID, authz.ResourceNotebookNotes, authz.CapabilitiesOf(authz.ActionEditOwn))

			set, err := resolver.GetPermissionSet(ctx, alice, authz.ResourceNotebookNotes)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.CanEditOwn).To(BeTrue())
		})

		It("returns an all-false set for a user without roles", func() {
			set, err := resolver.GetPermissionSet(ctx, alice, authz.ResourceSalaryRecords)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.IsEmpty()).To(BeTrue())
		})

		It("returns every capability for a super admin", func() {
			store.assign(alice.UserID, authz.Role{ID: 9, Name: "super_admin"})

			set, err := resolver.GetPermissionSet(ctx, alice, authz.ResourceRoles)
			Expect(err).NotTo(HaveOccurred())
			Expect(set).To(Equal(authz.FullCapabilities()))
		})

		It("returns an all-false set for an unknown resource", func() {
			store.assign(alice.UserID, authz.Role{ID: 9, Name: "super_admin"})

			set, err := resolver.GetPermissionSet(ctx, alice, authz.Resource("payroll_secrets"))
			Expect(err).NotTo(HaveOccurred())
			Expect(set.IsEmpty()).To(BeTrue())
		})

		It("grants nothing to an inactive user", func() {
			store.assign(alice.UserID, employeeRole)
			store.grant(employeeRole.ID, authz.ResourceOfficeExpenses, authz.FullCapabilities())
			alice.Status = user.StatusSuspended

			set, err := resolver.GetPermissionSet(ctx, alice, authz.ResourceOfficeExpenses)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.IsEmpty()).To(BeTrue())
			Expect(store.rolesCalls).To(Equal(0))
		})

		It("treats missing role tables as no permissions", func() {
			store.rolesErr = authz.ErrSchemaMissing

			set, err := resolver.GetPermissionSet(ctx, alice, authz.ResourceOfficeExpenses)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.IsEmpty()).To(BeTrue())
		})

		It("returns an error instead of partial data when the store fails", func() {
			store.assign(alice.UserID, employeeRole)
			store.grantsErr = errStoreDown

			_, err := resolver.GetPermissionSet(ctx, alice, authz.ResourceOfficeExpenses)
			Expect(err).To(MatchError(ContainSubstring("connection refused")))
		})
	})

	Describe("RequirePermission", func() {
		It("always succeeds for a super admin on every resource and action", func() {
			store.assign(alice.UserID, authz.Role{ID: 9, Name: "root", SuperAdmin: true})

			for _, res := range authz.AllResources() {
				for _, action := range append(authz.ConcreteActions(), authz.ActionView, authz.ActionEdit, authz.ActionDelete) {
					Expect(resolver.RequirePermission(ctx, alice, res, action)).To(Succeed())
				}
			}
		})

		It("matches the configured super admin role name case-insensitively", func() {
			store.assign(alice.UserID, authz.Role{ID: 9, Name: "Super_Admin"})

			Expect(resolver.RequirePermission(ctx, alice, authz.ResourceRoles, authz.ActionEditAll)).To(Succeed())
		})

		It("denies when no grant row matches", func() {
			store.assign(alice.UserID, employeeRole)
			store.grant(employeeRole.ID, authz.ResourceOfficeExpenses, authz.CapabilitiesOf(authz.ActionViewOwn))

			err := resolver.RequirePermission(ctx, alice, authz.ResourceSalaryRecords, authz.ActionViewOwn)
			denial, ok := authz.IsDenied(err)
			Expect(ok).To(BeTrue())
			Expect(denial.Reason).To(Equal(authz.ReasonNotGranted))
			Expect(denial.Resource).To(Equal(authz.ResourceSalaryRecords))
			Expect(denial.Action).To(Equal(authz.ActionViewOwn))
		})

		It("denies every check for a user without roles", func() {
			for _, res := range authz.AllResources() {
				for _, action := range authz.ConcreteActions() {
					_, denied := authz.IsDenied(resolver.RequirePermission(ctx, alice, res, action))
					Expect(denied).To(BeTrue())
				}
			}
		})

		It("denies every check when the role tables are missing", func() {
			store.rolesErr = authz.ErrSchemaMissing

			err := resolver.RequirePermission(ctx, alice, authz.ResourceOfficeExpenses, authz.ActionCreate)
			_, denied := authz.IsDenied(err)
			Expect(denied).To(BeTrue())
		})

		It("accepts a generic verb when any scope variant is granted", func() {
			store.assign(alice.UserID, employeeRole)
			store.grant(employeeRole.ID, authz.ResourceOfficeExpenses, authz.CapabilitiesOf(authz.ActionViewAssigned))

			Expect(resolver.RequirePermission(ctx, alice, authz.ResourceOfficeExpenses, authz.ActionView)).To(Succeed())
			_, denied := authz.IsDenied(resolver.RequirePermission(ctx, alice, authz.ResourceOfficeExpenses, authz.ActionEdit))
			Expect(denied).To(BeTrue())
		})

		It("fails closed on unknown resources and actions", func() {
			store.assign(alice.UserID, employeeRole)
			store.grant(employeeRole.ID, authz.ResourceOfficeExpenses, authz.FullCapabilities())

			denial, _ := authz.IsDenied(resolver.RequirePermission(ctx, alice, authz.Resource("office_expense"), authz.ActionCreate))
			Expect(denial.Reason).To(Equal(authz.ReasonInvalidResource))

			denial, _ = authz.IsDenied(resolver.RequirePermission(ctx, alice, authz.ResourceOfficeExpenses, authz.ActionUnknown))
			Expect(denial.Reason).To(Equal(authz.ReasonInvalidAction))
		})

		It("denies a super admin on an unknown resource or action", func() {
			store.assign(alice.UserID, authz.Role{ID: 9, Name: "root", SuperAdmin: true})

			denial, ok := authz.IsDenied(resolver.RequirePermission(ctx, alice, authz.Resource("payroll_secrets"), authz.ActionViewAll))
			Expect(ok).To(BeTrue())
			Expect(denial.Reason).To(Equal(authz.ReasonInvalidResource))

			denial, ok = authz.IsDenied(resolver.RequirePermission(ctx, alice, authz.ResourceRoles, authz.ActionUnknown))
			Expect(ok).To(BeTrue())
			Expect(denial.Reason).To(Equal(authz.ReasonInvalidAction))
		})

		It("denies inactive users even with grants", func() {
			store.assign(alice.UserID, employeeRole)
			store.grant(employeeRole.ID, authz.ResourceOfficeExpenses, authz.FullCapabilities())
			alice.Status = user.StatusInactive

			denial, ok := authz.IsDenied(resolver.RequirePermission(ctx, alice, authz.ResourceOfficeExpenses, authz.ActionCreate))
			Expect(ok).To(BeTrue())
			Expect(denial.Reason).To(Equal(authz.ReasonInactiveSubject))
		})

		It("converts a denial into a forbidden app error", func() {
			err := resolver.RequirePermission(ctx, alice, authz.ResourceRoles, authz.ActionCreate)
			denial, _ := authz.IsDenied(err)
			appErr := denial.AppError()
			Expect(appErr.StatusCode).To(Equal(403))
			Expect(string(appErr.Code)).To(Equal("PERMISSION_DENIED"))
		})
	})

	Describe("UserCanAny", func() {
		BeforeEach(func() {
			store.assign(alice.UserID, employeeRole)
			store.grant(employeeRole.ID, authz.ResourceOfficeExpenses, authz.CapabilitiesOf(authz.ActionViewOwn))
		})

		It("is true when at least one check passes", func() {
			ok, err := resolver.UserCanAny(ctx, alice,
				authz.Check{Resource: authz.ResourceOfficeExpenses, Action: authz.ActionViewAll},
				authz.Check{Resource: authz.ResourceOfficeExpenses, Action: authz.ActionViewOwn},
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("is false when every check fails", func() {
			ok, err := resolver.UserCanAny(ctx, alice,
				authz.Check{Resource: authz.ResourceOfficeExpenses, Action: authz.ActionViewAll},
				authz.Check{Resource: authz.ResourceSalaryRecords, Action: authz.ActionViewOwn},
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("agrees with the individual checks for every pair", func() {
			checks := []authz.Check{
				{Resource: authz.ResourceOfficeExpenses, Action: authz.ActionViewAll},
				{Resource: authz.ResourceOfficeExpenses, Action: authz.ActionViewOwn},
				{Resource: authz.ResourceSalaryRecords, Action: authz.ActionCreate},
				{Resource: authz.Resource("bogus"), Action: authz.ActionViewOwn},
			}
			passes := func(c authz.Check) bool {
				return resolver.RequirePermission(ctx, alice, c.Resource, c.Action) == nil
			}
			for _, a := range checks {
				for _, b := range checks {
					ok, err := resolver.UserCanAny(ctx, alice, a, b)
					Expect(err).NotTo(HaveOccurred())
					Expect(ok).To(Equal(passes(a) || passes(b)))
				}
			}
		})

		It("is false for an empty list", func() {
			ok, err := resolver.UserCanAny(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("surfaces store failures", func() {
			store.grantsErr = errStoreDown

			_, err := resolver.UserCanAny(ctx, alice, authz.Check{Resource: authz.ResourceOfficeExpenses, Action: authz.ActionViewOwn})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Recheck", func() {
		It("reads grants through the locking path and ignores the cache", func() {
			cache, err := authz.NewLRUCache(16, 0)
			Expect(err).NotTo(HaveOccurred())
			resolver = authz.NewResolver(store, cache, authz.Options{}, discardLogger())
			store.assign(alice.UserID, employeeRole)
			store.grant(employeeRole.ID, authz.ResourceOfficeExpenses, authz.CapabilitiesOf(authz.ActionEditOwn))

			Expect(resolver.RequirePermission(ctx, alice, authz.ResourceOfficeExpenses, authz.ActionEditOwn)).To(Succeed())

			store.grant(employeeRole.ID, authz.ResourceOfficeExpenses, authz.CapabilitySet{})
			Expect(resolver.RequirePermission(ctx, alice, authz.ResourceOfficeExpenses, authz.ActionEditOwn)).To(Succeed())

			_, denied := authz.IsDenied(resolver.Recheck(ctx, alice, authz.ResourceOfficeExpenses, authz.ActionEditOwn))
			Expect(denied).To(BeTrue())
			Expect(store.lockCalls).To(Equal(1))
		})
	})

	Describe("grant cache", func() {
		It("serves repeated lookups from the cache until invalidated", func() {
			cache, err := authz.NewLRUCache(16, 0)
			Expect(err).NotTo(HaveOccurred())
			resolver = authz.NewResolver(store, cache, authz.Options{}, discardLogger())
			store.assign(alice.UserID, employeeRole)
			store.grant(employeeRole.ID, authz.ResourceOfficeExpenses, authz.CapabilitiesOf(authz.ActionCreate))

			for i := 0; i < 3; i++ {
				Expect(resolver.RequirePermission(ctx, alice, authz.ResourceOfficeExpenses, authz.ActionCreate)).To(Succeed())
			}
			Expect(store.grantCalls).To(Equal(1))

			Expect(resolver.Cache().Invalidate(ctx)).To(Succeed())
			store.grant(employeeRole.ID, authz.ResourceOfficeExpenses, authz.CapabilitySet{})

			_, denied := authz.IsDenied(resolver.RequirePermission(ctx, alice, authz.ResourceOfficeExpenses, authz.ActionCreate))
			Expect(denied).To(BeTrue())
			Expect(store.grantCalls).To(Equal(2))
		})

		It("does not keep grants read before a concurrent invalidation", func() {
			cache, err := authz.NewLRUCache(16, 0)
			Expect(err).NotTo(HaveOccurred())
			resolver = authz.NewResolver(store, cache, authz.Options{}, discardLogger())
			store.assign(alice.UserID, employeeRole)
			store.grant(employeeRole.ID, authz.ResourceOfficeExpenses, authz.CapabilitiesOf(authz.ActionViewAll))

			// The matrix update commits and invalidates while the first read is in flight.
			store.afterGrants = func() {
				store.grant(employeeRole.ID, authz.ResourceOfficeExpenses, authz.CapabilitySet{})
				Expect(cache.Invalidate(ctx)).To(Succeed())
			}

			set, err := resolver.GetPermissionSet(ctx, alice, authz.ResourceOfficeExpenses)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.CanViewAll).To(BeTrue())

			set, err = resolver.GetPermissionSet(ctx, alice, authz.ResourceOfficeExpenses)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.CanViewAll).To(BeFalse())
			Expect(store.grantCalls).To(Equal(2))
		})

		It("caches again once the epoch is stable", func() {
			cache, err := authz.NewLRUCache(16, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(cache.Invalidate(ctx)).To(Succeed())

			epoch, ok := cache.Epoch(ctx)
			Expect(ok).To(BeTrue())
			cache.Put(ctx, epoch-1, 1, authz.ResourceRoles, authz.FullCapabilities())
			_, hit := cache.Get(ctx, 1, authz.ResourceRoles)
			Expect(hit).To(BeFalse())

			cache.Put(ctx, epoch, 1, authz.ResourceRoles, authz.FullCapabilities())
			set, hit := cache.Get(ctx, 1, authz.ResourceRoles)
			Expect(hit).To(BeTrue())
			Expect(set).To(Equal(authz.FullCapabilities()))
		})
	})
})
