package authz_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/office-erp/internal/authz"
)

var _ = Describe("CapabilitySet", func() {
	It("serialises with the column names of the permission table", func() {
		raw, err := json.Marshal(authz.CapabilitiesOf(authz.ActionViewOwn, authz.ActionExport))
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(MatchJSON(`{
			"can_create": false,
			"can_view_all": false,
			"can_view_own": true,
			"can_view_assigned": false,
			"can_edit_all": false,
			"can_edit_own": false,
			"can_edit_assigned": false,
			"can_delete_all": false,
			"can_delete_own": false,
			"can_delete_assigned": false,
			"can_export": true
		}`))
	})

	It("expands generic verbs into every scope variant", func() {
		set := authz.CapabilitiesOf(authz.ActionDelete)
		Expect(set.Granted()).To(ConsistOf(authz.ActionDeleteAll, authz.ActionDeleteAssigned, authz.ActionDeleteOwn))
	})

	It("never grants an unknown action", func() {
		Expect(authz.FullCapabilities().Has(authz.ActionUnknown)).To(BeFalse())
		Expect(authz.FullCapabilities().Has(authz.Action(99))).To(BeFalse())
	})

	It("unions flag by flag", func() {
		a := authz.CapabilitiesOf(authz.ActionEditOwn)
		b := authz.CapabilitiesOf(authz.ActionViewAll)
		Expect(a.Union(b).Granted()).To(ConsistOf(authz.ActionEditOwn, authz.ActionViewAll))
		Expect(authz.UnionAll(a, b, authz.CapabilitySet{})).To(Equal(a.Union(b)))
	})

	It("derives the row scope of a verb", func() {
		set := authz.CapabilitiesOf(authz.ActionViewOwn, authz.ActionViewAssigned, authz.ActionEditAll)
		Expect(set.Visibility(authz.ActionView)).To(Equal(authz.Visibility{Own: true, Assigned: true}))
		Expect(set.Visibility(authz.ActionEditOwn)).To(Equal(authz.Visibility{All: true}))
		Expect(set.Visibility(authz.ActionDelete).None()).To(BeTrue())
		Expect(set.Visibility(authz.ActionExport).None()).To(BeTrue())
	})
})

var _ = Describe("Action", func() {
	DescribeTable("ParseAction",
		func(input string, expected authz.Action, ok bool) {
			a, found := authz.ParseAction(input)
			Expect(found).To(Equal(ok))
			Expect(a).To(Equal(expected))
		},
		Entry("column spelling", "can_view_all", authz.ActionViewAll, true),
		Entry("short spelling", "edit_own", authz.ActionEditOwn, true),
		Entry("generic verb", "view", authz.ActionView, true),
		Entry("mixed case", " Can_Export ", authz.ActionExport, true),
		Entry("unknown", "can_approve", authz.ActionUnknown, false),
		Entry("empty", "", authz.ActionUnknown, false),
	)

	It("round-trips through text encoding", func() {
		var a authz.Action
		Expect(a.UnmarshalText([]byte("can_delete_assigned"))).To(Succeed())
		Expect(a).To(Equal(authz.ActionDeleteAssigned))
		text, err := a.MarshalText()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(text)).To(Equal("can_delete_assigned"))

		Expect(a.UnmarshalText([]byte("can_fly"))).To(Succeed())
		Expect(a).To(Equal(authz.ActionUnknown))
	})
})

var _ = Describe("Resource", func() {
	It("accepts only known resources", func() {
		for _, r := range authz.AllResources() {
			parsed, ok := authz.ParseResource(r.String())
			Expect(ok).To(BeTrue())
			Expect(parsed).To(Equal(r))
		}
		_, ok := authz.ParseResource("expenses")
		Expect(ok).To(BeFalse())
	})
})
