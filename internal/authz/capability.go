package authz

// CapabilitySet is the boolean map of every action on one resource, unioned over
// all of a user's roles.
type CapabilitySet struct {
	CanCreate         bool `json:"can_create"`
	CanViewAll        bool `json:"can_view_all"`
	CanViewOwn        bool `json:"can_view_own"`
	CanViewAssigned   bool `json:"can_view_assigned"`
	CanEditAll        bool `json:"can_edit_all"`
	CanEditOwn        bool `json:"can_edit_own"`
	CanEditAssigned   bool `json:"can_edit_assigned"`
	CanDeleteAll      bool `json:"can_delete_all"`
	CanDeleteOwn      bool `json:"can_delete_own"`
	CanDeleteAssigned bool `json:"can_delete_assigned"`
	CanExport         bool `json:"can_export"`
}

// FullCapabilities is what a super-admin holds on every resource.
func FullCapabilities() CapabilitySet {
	var c CapabilitySet
	for _, a := range ConcreteActions() {
		c.Set(a, true)
	}
	return c
}

// CapabilitiesOf builds a set with exactly the given actions granted. Generic verbs grant
// all of their variants.
func CapabilitiesOf(actions ...Action) CapabilitySet {
	var c CapabilitySet
	for _, a := range actions {
		for _, v := range a.Variants() {
			c.Set(v, true)
		}
	}
	return c
}

// Has reports whether a is granted. Generic verbs pass when any scope variant does;
// unknown actions never pass.
func (c CapabilitySet) Has(a Action) bool {
	switch a {
	case ActionCreate:
		return c.CanCreate
	case ActionViewAll:
		return c.CanViewAll
	case ActionViewAssigned:
		return c.CanViewAssigned
	case ActionViewOwn:
		return c.CanViewOwn
	case ActionEditAll:
		return c.CanEditAll
	case ActionEditAssigned:
		return c.CanEditAssigned
	case ActionEditOwn:
		return c.CanEditOwn
	case ActionDeleteAll:
		return c.CanDeleteAll
	case ActionDeleteAssigned:
		return c.CanDeleteAssigned
	case ActionDeleteOwn:
		return c.CanDeleteOwn
	case ActionExport:
		return c.CanExport
	case ActionView, ActionEdit, ActionDelete:
		for _, v := range a.Variants() {
			if c.Has(v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Set changes a concrete flag. Generic and unknown actions are ignored.
func (c *CapabilitySet) Set(a Action, granted bool) {
	switch a {
	case ActionCreate:
		c.CanCreate = granted
	case ActionViewAll:
		c.CanViewAll = granted
	case ActionViewAssigned:
		c.CanViewAssigned = granted
	case ActionViewOwn:
		c.CanViewOwn = granted
	case ActionEditAll:
		c.CanEditAll = granted
	case ActionEditAssigned:
		c.CanEditAssigned = granted
	case ActionEditOwn:
		c.CanEditOwn = granted
	case ActionDeleteAll:
		c.CanDeleteAll = granted
	case ActionDeleteAssigned:
		c.CanDeleteAssigned = granted
	case ActionDeleteOwn:
		c.CanDeleteOwn = granted
	case ActionExport:
		c.CanExport = granted
	}
}

// Union ORs every flag; grants are affirmative only.
func (c CapabilitySet) Union(o CapabilitySet) CapabilitySet {
	return CapabilitySet{
		CanCreate:         c.CanCreate || o.CanCreate,
		CanViewAll:        c.CanViewAll || o.CanViewAll,
		CanViewOwn:        c.CanViewOwn || o.CanViewOwn,
		CanViewAssigned:   c.CanViewAssigned || o.CanViewAssigned,
		CanEditAll:        c.CanEditAll || o.CanEditAll,
		CanEditOwn:        c.CanEditOwn || o.CanEditOwn,
		CanEditAssigned:   c.CanEditAssigned || o.CanEditAssigned,
		CanDeleteAll:      c.CanDeleteAll || o.CanDeleteAll,
		CanDeleteOwn:      c.CanDeleteOwn || o.CanDeleteOwn,
		CanDeleteAssigned: c.CanDeleteAssigned || o.CanDeleteAssigned,
		CanExport:         c.CanExport || o.CanExport,
	}
}

func UnionAll(sets ...CapabilitySet) CapabilitySet {
	var out CapabilitySet
	for _, s := range sets {
		out = out.Union(s)
	}
	return out
}

// Granted lists the concrete actions that are set.
func (c CapabilitySet) Granted() []Action {
	var out []Action
	for _, a := range ConcreteActions() {
		if c.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

func (c CapabilitySet) IsEmpty() bool {
	return c == CapabilitySet{}
}

// Visibility derives the row scope a generic verb grants. Passing a concrete action
// uses its verb.
func (c CapabilitySet) Visibility(verb Action) Visibility {
	switch verb {
	case ActionView, ActionViewAll, ActionViewAssigned, ActionViewOwn:
		return Visibility{All: c.CanViewAll, Assigned: c.CanViewAssigned, Own: c.CanViewOwn}
	case ActionEdit, ActionEditAll, ActionEditAssigned, ActionEditOwn:
		return Visibility{All: c.CanEditAll, Assigned: c.CanEditAssigned, Own: c.CanEditOwn}
	case ActionDelete, ActionDeleteAll, ActionDeleteAssigned, ActionDeleteOwn:
		return Visibility{All: c.CanDeleteAll, Assigned: c.CanDeleteAssigned, Own: c.CanDeleteOwn}
	default:
		return Visibility{}
	}
}
