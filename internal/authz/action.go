package authz

import "strings"

// Action is a single capability flag of a permission row, or one of the generic
// verbs (View, Edit, Delete) that are satisfied by any of their scope variants.
type Action int

const (
	ActionUnknown Action = iota
	ActionCreate
	ActionViewAll
	ActionViewAssigned
	ActionViewOwn
	ActionEditAll
	ActionEditAssigned
	ActionEditOwn
	ActionDeleteAll
	ActionDeleteAssigned
	ActionDeleteOwn
	ActionExport

	ActionView
	ActionEdit
	ActionDelete
)

var actionNames = map[Action]string{
	ActionCreate:         "can_create",
	ActionViewAll:        "can_view_all",
	ActionViewAssigned:   "can_view_assigned",
	ActionViewOwn:        "can_view_own",
	ActionEditAll:        "can_edit_all",
	ActionEditAssigned:   "can_edit_assigned",
	ActionEditOwn:        "can_edit_own",
	ActionDeleteAll:      "can_delete_all",
	ActionDeleteAssigned: "can_delete_assigned",
	ActionDeleteOwn:      "can_delete_own",
	ActionExport:         "can_export",
	ActionView:           "can_view",
	ActionEdit:           "can_edit",
	ActionDelete:         "can_delete",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for a, name := range actionNames {
		m[name] = a
	}
	return m
}()

// ConcreteActions are the actions stored as flags, in column order.
func ConcreteActions() []Action {
	return []Action{
		ActionCreate,
		ActionViewAll, ActionViewAssigned, ActionViewOwn,
		ActionEditAll, ActionEditAssigned, ActionEditOwn,
		ActionDeleteAll, ActionDeleteAssigned, ActionDeleteOwn,
		ActionExport,
	}
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Concrete reports whether a maps to a stored flag.
func (a Action) Concrete() bool {
	return a >= ActionCreate && a <= ActionExport
}

// Generic reports whether a is a scope-agnostic verb.
func (a Action) Generic() bool {
	return a == ActionView || a == ActionEdit || a == ActionDelete
}

// Variants expands a generic verb into its all/assigned/own flags; a concrete action
// expands to itself.
func (a Action) Variants() []Action {
	switch a {
	case ActionView:
		return []Action{ActionViewAll, ActionViewAssigned, ActionViewOwn}
	case ActionEdit:
		return []Action{ActionEditAll, ActionEditAssigned, ActionEditOwn}
	case ActionDelete:
		return []Action{ActionDeleteAll, ActionDeleteAssigned, ActionDeleteOwn}
	}
	if a.Concrete() {
		return []Action{a}
	}
	return nil
}

// Verb maps a scoped flag to its generic verb. Create, Export and the verbs themselves
// map to themselves.
func (a Action) Verb() Action {
	for _, verb := range []Action{ActionView, ActionEdit, ActionDelete} {
		for _, v := range verb.Variants() {
			if v == a {
				return verb
			}
		}
	}
	return a
}

// ParseAction accepts both the column spelling ("can_view_all") and the short one ("view_all").
func ParseAction(s string) (Action, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(name, "can_") {
		name = "can_" + name
	}
	a, ok := actionsByName[name]
	return a, ok
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	parsed, ok := ParseAction(string(text))
	if !ok {
		*a = ActionUnknown
		return nil
	}
	*a = parsed
	return nil
}
