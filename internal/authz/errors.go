package authz

import (
	"errors"
	"fmt"

	"github.com/frahmantamala/office-erp/internal"
)

// Reason explains a denial in terms a user can read.
type Reason string

const (
	ReasonNotGranted      Reason = "your roles do not grant this permission"
	ReasonInactiveSubject Reason = "your account is not active"
	ReasonInvalidResource Reason = "unknown resource"
	ReasonInvalidAction   Reason = "unknown action"
	ReasonOutOfScope      Reason = "this record is outside your permitted scope"
	ReasonUnauthenticated Reason = "authentication required"
)

// AuthorizationError is the typed denial outcome. It is a normal result, not a failure.
type AuthorizationError struct {
	UserID   int64
	Resource Resource
	Action   Action
	Reason   Reason
	// Alternatives lists every check an any-of guard tried.
	Alternatives []Check
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("permission denied: %s on %s: %s", e.Action, e.Resource, e.Reason)
}

func (e *AuthorizationError) AppError() *internal.AppError {
	details := map[string]any{
		"resource": e.Resource.String(),
		"action":   e.Action.String(),
	}
	if len(e.Alternatives) > 0 {
		details["alternatives"] = e.AlternativeNames()
	}
	return internal.NewForbiddenError(string(e.Reason), internal.ErrCodePermissionDenied).
		WithCause(e).
		WithDetails(details)
}

// AlternativeNames renders Alternatives as "resource:action" pairs.
func (e *AuthorizationError) AlternativeNames() []string {
	if len(e.Alternatives) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.Alternatives))
	for _, c := range e.Alternatives {
		out = append(out, c.Resource.String()+":"+c.Action.String())
	}
	return out
}

func Deny(userID int64, resource Resource, action Action, reason Reason) *AuthorizationError {
	return &AuthorizationError{UserID: userID, Resource: resource, Action: action, Reason: reason}
}

// DenyAny reports a failed any-of check. Resource and Action are the ones every check
// shares, the shared generic verb when only the scope differs, or empty otherwise.
func DenyAny(userID int64, checks []Check) *AuthorizationError {
	denial := Deny(userID, "", ActionUnknown, ReasonNotGranted)
	if len(checks) == 0 {
		return denial
	}
	denial.Alternatives = append([]Check(nil), checks...)
	denial.Resource, denial.Action = checks[0].Resource, checks[0].Action
	for _, c := range checks[1:] {
		if c.Resource != denial.Resource {
			denial.Resource = ""
		}
		if c.Action != denial.Action {
			denial.Action = ActionUnknown
		}
	}
	if denial.Action == ActionUnknown && len(checks) > 1 {
		verb := checks[0].Action.Verb()
		shared := verb.Generic()
		for _, c := range checks[1:] {
			shared = shared && c.Action.Verb() == verb
		}
		if shared {
			denial.Action = verb
		}
	}
	return denial
}

// IsDenied reports whether err carries an AuthorizationError.
func IsDenied(err error) (*AuthorizationError, bool) {
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// ErrSchemaMissing is returned by a Store when the role tables do not exist yet. The
// resolver treats it as "no roles, no permissions".
var ErrSchemaMissing = errors.New("authz: role tables are missing")
