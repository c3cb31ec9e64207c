package authz

import (
	"context"
	"sync"
)

type requestKey struct{}

// Request carries authorization state for one HTTP request. Roles and capability sets
// are loaded at most once per request; Invalidate drops them after a grant mutation.
type Request struct {
	subject  Subject
	resolver *Resolver

	mu       sync.Mutex
	loaded   bool
	roles    []Role
	super    bool
	resolved map[Resource]CapabilitySet
}

func NewRequest(resolver *Resolver, subject Subject) *Request {
	return &Request{
		subject:  subject,
		resolver: resolver,
		resolved: make(map[Resource]CapabilitySet),
	}
}

func WithRequest(ctx context.Context, req *Request) context.Context {
	return context.WithValue(ctx, requestKey{}, req)
}

func RequestFromContext(ctx context.Context) (*Request, bool) {
	if ctx == nil {
		return nil, false
	}
	req, ok := ctx.Value(requestKey{}).(*Request)
	return req, ok && req != nil
}

func (q *Request) Subject() Subject {
	return q.subject
}

func (q *Request) Require(ctx context.Context, resource Resource, action Action) error {
	roles, err := q.loadRoles(ctx)
	if err != nil {
		return err
	}
	return q.resolver.decide(ctx, q.subject, roles, resource, action, func(res Resource) (CapabilitySet, error) {
		return q.capabilities(ctx, res)
	})
}

func (q *Request) PermissionSet(ctx context.Context, resource Resource) (CapabilitySet, error) {
	if !resource.Valid() || !q.subject.Active() {
		return CapabilitySet{}, nil
	}
	if _, err := q.loadRoles(ctx); err != nil {
		return CapabilitySet{}, err
	}
	if q.isSuperAdmin() {
		return FullCapabilities(), nil
	}
	return q.capabilities(ctx, resource)
}

func (q *Request) CanAny(ctx context.Context, checks ...Check) (bool, error) {
	return q.resolver.anyOf(checks, func(c Check) error {
		return q.Require(ctx, c.Resource, c.Action)
	})
}

// Recheck bypasses every cache; see Resolver.Recheck.
func (q *Request) Recheck(ctx context.Context, resource Resource, action Action) error {
	return q.resolver.Recheck(ctx, q.subject, resource, action)
}

// RecheckVisibility is Recheck for a generic verb that also returns the row scope read
// under lock, so a scope narrowed since the request started is honored by the write.
func (q *Request) RecheckVisibility(ctx context.Context, resource Resource, verb Action) (Visibility, error) {
	if err := q.resolver.Recheck(ctx, q.subject, resource, verb); err != nil {
		return Visibility{}, err
	}
	set, err := q.resolver.LockedPermissionSet(ctx, q.subject, resource)
	if err != nil {
		return Visibility{}, err
	}
	return set.Visibility(verb), nil
}

func (q *Request) IsSuperAdmin(ctx context.Context) (bool, error) {
	if _, err := q.loadRoles(ctx); err != nil {
		return false, err
	}
	return q.isSuperAdmin(), nil
}

// RequireSuperAdmin denies action on resource unless the subject is a super admin.
func (q *Request) RequireSuperAdmin(ctx context.Context, resource Resource, action Action) error {
	super, err := q.IsSuperAdmin(ctx)
	if err != nil {
		return err
	}
	if !super {
		q.resolver.logger.WarnContext(ctx, "super admin required", "user_id", q.subject.UserID, "resource", resource, "action", action)
		return Deny(q.subject.UserID, resource, action, ReasonNotGranted)
	}
	return nil
}

// GrantsSuperAdmin reports whether any of roles would make its holder a super admin.
func (q *Request) GrantsSuperAdmin(roles ...Role) bool {
	return q.resolver.GrantsSuperAdmin(roles...)
}

// Visibility is the row scope of verb on resource for this subject.
func (q *Request) Visibility(ctx context.Context, resource Resource, verb Action) (Visibility, error) {
	set, err := q.PermissionSet(ctx, resource)
	if err != nil {
		return Visibility{}, err
	}
	return set.Visibility(verb), nil
}

func (q *Request) Invalidate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loaded = false
	q.roles = nil
	q.super = false
	q.resolved = make(map[Resource]CapabilitySet)
}

func (q *Request) loadRoles(ctx context.Context) ([]Role, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.loaded {
		return q.roles, nil
	}
	roles, err := q.resolver.rolesFor(ctx, q.subject)
	if err != nil {
		return nil, err
	}
	q.roles = roles
	q.super = q.resolver.isSuperAdmin(roles)
	q.loaded = true
	return roles, nil
}

func (q *Request) isSuperAdmin() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.super
}

func (q *Request) capabilities(ctx context.Context, resource Resource) (CapabilitySet, error) {
	q.mu.Lock()
	if set, ok := q.resolved[resource]; ok {
		q.mu.Unlock()
		return set, nil
	}
	roles := q.roles
	q.mu.Unlock()

	set, err := q.resolver.capabilities(ctx, roles, resource)
	if err != nil {
		return CapabilitySet{}, err
	}

	q.mu.Lock()
	q.resolved[resource] = set
	q.mu.Unlock()
	return set, nil
}
