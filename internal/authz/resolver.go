package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/office-erp/internal/core/datamodel/user"
)

// Subject is the authenticated user a decision is made for.
type Subject struct {
	UserID     int64
	Username   string
	Status     string
	EmployeeID *int64
}

func (s Subject) Active() bool {
	return s.Status == user.StatusActive
}

// Role is an active role held by a subject.
type Role struct {
	ID         int64
	Name       string
	SuperAdmin bool
}

// Check is one (resource, action) pair for UserCanAny.
type Check struct {
	Resource Resource
	Action   Action
}

// Store reads role assignments and grant rows. Implementations return ErrSchemaMissing
// when the role tables have not been created.
type Store interface {
	ActiveRoles(ctx context.Context, userID int64) ([]Role, error)
	Grants(ctx context.Context, roleIDs []int64, resource Resource) (map[int64]CapabilitySet, error)
	// LockGrants is Grants read with a shared row lock through the transaction in ctx.
	LockGrants(ctx context.Context, roleIDs []int64, resource Resource) (map[int64]CapabilitySet, error)
}

// GrantCache keeps per-role grants across requests. Every Invalidate starts a new epoch;
// Put drops sets read under an older epoch so a fill racing an invalidation cannot
// resurrect revoked grants.
type GrantCache interface {
	// Epoch reports the current epoch. ok is false when the cache cannot tell, in which
	// case the caller must not Put.
	Epoch(ctx context.Context) (epoch int64, ok bool)
	Get(ctx context.Context, roleID int64, resource Resource) (CapabilitySet, bool)
	Put(ctx context.Context, epoch int64, roleID int64, resource Resource, set CapabilitySet)
	Invalidate(ctx context.Context) error
}

type NopCache struct{}

func (NopCache) Epoch(context.Context) (int64, bool) { return 0, false }
func (NopCache) Get(context.Context, int64, Resource) (CapabilitySet, bool) {
	return CapabilitySet{}, false
}
func (NopCache) Put(context.Context, int64, int64, Resource, CapabilitySet) {}
func (NopCache) Invalidate(context.Context) error { return nil }

type Options struct {
	// SuperAdminRole names the role that bypasses every check, in addition to roles
	// flagged is_super_admin.
	SuperAdminRole string
}

type Resolver struct {
	store  Store
	cache  GrantCache
	opts   Options
	logger *slog.Logger
}

func NewResolver(store Store, cache GrantCache, opts Options, logger *slog.Logger) *Resolver {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cache: cache, opts: opts, logger: logger}
}

func (r *Resolver) Cache() GrantCache {
	return r.cache
}

// RequirePermission returns nil when granted, an *AuthorizationError when denied, or an
// internal error when the grant store fails.
func (r *Resolver) RequirePermission(ctx context.Context, s Subject, resource Resource, action Action) error {
	roles, err := r.rolesFor(ctx, s)
	if err != nil {
		return err
	}
	return r.decide(ctx, s, roles, resource, action, func(res Resource) (CapabilitySet, error) {
		return r.capabilities(ctx, roles, res)
	})
}

// GetPermissionSet returns the union of grants for resource. It never errors on missing
// tables, unknown resources or inactive subjects; those all yield an empty set.
func (r *Resolver) GetPermissionSet(ctx context.Context, s Subject, resource Resource) (CapabilitySet, error) {
	if !resource.Valid() || !s.Active() {
		return CapabilitySet{}, nil
	}
	roles, err := r.rolesFor(ctx, s)
	if err != nil {
		return CapabilitySet{}, err
	}
	if r.isSuperAdmin(roles) {
		return FullCapabilities(), nil
	}
	return r.capabilities(ctx, roles, resource)
}

// UserCanAny is true when at least one check passes. An empty list is false.
func (r *Resolver) UserCanAny(ctx context.Context, s Subject, checks ...Check) (bool, error) {
	roles, err := r.rolesFor(ctx, s)
	if err != nil {
		return false, err
	}
	return r.anyOf(checks, func(c Check) error {
		return r.decide(ctx, s, roles, c.Resource, c.Action, func(res Resource) (CapabilitySet, error) {
			return r.capabilities(ctx, roles, res)
		})
	})
}

// Recheck repeats the decision against the store with no caching, reading grant rows
// under a shared lock. Call it inside the transaction that performs the guarded write.
func (r *Resolver) Recheck(ctx context.Context, s Subject, resource Resource, action Action) error {
	roles, err := r.rolesFor(ctx, s)
	if err != nil {
		return err
	}
	return r.decide(ctx, s, roles, resource, action, func(res Resource) (CapabilitySet, error) {
		return r.lockedSet(ctx, s, roles, res)
	})
}

// LockedPermissionSet is GetPermissionSet read through LockGrants, bypassing every cache.
func (r *Resolver) LockedPermissionSet(ctx context.Context, s Subject, resource Resource) (CapabilitySet, error) {
	if !resource.Valid() || !s.Active() {
		return CapabilitySet{}, nil
	}
	roles, err := r.rolesFor(ctx, s)
	if err != nil {
		return CapabilitySet{}, err
	}
	if r.isSuperAdmin(roles) {
		return FullCapabilities(), nil
	}
	return r.lockedSet(ctx, s, roles, resource)
}

func (r *Resolver) lockedSet(ctx context.Context, s Subject, roles []Role, resource Resource) (CapabilitySet, error) {
	if len(roles) == 0 {
		return CapabilitySet{}, nil
	}
	sets, err := r.store.LockGrants(ctx, roleIDs(roles), resource)
	if errors.Is(err, ErrSchemaMissing) {
		return CapabilitySet{}, nil
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to lock grants", "error", err, "user_id", s.UserID, "resource", resource)
		return CapabilitySet{}, fmt.Errorf("lock grants: %w", err)
	}
	return unionOf(sets), nil
}

func (r *Resolver) IsSuperAdmin(ctx context.Context, s Subject) (bool, error) {
	if !s.Active() {
		return false, nil
	}
	roles, err := r.rolesFor(ctx, s)
	if err != nil {
		return false, err
	}
	return r.isSuperAdmin(roles), nil
}

// GrantsSuperAdmin reports whether holding any of roles bypasses every check.
func (r *Resolver) GrantsSuperAdmin(roles ...Role) bool {
	return r.isSuperAdmin(roles)
}

func (r *Resolver) decide(ctx context.Context, s Subject, roles []Role, resource Resource, action Action, load func(Resource) (CapabilitySet, error)) error {
	deny := func(reason Reason) error {
		r.logger.WarnContext(ctx, "permission denied",
			"user_id", s.UserID,
			"resource", resource,
			"action", action,
			"reason", reason)
		return Deny(s.UserID, resource, action, reason)
	}

	switch {
	case !resource.Valid():
		return deny(ReasonInvalidResource)
	case !action.Concrete() && !action.Generic():
		return deny(ReasonInvalidAction)
	case !s.Active():
		return deny(ReasonInactiveSubject)
	}

	if r.isSuperAdmin(roles) {
		r.logger.DebugContext(ctx, "permission granted by super admin role", "user_id", s.UserID, "resource", resource, "action", action)
		return nil
	}

	set, err := load(resource)
	if err != nil {
		return err
	}
	if !set.Has(action) {
		return deny(ReasonNotGranted)
	}

	r.logger.DebugContext(ctx, "permission granted", "user_id", s.UserID, "resource", resource, "action", action)
	return nil
}

func (r *Resolver) anyOf(checks []Check, check func(Check) error) (bool, error) {
	for _, c := range checks {
		err := check(c)
		if err == nil {
			return true, nil
		}
		if _, denied := IsDenied(err); !denied {
			return false, err
		}
	}
	return false, nil
}

// rolesFor loads the active roles of an active subject. Inactive subjects hold none.
func (r *Resolver) rolesFor(ctx context.Context, s Subject) ([]Role, error) {
	if !s.Active() {
		return nil, nil
	}
	roles, err := r.store.ActiveRoles(ctx, s.UserID)
	if errors.Is(err, ErrSchemaMissing) {
		r.logger.WarnContext(ctx, "role tables missing, treating user as roleless", "user_id", s.UserID)
		return nil, nil
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to load roles", "error", err, "user_id", s.UserID)
		return nil, fmt.Errorf("load roles: %w", err)
	}
	return roles, nil
}

func (r *Resolver) isSuperAdmin(roles []Role) bool {
	for _, role := range roles {
		if role.SuperAdmin {
			return true
		}
		if r.opts.SuperAdminRole != "" && strings.EqualFold(role.Name, r.opts.SuperAdminRole) {
			return true
		}
	}
	return false
}

// capabilities unions per-role grants, consulting the cross-request cache first.
// The epoch is taken before any read so that sets loaded across an invalidation are
// never written back.
func (r *Resolver) capabilities(ctx context.Context, roles []Role, resource Resource) (CapabilitySet, error) {
	if len(roles) == 0 {
		return CapabilitySet{}, nil
	}

	epoch, cacheable := r.cache.Epoch(ctx)
	var (
		out     CapabilitySet
		missing []int64
	)
	for _, role := range roles {
		if set, ok := r.cache.Get(ctx, role.ID, resource); ok {
			out = out.Union(set)
			continue
		}
		missing = append(missing, role.ID)
	}
	if len(missing) == 0 {
		return out, nil
	}

	sets, err := r.store.Grants(ctx, missing, resource)
	if errors.Is(err, ErrSchemaMissing) {
		return CapabilitySet{}, nil
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to load grants", "error", err, "resource", resource)
		return CapabilitySet{}, fmt.Errorf("load grants: %w", err)
	}

	for _, id := range missing {
		set := sets[id]
		if cacheable {
			r.cache.Put(ctx, epoch, id, resource, set)
		}
		out = out.Union(set)
	}
	return out, nil
}

func roleIDs(roles []Role) []int64 {
	ids := make([]int64, 0, len(roles))
	for _, role := range roles {
		ids = append(ids, role.ID)
	}
	return ids
}

func unionOf(sets map[int64]CapabilitySet) CapabilitySet {
	var out CapabilitySet
	for _, s := range sets {
		out = out.Union(s)
	}
	return out
}
