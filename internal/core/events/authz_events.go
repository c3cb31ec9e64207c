package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeGrantsChanged    = "authz.grants_changed"
	EventTypeUserRolesChanged = "authz.user_roles_changed"
)

// NewGrantsChangedEvent is published after a role's permission matrix, status or existence changes.
func NewGrantsChangedEvent(roleID int64, reason string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeGrantsChanged,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"role_id": roleID,
			"reason":  reason,
		},
	}
}

// NewUserRolesChangedEvent is published after a user's role assignments or status change.
func NewUserRolesChangedEvent(userID int64, reason string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeUserRolesChanged,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"user_id": userID,
			"reason":  reason,
		},
	}
}

// Invalidator drops cached grants.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// SubscribeGrantInvalidation clears cache whenever grants or role assignments change.
func SubscribeGrantInvalidation(bus *EventBus, cache Invalidator) {
	invalidate := func(ctx context.Context, _ Event) error {
		return cache.Invalidate(ctx)
	}
	bus.Subscribe(EventTypeGrantsChanged, invalidate)
	bus.Subscribe(EventTypeUserRolesChanged, invalidate)
}
