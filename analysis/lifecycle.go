package analysis

import (
	"context"
	"fmt"

	"github.com/ftahirops/queryguard/model"
)

// Lifecycle wraps an EventRepo with event state-machine validation.
// State transitions are enforced here, at the service boundary,
// rather than through object-oriented encapsulation on the entity
// itself.
type Lifecycle struct {
	Events EventRepo
}

// Acknowledge transitions a new event to acknowledged. Invalid
// transitions fail loudly.
func (l Lifecycle) Acknowledge(ctx context.Context, event model.RegressionEvent, by, notes string) error {
	if !event.CanTransitionTo(model.StatusAcknowledged) {
		return fmt.Errorf("invalid transition %s -> acknowledged for event %s", event.Status, event.ID)
	}
	return l.Events.Acknowledge(ctx, event.ID, by, notes)
}

// Resolve transitions an acknowledged event to resolved.
func (l Lifecycle) Resolve(ctx context.Context, event model.RegressionEvent, by, notes string) error {
	if !event.CanTransitionTo(model.StatusResolved) {
		return fmt.Errorf("invalid transition %s -> resolved for event %s", event.Status, event.ID)
	}
	return l.Events.Resolve(ctx, event.ID, by, notes)
}

// Dismiss transitions a new event to dismissed (terminal).
func (l Lifecycle) Dismiss(ctx context.Context, event model.RegressionEvent, by, notes string) error {
	if !event.CanTransitionTo(model.StatusDismissed) {
		return fmt.Errorf("invalid transition %s -> dismissed for event %s", event.Status, event.ID)
	}
	return l.Events.Dismiss(ctx, event.ID, by, notes)
}
