// Package workflow defines the order-approval and line-status state
// machines. Every local state write for a synced entity passes through the
// matching machine; an invalid transition is a ConflictError and must never
// be silently swallowed.
package workflow

import (
	"fmt"

	"github.com/fieldops/fieldsync/internal/models"
)

// ConflictError reports a transition the state machine rejects. The stored
// row is left unchanged when one is returned.
type ConflictError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: transition %s -> %s not allowed", e.Entity, e.ID, e.From, e.To)
}

// StateMachine holds the allowed transitions for one entity kind's workflow
// states.
type StateMachine struct {
	entity      string
	label       func(int) string
	transitions map[int]map[int]bool
}

func newMachine(entity string, label func(int) string) *StateMachine {
	return &StateMachine{
		entity:      entity,
		label:       label,
		transitions: make(map[int]map[int]bool),
	}
}

func (sm *StateMachine) allow(from, to int) {
	if sm.transitions[from] == nil {
		sm.transitions[from] = make(map[int]bool)
	}
	sm.transitions[from][to] = true
}

// IsValidTransition checks if a transition exists in the state machine.
func (sm *StateMachine) IsValidTransition(from, to int) bool {
	return sm.transitions[from][to]
}

// Validate returns nil if the transition is allowed, or a *ConflictError.
func (sm *StateMachine) Validate(id string, from, to int) error {
	if sm.IsValidTransition(from, to) {
		return nil
	}
	return &ConflictError{
		Entity: sm.entity,
		ID:     id,
		From:   sm.label(from),
		To:     sm.label(to),
	}
}

// AllowedFrom returns all valid target states from a given state.
func (sm *StateMachine) AllowedFrom(from int) []int {
	var out []int
	for to := range sm.transitions[from] {
		out = append(out, to)
	}
	return out
}

// Orders returns the order approval machine:
//
//	new -> sentToStorekeeper -> verifiedByStorekeeper -> {completed | rejected}
//
// with cancelled reachable from any non-terminal state and an optional
// checking branch verified -> sentToChecker -> checkerIsChecking inserted
// before completion.
func Orders() *StateMachine {
	sm := newMachine("order", func(s int) string { return models.OrderState(s).String() })

	sm.allow(int(models.OrderNew), int(models.OrderSentToStorekeeper))
	sm.allow(int(models.OrderSentToStorekeeper), int(models.OrderVerifiedByStorekeeper))
	sm.allow(int(models.OrderVerifiedByStorekeeper), int(models.OrderCompleted))
	sm.allow(int(models.OrderVerifiedByStorekeeper), int(models.OrderRejected))
	sm.allow(int(models.OrderVerifiedByStorekeeper), int(models.OrderSentToChecker))
	sm.allow(int(models.OrderSentToChecker), int(models.OrderCheckerIsChecking))
	sm.allow(int(models.OrderCheckerIsChecking), int(models.OrderCompleted))
	sm.allow(int(models.OrderCheckerIsChecking), int(models.OrderRejected))

	// Cancellation from every non-terminal state
	for _, s := range []models.OrderState{
		models.OrderNew,
		models.OrderSentToStorekeeper,
		models.OrderVerifiedByStorekeeper,
		models.OrderSentToChecker,
		models.OrderCheckerIsChecking,
	} {
		sm.allow(int(s), int(models.OrderCancelled))
	}

	return sm
}

// Lines returns the order-line / out-of-stock-line machine:
//
//	new -> notChecked -> {inStock | outOfStock}, outOfStock -> reported,
//
// with notAvailable, cancelled and replaced reachable from non-terminal
// states. Cancelled is absorbing.
func Lines() *StateMachine {
	sm := newMachine("line", func(s int) string { return models.LineState(s).String() })

	sm.allow(int(models.LineNew), int(models.LineNotChecked))
	sm.allow(int(models.LineNotChecked), int(models.LineInStock))
	sm.allow(int(models.LineNotChecked), int(models.LineOutOfStock))
	sm.allow(int(models.LineOutOfStock), int(models.LineReported))
	sm.allow(int(models.LineReported), int(models.LineReplaced))

	for _, s := range []models.LineState{
		models.LineNew,
		models.LineNotChecked,
		models.LineInStock,
		models.LineOutOfStock,
		models.LineReported,
	} {
		sm.allow(int(s), int(models.LineNotAvailable))
		sm.allow(int(s), int(models.LineCancelled))
	}
	sm.allow(int(models.LineNotChecked), int(models.LineReplaced))
	sm.allow(int(models.LineOutOfStock), int(models.LineReplaced))
	sm.allow(int(models.LineNotAvailable), int(models.LineReplaced))

	return sm
}
