package workflow

import (
	"errors"
	"testing"

	"github.com/fieldops/fieldsync/internal/models"
)

func TestOrderTransitions(t *testing.T) {
	sm := Orders()

	tests := []struct {
		name  string
		from  models.OrderState
		to    models.OrderState
		valid bool
	}{
		{"new to sent", models.OrderNew, models.OrderSentToStorekeeper, true},
		{"sent to verified", models.OrderSentToStorekeeper, models.OrderVerifiedByStorekeeper, true},
		{"verified to completed", models.OrderVerifiedByStorekeeper, models.OrderCompleted, true},
		{"verified to rejected", models.OrderVerifiedByStorekeeper, models.OrderRejected, true},
		{"verified to checker", models.OrderVerifiedByStorekeeper, models.OrderSentToChecker, true},
		{"checker branch to checking", models.OrderSentToChecker, models.OrderCheckerIsChecking, true},
		{"checking to completed", models.OrderCheckerIsChecking, models.OrderCompleted, true},
		{"checking to rejected", models.OrderCheckerIsChecking, models.OrderRejected, true},
		{"cancel from new", models.OrderNew, models.OrderCancelled, true},
		{"cancel from checking", models.OrderCheckerIsChecking, models.OrderCancelled, true},

		{"skip to verified", models.OrderNew, models.OrderVerifiedByStorekeeper, false},
		{"new to completed", models.OrderNew, models.OrderCompleted, false},
		{"completed back to sent", models.OrderCompleted, models.OrderSentToStorekeeper, false},
		{"rejected to completed", models.OrderRejected, models.OrderCompleted, false},
		{"cancel a completed order", models.OrderCompleted, models.OrderCancelled, false},
		{"cancel a cancelled order", models.OrderCancelled, models.OrderCancelled, false},
		{"checking without checker", models.OrderVerifiedByStorekeeper, models.OrderCheckerIsChecking, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sm.IsValidTransition(int(tt.from), int(tt.to))
			if got != tt.valid {
				t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.valid)
			}
		})
	}
}

func TestLineTransitions(t *testing.T) {
	sm := Lines()

	tests := []struct {
		name  string
		from  models.LineState
		to    models.LineState
		valid bool
	}{
		{"new to not checked", models.LineNew, models.LineNotChecked, true},
		{"not checked to in stock", models.LineNotChecked, models.LineInStock, true},
		{"not checked to out of stock", models.LineNotChecked, models.LineOutOfStock, true},
		{"out of stock to reported", models.LineOutOfStock, models.LineReported, true},
		{"reported to replaced", models.LineReported, models.LineReplaced, true},
		{"cancel from new", models.LineNew, models.LineCancelled, true},
		{"not available from reported", models.LineReported, models.LineNotAvailable, true},

		{"skip to in stock", models.LineNew, models.LineInStock, false},
		{"in stock to out of stock", models.LineInStock, models.LineOutOfStock, false},
		{"cancelled is absorbing", models.LineCancelled, models.LineNotChecked, false},
		{"cancelled cannot be replaced", models.LineCancelled, models.LineReplaced, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sm.IsValidTransition(int(tt.from), int(tt.to))
			if got != tt.valid {
				t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.valid)
			}
		})
	}
}

func TestValidateReturnsConflictError(t *testing.T) {
	sm := Orders()

	err := sm.Validate("ord-1", int(models.OrderCompleted), int(models.OrderSentToStorekeeper))
	if err == nil {
		t.Fatal("expected error for invalid transition")
	}

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *ConflictError, got %T", err)
	}
	if conflict.ID != "ord-1" {
		t.Errorf("conflict.ID = %q, want %q", conflict.ID, "ord-1")
	}
	if conflict.From != "completed" || conflict.To != "sent_to_storekeeper" {
		t.Errorf("conflict labels = %q -> %q", conflict.From, conflict.To)
	}
}

func TestValidateAllowsValidTransition(t *testing.T) {
	if err := Lines().Validate("line-1", int(models.LineNew), int(models.LineNotChecked)); err != nil {
		t.Fatalf("Validate returned %v for a valid transition", err)
	}
}
