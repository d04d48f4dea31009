package orders

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/promoshop/promoshop/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStrictMachine_FollowsGraph(t *testing.T) {
	t.Parallel()

	machine, err := NewMachine(PolicyStrict, discardLogger())
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}

	tests := []struct {
		from    models.OrderStatus
		to      models.OrderStatus
		allowed bool
	}{
		{models.StatusPending, models.StatusConfirmed, true},
		{models.StatusPending, models.StatusCancelled, true},
		{models.StatusPending, models.StatusShipped, false},
		{models.StatusConfirmed, models.StatusProcessing, true},
		{models.StatusConfirmed, models.StatusCancelled, true},
		{models.StatusConfirmed, models.StatusPending, false},
		{models.StatusProcessing, models.StatusShipped, true},
		{models.StatusProcessing, models.StatusCancelled, true},
		{models.StatusShipped, models.StatusDelivered, true},
		{models.StatusShipped, models.StatusCancelled, false},
		{models.StatusDelivered, models.StatusPending, false},
		{models.StatusCancelled, models.StatusPending, false},
		{models.StatusPending, models.StatusPending, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()

			order := testOrder("1", 100, tt.from, time.Hour)
			now := baseTime.Add(time.Minute)
			next, err := machine.Transition(t.Context(), order, tt.to, now)

			if !tt.allowed {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				if next.Status != tt.from {
					t.Fatalf("rejected transition changed status to %s", next.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition() error = %v", err)
			}
			if next.Status != tt.to {
				t.Fatalf("status = %s, want %s", next.Status, tt.to)
			}
			if !next.UpdatedAt.Equal(now) {
				t.Fatalf("UpdatedAt = %v, want %v", next.UpdatedAt, now)
			}
			if order.Status != tt.from {
				t.Fatalf("input order was mutated")
			}
		})
	}
}

func TestStrictMachine_RejectsLeavingTerminalState(t *testing.T) {
	t.Parallel()

	machine, err := NewMachine(PolicyStrict, discardLogger())
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}

	_, err = machine.Transition(t.Context(), testOrder("1", 100, models.StatusDelivered, 0), models.StatusPending, baseTime)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPermissiveMachine_AllowsJumpsButNotUnknownStatuses(t *testing.T) {
	t.Parallel()

	machine, err := NewMachine(PolicyPermissive, discardLogger())
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	if machine.Policy() != PolicyPermissive {
		t.Fatalf("Policy() = %s", machine.Policy())
	}

	next, err := machine.Transition(t.Context(), testOrder("1", 100, models.StatusDelivered, 0), models.StatusPending, baseTime)
	if err != nil {
		t.Fatalf("expected permissive jump to succeed, got %v", err)
	}
	if next.Status != models.StatusPending {
		t.Fatalf("status = %s, want pending", next.Status)
	}

	_, err = machine.Transition(t.Context(), testOrder("1", 100, models.StatusPending, 0), models.OrderStatus("lost"), baseTime)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected unknown status to be rejected, got %v", err)
	}
}

func TestNewMachine_DefaultsAndRejectsUnknownPolicy(t *testing.T) {
	t.Parallel()

	machine, err := NewMachine("", nil)
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	if machine.Policy() != PolicyStrict {
		t.Fatalf("expected strict default, got %s", machine.Policy())
	}

	if _, err := NewMachine("yolo", nil); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestNextAndTerminal(t *testing.T) {
	t.Parallel()

	if got := Next(models.StatusShipped); len(got) != 1 || got[0] != models.StatusDelivered {
		t.Fatalf("Next(shipped) = %v", got)
	}
	for _, status := range []models.OrderStatus{models.StatusDelivered, models.StatusCancelled} {
		if !IsTerminal(status) {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
	if IsTerminal(models.StatusPending) {
		t.Fatalf("pending must not be terminal")
	}
}
