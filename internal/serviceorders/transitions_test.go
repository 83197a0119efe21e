package serviceorders

import (
	"reflect"
	"testing"

	"github.com/codinglabe/believe-app/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from enums.ServiceOrderStatus
		op   Operation
		want bool
	}{
		{enums.ServiceOrderStatusPending, OpApprove, true},
		{enums.ServiceOrderStatusInProgress, OpApprove, false},
		{enums.ServiceOrderStatusPending, OpReject, true},
		{enums.ServiceOrderStatusInProgress, OpReject, true},
		{enums.ServiceOrderStatusDelivered, OpReject, false},
		{enums.ServiceOrderStatusPending, OpCancel, true},
		{enums.ServiceOrderStatusInProgress, OpCancel, false},
		{enums.ServiceOrderStatusInProgress, OpDeliver, true},
		{enums.ServiceOrderStatusPending, OpDeliver, false},
		{enums.ServiceOrderStatusDelivered, OpAcceptDelivery, true},
		{enums.ServiceOrderStatusCompleted, OpAcceptDelivery, false},
		{enums.ServiceOrderStatusCancelled, OpApprove, false},
		{enums.ServiceOrderStatusPending, Operation("refund"), false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.op); got != tt.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.op, got, tt.want)
		}
	}
}

func TestActorFor(t *testing.T) {
	for op, want := range map[Operation]Party{
		OpApprove:        PartySeller,
		OpReject:         PartySeller,
		OpDeliver:        PartySeller,
		OpCancel:         PartyBuyer,
		OpAcceptDelivery: PartyBuyer,
	} {
		got, ok := ActorFor(op)
		if !ok || got != want {
			t.Fatalf("ActorFor(%s) = %s, %v", op, got, ok)
		}
	}
	if _, ok := ActorFor(Operation("refund")); ok {
		t.Fatalf("unknown operation must not resolve")
	}
}

func TestAvailableOperations(t *testing.T) {
	seller := AvailableOperations(enums.ServiceOrderStatusPending, PartySeller)
	if !reflect.DeepEqual(seller, []Operation{OpApprove, OpReject}) {
		t.Fatalf("unexpected seller operations %v", seller)
	}
	buyer := AvailableOperations(enums.ServiceOrderStatusPending, PartyBuyer)
	if !reflect.DeepEqual(buyer, []Operation{OpCancel}) {
		t.Fatalf("unexpected buyer operations %v", buyer)
	}
	if ops := AvailableOperations(enums.ServiceOrderStatusCompleted, PartyBuyer); len(ops) != 0 {
		t.Fatalf("completed orders have no operations, got %v", ops)
	}
}
