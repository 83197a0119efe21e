package serviceorders

import (
	"github.com/codinglabe/believe-app/pkg/enums"
)

// Operation is an actor-initiated lifecycle change.
type Operation string

const (
	OpApprove        Operation = "approve"
	OpReject         Operation = "reject"
	OpCancel         Operation = "cancel"
	OpDeliver        Operation = "deliver"
	OpAcceptDelivery Operation = "accept_delivery"
)

// Party is the side of the order allowed to perform an operation.
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
)

type transition struct {
	actor Party
	from  []enums.ServiceOrderStatus
	to    enums.ServiceOrderStatus
	event enums.OutboxEventType
	// notify is the party told about the change.
	notify Party
	title  string
}

var transitions = map[Operation]transition{
	OpApprove: {
		actor:  PartySeller,
		from:   []enums.ServiceOrderStatus{enums.ServiceOrderStatusPending},
		to:     enums.ServiceOrderStatusInProgress,
		event:  enums.EventServiceOrderApproved,
		notify: PartyBuyer,
		title:  "Your order was accepted",
	},
	OpReject: {
		actor:  PartySeller,
		from:   []enums.ServiceOrderStatus{enums.ServiceOrderStatusPending, enums.ServiceOrderStatusInProgress},
		to:     enums.ServiceOrderStatusCancelled,
		event:  enums.EventServiceOrderRejected,
		notify: PartyBuyer,
		title:  "Your order was declined",
	},
	OpCancel: {
		actor:  PartyBuyer,
		from:   []enums.ServiceOrderStatus{enums.ServiceOrderStatusPending},
		to:     enums.ServiceOrderStatusCancelled,
		event:  enums.EventServiceOrderCancelled,
		notify: PartySeller,
		title:  "An order was cancelled",
	},
	OpDeliver: {
		actor:  PartySeller,
		from:   []enums.ServiceOrderStatus{enums.ServiceOrderStatusInProgress},
		to:     enums.ServiceOrderStatusDelivered,
		event:  enums.EventServiceOrderDelivered,
		notify: PartyBuyer,
		title:  "Your order was delivered",
	},
	OpAcceptDelivery: {
		actor:  PartyBuyer,
		from:   []enums.ServiceOrderStatus{enums.ServiceOrderStatusDelivered},
		to:     enums.ServiceOrderStatusCompleted,
		event:  enums.EventServiceOrderCompleted,
		notify: PartySeller,
		title:  "Delivery accepted, order completed",
	},
}

func (t transition) allows(from enums.ServiceOrderStatus) bool {
	for _, s := range t.from {
		if s == from {
			return true
		}
	}
	return false
}

// CanTransition reports whether op is allowed from status, ignoring actor and
// payment preconditions.
func CanTransition(from enums.ServiceOrderStatus, op Operation) bool {
	t, ok := transitions[op]
	return ok && t.allows(from)
}

// ActorFor returns the party allowed to perform op.
func ActorFor(op Operation) (Party, bool) {
	t, ok := transitions[op]
	return t.actor, ok
}

// AvailableOperations lists the operations party may attempt on an order in
// status, in a stable order. Used by clients to render actions.
func AvailableOperations(status enums.ServiceOrderStatus, party Party) []Operation {
	ordered := []Operation{OpApprove, OpReject, OpCancel, OpDeliver, OpAcceptDelivery}
	out := []Operation{}
	for _, op := range ordered {
		t := transitions[op]
		if t.actor == party && t.allows(status) {
			out = append(out, op)
		}
	}
	return out
}
