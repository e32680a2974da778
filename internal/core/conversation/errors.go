package conversation

import "errors"

var (
	// ErrEmptyMessage is returned for an inbound message with no text.
	ErrEmptyMessage = errors.New("conversation: message text cannot be empty")

	// ErrTicketNotFound is returned when an operation references a ticket
	// that does not exist.
	ErrTicketNotFound = errors.New("conversation: ticket not found")

	// ErrTicketSolved is returned when mutating a ticket that is already in
	// its terminal state.
	ErrTicketSolved = errors.New("conversation: ticket already solved")

	// ErrMessageNotFound is returned when editing or deleting a message that
	// does not exist in the ticket's thread.
	ErrMessageNotFound = errors.New("conversation: message not found")

	// ErrDuplicateDelivery signals that a concurrent writer already recorded
	// the same message UUID. The second writer's effect is discarded and the
	// first recorded outcome is authoritative.
	ErrDuplicateDelivery = errors.New("conversation: duplicate message delivery")
)
