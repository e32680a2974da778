package gateway

import "context"

// InboundMessage is the contract delivered by the messaging channel.
// Delivery is at-least-once; MessageUUID drives downstream deduplication.
type InboundMessage struct {
	PhoneNumber string `json:"phone_number"`
	Text        string `json:"text"`
	MessageUUID string `json:"message_uuid"`
	Timestamp   int64  `json:"timestamp"`
}

// Provider delivers outbound replies to the client channel
type Provider interface {
	Send(ctx context.Context, phoneNumber, text string) error
	GetProviderName() string
}
