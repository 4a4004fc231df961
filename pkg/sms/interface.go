package sms

import "context"

// Provider sends transactional SMS. Delivery is best effort; the dispatch
// pipeline never blocks on it.
type Provider interface {
	SendSMS(ctx context.Context, msg *Message) (*Receipt, error)
}

type Message struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

type Receipt struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}
