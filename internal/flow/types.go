// Package flow drives the fixed intake questionnaire over the messaging
// channel: one state machine per contact, a record-reconciliation side
// branch, and a document-collection stage that closes the conversation once
// the category's quota is met.
package flow

import "context"

// Event is a normalized inbound chat event, one per webhook delivery. An
// event carries free text, attachments, or both.
type Event struct {
	ContactKey  string
	Text        string
	Attachments []Attachment
}

// Attachment is one media item on an inbound event.
type Attachment struct {
	URL         string
	ContentType string
}

// Messenger sends outbound messages on the chat channel.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	// SendTemplate sends a pre-approved template with substitution
	// variables keyed by position ("1", "2", ...).
	SendTemplate(ctx context.Context, to, templateID string, vars map[string]string) error
}

// Relay moves one attachment into the linked record's file column.
type Relay interface {
	Relay(ctx context.Context, contactKey, url, recordID string) error
}

// Turn is one entry of the conversation history handed to the fallback
// responder.
type Turn struct {
	Role    string
	Content string
}

// Completer produces a contextual reply for free text that the script has no
// transition for. It never drives a state change.
type Completer interface {
	Complete(ctx context.Context, history []Turn) (string, error)
}
