package media

import "errors"

var (
	// ErrAttachmentTooLarge indicates the payload exceeds the max relay size.
	ErrAttachmentTooLarge = errors.New("attachment too large")
	// ErrEmptyAttachment indicates the channel returned a zero-byte payload.
	ErrEmptyAttachment = errors.New("attachment payload is empty")
	// ErrNoLinkedRecord indicates relay was attempted before the session was
	// linked to a record.
	ErrNoLinkedRecord = errors.New("no linked record for attachment")
)
