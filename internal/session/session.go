// Package session holds per-contact conversation state. Sessions live only
// in memory: a restart drops every conversation back to the beginning, by
// design.
package session

import (
	"time"

	"github.com/mariahq/maria/internal/catalog"
)

// State is the contact's position in the intake script. Transitions are
// strictly forward, except StateReconcilePending, a side branch taken when
// the declared identifier matches no existing record; it rejoins the main
// sequence at StateAskFirstHome.
type State int

const (
	StateInit State = iota
	StateAskIdentifier
	StateReconcilePending
	StateAskFirstHome
	StateAskHomeType
	StateAskPrice
	StateAskWorkerType
	StateCollectDocs
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAskIdentifier:
		return "ask_identifier"
	case StateReconcilePending:
		return "reconcile_pending"
	case StateAskFirstHome:
		return "ask_first_home"
	case StateAskHomeType:
		return "ask_home_type"
	case StateAskPrice:
		return "ask_price"
	case StateAskWorkerType:
		return "ask_worker_type"
	case StateCollectDocs:
		return "collect_docs"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Answers collects the questionnaire fields. Append-only until the flow
// completes; values are stored as the contact typed them except where the
// classifier produces a canonical value.
type Answers struct {
	Identifier     string
	FirstHome      string
	HomeType       string
	Price          string
	WorkerCategory catalog.Category
}

// Session is one contact's conversation. All access goes through the Store's
// per-key serialization; the struct itself carries no locking.
type Session struct {
	ContactKey string
	State      State
	Answers    Answers

	// LinkedRecordID references the CRM record once resolved. Set exactly
	// once; no document is relayed before it is set.
	LinkedRecordID string

	// PendingIdentifier holds the declared identifier, raw form, while the
	// name-collection sub-flow is in progress. Cleared when the record is
	// created.
	PendingIdentifier string

	// ReceivedDocuments is monotonically non-decreasing and never exceeds
	// the catalog's required count for the session's worker category.
	ReceivedDocuments int

	CreatedAt   time.Time
	LastEventAt time.Time
}

// Touch records inbound activity for idle-expiry accounting.
func (s *Session) Touch() {
	s.LastEventAt = time.Now()
}
