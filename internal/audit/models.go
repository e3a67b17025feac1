// Package audit records before/after snapshots of ledger mutations. Entries
// are written in the same transaction as the change they describe and relayed
// to Kafka through a transactional outbox.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action names the mutation an audit entry describes.
type Action string

const (
	ActionOwnerCreated         Action = "owner_created"
	ActionUnitCreated          Action = "unit_created"
	ActionTransferInitiated    Action = "transfer_initiated"
	ActionTransferCompleted    Action = "transfer_completed"
	ActionTransferRejected     Action = "transfer_rejected"
	ActionInheritanceInitiated Action = "inheritance_initiated"
	ActionDocumentVerified     Action = "document_verified"
)

// Entry is one audit record. OldValues and NewValues hold JSON snapshots of
// the affected state; either may be nil when there is no before or after.
type Entry struct {
	ID         uuid.UUID
	TableName  string
	RecordID   string
	Action     Action
	OldValues  json.RawMessage
	NewValues  json.RawMessage
	Actor      string
	Reason     string
	RequestID  string
	IPAddress  string
	UserAgent  string
	RecordedAt time.Time
}
