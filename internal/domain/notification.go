package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// NoteType is the protocol event carried by a notification. Protocol state is
// nothing but the presence of these types in the two parties' mailboxes.
type NoteType string

const (
	NoteJobRequest         NoteType = "job_request"
	NoteJobAccept          NoteType = "job_accept"
	NoteContactFollowup    NoteType = "contact_followup"
	NoteAgreementConfirmed NoteType = "agreement_confirmed"
	NoteRatingRequest      NoteType = "rating_request"
)

func (t NoteType) Valid() bool {
	switch t {
	case NoteJobRequest, NoteJobAccept, NoteContactFollowup,
		NoteAgreementConfirmed, NoteRatingRequest:
		return true
	}
	return false
}

// Well-known payload keys. Payloads are otherwise opaque key/value maps.
const (
	PayloadDescription     = "description"
	PayloadSenderName      = "senderName"
	PayloadAvatar          = "avatar"
	PayloadOriginalNotifID = "originalNotifId"
	PayloadStatus          = "status"
	PayloadPromptAt        = "promptAt"
	PayloadDirection       = "direction"
)

const StatusCancelled = "cancelled"

// Notification is the unit of protocol state. It lives in exactly one owner's
// mailbox, is mutated only by reschedule/cancel payload patches, and is
// removed exactly once by whichever handler completes or supersedes it.
type Notification struct {
	ID        int64          `json:"id"`
	RequestID string         `json:"request_id"`
	Owner     Identity       `json:"owner"`
	Type      NoteType       `json:"type"`
	From      *SenderRef     `json:"from,omitempty"`
	Payload   map[string]any `json:"payload"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

// OriginalNotifID returns the chain back-reference, tolerating the numeric
// representations JSON decoding produces.
func (n *Notification) OriginalNotifID() (int64, bool) {
	if n.Payload == nil {
		return 0, false
	}
	return toInt64(n.Payload[PayloadOriginalNotifID])
}

func (n *Notification) Cancelled() bool {
	if n.Payload == nil {
		return false
	}
	s, _ := n.Payload[PayloadStatus].(string)
	return s == StatusCancelled
}

// Clone returns a deep-enough copy: stores hand out clones so callers can
// never mutate persisted state in place.
func (n *Notification) Clone() *Notification {
	cp := *n
	if n.Payload != nil {
		cp.Payload = make(map[string]any, len(n.Payload))
		for k, v := range n.Payload {
			cp.Payload[k] = v
		}
	}
	if n.From != nil {
		ref := *n.From
		cp.From = &ref
	}
	return &cp
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	case json.Number:
		i, err := x.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(x, 10, 64)
		return i, err == nil
	}
	return 0, false
}
