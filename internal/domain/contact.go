package domain

import "time"

// ContactVia is the channel a client used to reach a provider.
type ContactVia string

const (
	ContactWhatsapp ContactVia = "whatsapp"
	ContactCall     ContactVia = "call"
)

func (v ContactVia) Valid() bool {
	return v == ContactWhatsapp || v == ContactCall
}

// ContactPending is the audit record written the first time a client acts on
// a job_accept. It is keyed by provider id under the client's namespace and
// upserted with merge semantics: the first click wins. Not protocol state.
type ContactPending struct {
	ProviderID      string     `json:"provider_id"`
	Via             ContactVia `json:"via"`
	FirstClickTS    time.Time  `json:"first_click_ts"`
	OriginalNotifID int64      `json:"original_notif_id"`
}
