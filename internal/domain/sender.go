package domain

// SenderRef names the party a notification came from. Two wire
// representations exist: the structured {uid, collection} object and a legacy
// flat {fromId, fromCollection} pair (sometimes embedded in the payload).
// Both resolve to this one type at ingestion; nothing downstream branches on
// the representation again.
type SenderRef struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Legacy   bool     `json:"-"`
}

func (s *SenderRef) Identity() Identity {
	return Identity{ID: s.ID, Category: s.Category}
}

// ResolveSender extracts a sender reference from a raw decoded notification.
// It returns nil (never an error) when neither representation is present or
// the fields are malformed; callers treat nil as "act becomes a no-op".
func ResolveSender(raw map[string]any) *SenderRef {
	if raw == nil {
		return nil
	}

	if from, ok := raw["from"].(map[string]any); ok {
		if ref := structuredRef(from); ref != nil {
			return ref
		}
	}

	if ref := legacyRef(raw); ref != nil {
		return ref
	}

	// Oldest writers buried the flat pair inside the payload.
	if payload, ok := raw["payload"].(map[string]any); ok {
		if ref := legacyRef(payload); ref != nil {
			return ref
		}
	}

	return nil
}

func structuredRef(m map[string]any) *SenderRef {
	uid, _ := m["uid"].(string)
	coll, _ := m["collection"].(string)
	if uid == "" || !Category(coll).Valid() {
		return nil
	}
	return &SenderRef{ID: uid, Category: Category(coll)}
}

func legacyRef(m map[string]any) *SenderRef {
	uid, _ := m["fromId"].(string)
	coll, _ := m["fromCollection"].(string)
	if uid == "" || !Category(coll).Valid() {
		return nil
	}
	return &SenderRef{ID: uid, Category: Category(coll), Legacy: true}
}
