package helpers

import (
	"engagement-service/internal/domain"
)

// BuildPayload assembles a notification payload with the display fields every
// variant carries (description, senderName, avatar), merged over any extra
// key/values the caller supplies. Extras never clobber an explicitly passed
// display field.
func BuildPayload(description, senderName, avatar string, extra map[string]any) map[string]any {
	payload := make(map[string]any, len(extra)+3)
	for k, v := range extra {
		payload[k] = v
	}
	if description != "" {
		payload[domain.PayloadDescription] = description
	}
	if senderName != "" {
		payload[domain.PayloadSenderName] = senderName
	}
	if avatar != "" {
		payload[domain.PayloadAvatar] = avatar
	}
	return payload
}

// ChainPayload copies the display fields of a prior chain node into a new
// payload and sets the back-reference used to unwind the chain later.
func ChainPayload(prior *domain.Notification, originalNotifID int64, overrides map[string]any) map[string]any {
	payload := make(map[string]any, 4+len(overrides))
	if prior != nil && prior.Payload != nil {
		for _, k := range []string{domain.PayloadDescription, domain.PayloadSenderName, domain.PayloadAvatar} {
			if v, ok := prior.Payload[k]; ok {
				payload[k] = v
			}
		}
	}
	payload[domain.PayloadOriginalNotifID] = originalNotifID
	for k, v := range overrides {
		payload[k] = v
	}
	return payload
}
