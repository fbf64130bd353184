package middleware

import (
	"context"

	"engagement-service/internal/domain"
)

type contextKey string

const (
	ContextUserID   contextKey = "userID"
	ContextUserType contextKey = "userType"
	ContextToken    contextKey = "token"
)

func GetUserID(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(ContextUserID).(string)
	return val, ok
}

// IdentityFromContext builds the acting identity from the auth claims the
// middleware stored. The claim "type" carries the account category.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	userID, _ := ctx.Value(ContextUserID).(string)
	userType, _ := ctx.Value(ContextUserType).(string)

	identity := domain.Identity{ID: userID, Category: domain.Category(userType)}
	if userID == "" || !identity.Category.Valid() {
		return domain.Identity{}, false
	}
	return identity, true
}
