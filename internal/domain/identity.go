package domain

// Category identifies the kind of account behind a party. A single account
// may act as client or provider depending on its category.
type Category string

const (
	CategoryClientProfile      Category = "client_profile"
	CategoryProviderIndividual Category = "provider_individual"
	CategoryProviderBusiness   Category = "provider_business"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryClientProfile, CategoryProviderIndividual, CategoryProviderBusiness:
		return true
	}
	return false
}

func (c Category) IsProvider() bool {
	return c == CategoryProviderIndividual || c == CategoryProviderBusiness
}

// Identity is an opaque (id, category) pair naming one party. Immutable;
// issued by the account system.
type Identity struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
}

// Key returns the mailbox key for this identity, e.g. "client_profile_42".
func (i Identity) Key() string {
	return string(i.Category) + "_" + i.ID
}

func (i Identity) IsZero() bool {
	return i.ID == "" && i.Category == ""
}
