package domain

import (
	"fmt"
	"time"
)

// AccountKind identifies the owner type of a ledger account.
type AccountKind string

const (
	AccountKindUser     AccountKind = "user"
	AccountKindBusiness AccountKind = "business"
	AccountKindSystem   AccountKind = "system"
)

var validAccountKinds = map[AccountKind]bool{
	AccountKindUser:     true,
	AccountKindBusiness: true,
	AccountKindSystem:   true,
}

// IsValid checks if the kind is a known account kind.
func (k AccountKind) IsValid() bool {
	return validAccountKinds[k]
}

// AccountRef references exactly one account owner. It is the tagged
// alternative to three nullable foreign keys: an entry belongs to a user,
// a business, or a system entity, never more than one.
type AccountRef struct {
	Kind AccountKind
	ID   string
}

// UserRef builds a reference to a user account.
func UserRef(userID string) AccountRef {
	return AccountRef{Kind: AccountKindUser, ID: userID}
}

// BusinessRef builds a reference to a business account.
func BusinessRef(businessID string) AccountRef {
	return AccountRef{Kind: AccountKindBusiness, ID: businessID}
}

// SystemRef builds a reference to a system entity account.
func SystemRef(name string) AccountRef {
	return AccountRef{Kind: AccountKindSystem, ID: name}
}

// Well-known system counterparty accounts.
var (
	SystemPurchases  = SystemRef("purchases")
	SystemPromotions = SystemRef("promotions")
	SystemExpiry     = SystemRef("expiry")
)

// Validate checks that the reference names exactly one existing owner slot.
func (r AccountRef) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAccountRef, r.Kind)
	}

	if r.ID == "" {
		return fmt.Errorf("%w: missing owner id", ErrInvalidAccountRef)
	}

	return nil
}

// String renders the reference as kind:id, the form used in cache keys and logs.
func (r AccountRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// Account is an owning entity record together with its cached balance.
// The cached fields are a derived read accelerator, never the source of
// truth; the ledger entries are.
type Account struct {
	Ref                AccountRef
	Name               string
	Credits            int64
	HeldCredits        int64
	LifetimeCredits    int64
	CreditsLastUpdated time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CachedBalance returns the cached view as a Balance snapshot for
// comparison against the calculator output.
func (a *Account) CachedBalance() Balance {
	return Balance{
		AvailableCredits: a.Credits,
		HeldCredits:      a.HeldCredits,
		LifetimeCredits:  a.LifetimeCredits,
	}
}
