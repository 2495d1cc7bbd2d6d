package domain

import "time"

// Account is the server-side identity record without persistence concerns.
type Account struct {
	DID              string     `json:"did"`
	Handle           string     `json:"handle"`
	Address          *string    `json:"address,omitempty"`
	Email            string     `json:"email"`
	CreatedAt        time.Time  `json:"createdAt"`
	DeactivatedAt    *time.Time `json:"deactivatedAt,omitempty"`
	TakendownAt      *time.Time `json:"takendownAt,omitempty"`
	EmailConfirmedAt *time.Time `json:"emailConfirmedAt,omitempty"`
}

// Available reports whether the account may act, given the flags.
func (a Account) Available(flags AvailabilityFlags) bool {
	if a.DeactivatedAt != nil && !flags.IncludeDeactivated {
		return false
	}
	if a.TakendownAt != nil && !flags.IncludeTakenDown {
		return false
	}
	return true
}

// AvailabilityFlags widen account lookups beyond active accounts.
type AvailabilityFlags struct {
	IncludeDeactivated bool
	IncludeTakenDown   bool
}

// AccountStatus is the lifecycle state announced on the event log.
type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "active"
	AccountStatusDeactivated AccountStatus = "deactivated"
	AccountStatusTakendown   AccountStatus = "takendown"
	AccountStatusDeleted     AccountStatus = "deleted"
)

// CreateAccountOpts carries everything needed to create an account row
// and its initial session.
type CreateAccountOpts struct {
	DID      string
	Handle   string
	Email    string
	Password string
	RepoCID  string
	RepoRev  string
	Address  *string
}

// Session is a pair of freshly minted credentials.
type Session struct {
	AccessToken  string
	RefreshToken string
}
