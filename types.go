package gorefresh

import (
	"context"

	"github.com/arkadian7/goRefresh/token"
)

// AccountStatus represents the lifecycle state of a user account as reported
// by the [AccountProvider].
type AccountStatus uint8

const (
	// AccountActive is the only status that allows refresh to complete.
	AccountActive AccountStatus = iota
	// AccountDisabled marks an administratively disabled account.
	AccountDisabled
	// AccountLocked marks a temporarily locked account.
	AccountLocked
	// AccountDeleted marks a removed account.
	AccountDeleted
)

func (s AccountStatus) String() string {
	switch s {
	case AccountActive:
		return "active"
	case AccountDisabled:
		return "disabled"
	case AccountLocked:
		return "locked"
	case AccountDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Account is the minimal account view the refresh path needs.
type Account struct {
	UserID string
	Status AccountStatus
}

// AccountProvider is the external account-lookup collaborator. GetAccount
// returns the account for userID or an error; a missing account is reported
// through the returned account's status, not an error, so store failures
// stay distinguishable from policy outcomes.
type AccountProvider interface {
	GetAccount(ctx context.Context, userID string) (Account, bool, error)
}

// AccessIssuer is the external stateless access-token collaborator.
// [jwt.Manager] satisfies it.
type AccessIssuer interface {
	Mint(userID string) (string, error)
}

// DeviceMeta is the advisory client fingerprint captured at issuance.
type DeviceMeta = token.DeviceMeta

// TokenPair is the result of a successful refresh: a fresh access token and
// the successor refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
