package flows

import (
	"github.com/MrEthical07/careAuth/jwt"
	"github.com/MrEthical07/careAuth/permission"
)

// Approval states mirrored from the root package.
const (
	ApprovalApproved = "approved"
	ApprovalPending  = "pending"
	ApprovalRejected = "rejected"
)

// Account is the flow-local view of a stored account.
type Account struct {
	UserID         string
	Email          string
	Role           permission.Role
	PasswordHash   string
	IsActive       bool
	ApprovalStatus string
}

// AccountStateErrors carries the host sentinels for blocked accounts.
type AccountStateErrors struct {
	Deactivated error
	Pending     error
	Rejected    error
}

// accountStateError returns nil for accounts allowed to hold tokens. An
// inactive account is reported as deactivated before its approval state is
// considered.
func accountStateError(acc Account, errs AccountStateErrors) error {
	if !acc.IsActive {
		return errs.Deactivated
	}
	switch acc.ApprovalStatus {
	case ApprovalApproved, "":
		return nil
	case ApprovalPending:
		return errs.Pending
	case ApprovalRejected:
		return errs.Rejected
	default:
		return errs.Deactivated
	}
}

func identityOf(acc Account) jwt.Identity {
	return jwt.Identity{UserID: acc.UserID, Email: acc.Email, Role: acc.Role.String()}
}
