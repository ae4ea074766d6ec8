package auth

import (
	"fmt"

	"github.com/quoteportal/server/internal/model"
)

// allowedTransitions maps each status to the statuses it may move to.
// pending -> active happens automatically once the portal's activation
// precondition holds; everything else is administrative. deactivated is
// terminal and not reachable from pending.
var allowedTransitions = map[model.AccountStatus][]model.AccountStatus{
	model.StatusPending:   {model.StatusActive, model.StatusSuspended},
	model.StatusActive:    {model.StatusSuspended},
	model.StatusSuspended: {model.StatusActive, model.StatusDeactivated},
}

// CheckTransition returns ErrInvalidTransition when from cannot move to to.
func CheckTransition(from, to model.AccountStatus) error {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// CanAuthenticate gates login by account status. Only active accounts
// authenticate normally; pending supplier accounts may authenticate when the
// portal defers device binding to first login. Suspended and deactivated
// accounts fail with their specific reason.
func CanAuthenticate(account model.Account, supplierBindOnFirstLogin bool) error {
	switch account.Status {
	case model.StatusActive:
		return nil
	case model.StatusPending:
		if account.Role == model.RoleSupplier && supplierBindOnFirstLogin {
			return nil
		}
		return ErrInvalidCredentials
	case model.StatusSuspended:
		return ErrAccountSuspended
	case model.StatusDeactivated:
		return ErrAccountDeactivated
	default:
		return ErrInvalidCredentials
	}
}
