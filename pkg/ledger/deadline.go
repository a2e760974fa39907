package ledger

import (
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
)

// CheckDeadline returns types.ErrExpiredPermit when referenceTime is strictly
// after deadline. A permit is still valid at referenceTime == deadline. Both
// values are Unix seconds; the caller supplies referenceTime so the check is
// reproducible.
func CheckDeadline(deadline *big.Int, referenceTime uint64) error {
	if deadline == nil || deadline.Sign() < 0 {
		return fmt.Errorf("%w: deadline must be a non-negative integer", types.ErrInvalidPermit)
	}
	ref := new(big.Int).SetUint64(referenceTime)
	if ref.Cmp(deadline) > 0 {
		return fmt.Errorf("%w: reference time %d is after deadline %s", types.ErrExpiredPermit, referenceTime, deadline)
	}
	return nil
}
