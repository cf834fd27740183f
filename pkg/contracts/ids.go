package contracts

import (
	"strings"

	"github.com/google/uuid"
)

// newContractNumber generates a human-readable contract number.
// Uniqueness is enforced by the contracts.contract_number constraint.
func newContractNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	return "CT-" + suffix
}
