package processor

import (
	"github.com/elusiv/core/internal/elusiverr"
	"github.com/elusiv/core/internal/joinsplit"
	"github.com/elusiv/core/internal/verifier"
)

// prepareInputsTxBudget is the default per-transaction round budget for
// phase P, used to build a VerificationAccount's
// prepare_inputs_instructions schedule at init_verification time.
const prepareInputsTxBudget = 64

// vkeyForKind resolves the verifying key for a ProofRequest's Kind,
// rejecting Migrate outright (callers only reach this after InitVerification
// has already rejected Migrate, so this is a defensive second check).
func vkeyForKind(kind joinsplit.Kind) (verifier.VerifyingKey, error) {
	if kind == joinsplit.KindMigrate {
		return nil, elusiverr.ErrFeatureNotAvailable
	}
	return verifier.VerifyingKeyFor(verifier.Kind(kind))
}

// prepareInputsSchedule splits phase P's total round count into
// prepareInputsTxBudget-sized chunks, the per-tx round budget persisted
// on VerificationAccount.prepare_inputs_instructions.
func prepareInputsSchedule(vk verifier.VerifyingKey) []uint16 {
	remaining := vk.PreparePublicInputsRounds()
	var schedule []uint16
	for remaining > 0 {
		chunk := prepareInputsTxBudget
		if chunk > remaining {
			chunk = remaining
		}
		schedule = append(schedule, uint16(chunk))
		remaining -= chunk
	}
	return schedule
}
