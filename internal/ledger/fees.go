package ledger

import "github.com/elnosh/gonuts-mint/cashu"

// InputFees returns the total fee owed on a set of input proofs. Inputs
// are grouped by keyset id, and each group contributes
// ceil(sum(input.amount * keyset.input_fee_ppk) / 1000); the group totals
// are then summed. Proofs are assumed to already be validated against a
// known keyset; an unknown keyset id contributes no fee here since
// verifyProofs rejects the proof before this is called.
func (e *Engine) InputFees(proofs cashu.Proofs) uint64 {
	weightedByKeyset := make(map[string]uint64)
	for _, proof := range proofs {
		keyset, ok := e.keysets.Get(proof.Id)
		if !ok {
			continue
		}
		weightedByKeyset[proof.Id] += proof.Amount * uint64(keyset.InputFeePpk)
	}

	var total uint64
	for _, weighted := range weightedByKeyset {
		total += (weighted + 999) / 1000
	}
	return total
}
