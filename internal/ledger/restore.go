package ledger

import (
	"fmt"

	"github.com/elnosh/gonuts-mint/cashu"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut07"
)

// ProofsStateCheck reports whether each Y (hash-to-curve of a proof's
// secret) is unspent, pending (reserved against an in-flight melt), or
// spent.
func (e *Engine) ProofsStateCheck(Ys []string) ([]nut07.ProofState, error) {
	usedProofs, err := e.db.GetProofsUsed(Ys)
	if err != nil {
		return nil, cashu.BuildCashuError(fmt.Sprintf("could not get used proofs: %v", err), cashu.DBErrCode)
	}
	pendingProofs, err := e.db.GetPendingProofs(Ys)
	if err != nil {
		return nil, cashu.BuildCashuError(fmt.Sprintf("could not get pending proofs: %v", err), cashu.DBErrCode)
	}

	usedByY := make(map[string]bool, len(usedProofs))
	for _, p := range usedProofs {
		usedByY[p.Y] = true
	}
	pendingByY := make(map[string]bool, len(pendingProofs))
	for _, p := range pendingProofs {
		pendingByY[p.Y] = true
	}

	states := make([]nut07.ProofState, len(Ys))
	for i, y := range Ys {
		state := nut07.Unspent
		switch {
		case usedByY[y]:
			state = nut07.Spent
		case pendingByY[y]:
			state = nut07.Pending
		}
		states[i] = nut07.ProofState{Y: y, State: state}
	}

	return states, nil
}

// RestoreSignatures returns, for whichever of the requested blinded
// messages the mint has already signed, the matching output and
// signature pair, so a wallet recovering from backup can rebuild its
// proofs without double-spending its own outputs.
func (e *Engine) RestoreSignatures(outputs cashu.BlindedMessages) (cashu.BlindedMessages, cashu.BlindedSignatures, error) {
	restoredOutputs := make(cashu.BlindedMessages, 0, len(outputs))
	restoredSignatures := make(cashu.BlindedSignatures, 0, len(outputs))

	for _, bm := range outputs {
		sig, err := e.db.GetBlindSignature(bm.B_)
		if err != nil {
			continue
		}
		restoredOutputs = append(restoredOutputs, bm)
		restoredSignatures = append(restoredSignatures, sig)
	}

	return restoredOutputs, restoredSignatures, nil
}
