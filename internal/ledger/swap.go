package ledger

import (
	"encoding/hex"
	"fmt"

	"github.com/elnosh/gonuts-mint/cashu"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut11"
	"github.com/elnosh/gonuts-mint/crypto"
)

// Swap verifies a set of input proofs, signs a set of output blinded
// messages for the same value minus the input fee, and invalidates the
// inputs. Invalidation and signature persistence happen in a single db
// transaction so a crash mid-swap can never leave inputs spendable twice
// or outputs issued without their inputs invalidated.
func (e *Engine) Swap(proofs cashu.Proofs, outputs cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	var proofsAmount uint64
	Ys := make([]string, len(proofs))
	for i, proof := range proofs {
		proofsAmount += proof.Amount
		Y := crypto.HashToCurve([]byte(proof.Secret))
		Ys[i] = hex.EncodeToString(Y.SerializeCompressed())
	}

	var outputsAmount uint64
	B_s := make([]string, len(outputs))
	for i, bm := range outputs {
		outputsAmount += bm.Amount
		B_s[i] = bm.B_
	}

	fees := e.InputFees(proofs)
	if proofsAmount < outputsAmount+fees {
		return nil, &cashu.InsufficientProofsAmount
	}
	if proofsAmount > outputsAmount+fees {
		return nil, cashu.TransactionError("inputs exceed outputs plus fees")
	}

	if err := e.verifyProofs(proofs, Ys); err != nil {
		return nil, err
	}

	existing, err := e.db.GetBlindSignatures(B_s)
	if err != nil {
		return nil, cashu.BuildCashuError(fmt.Sprintf("error checking blind signatures: %v", err), cashu.DBErrCode)
	}
	if len(existing) > 0 {
		return nil, &cashu.BlindedMessageAlreadySigned
	}

	if nut11.ProofsSigAll(proofs) {
		e.logDebugf("P2PK locked proofs carry SIG_ALL, verifying outputs")
		if err := verifyP2PKBlindedMessages(proofs, outputs); err != nil {
			return nil, err
		}
	}

	signatures, err := e.signBlindedMessages(outputs)
	if err != nil {
		return nil, err
	}

	if err := e.db.SwapTx(proofs, B_s, signatures); err != nil {
		return nil, cashu.BuildCashuError(fmt.Sprintf("error swapping proofs: %v", err), cashu.DBErrCode)
	}

	for _, y := range Ys {
		e.events.Publish(ProofStateTopic(y), []byte(`{"Y":"`+y+`","state":"SPENT"}`))
	}

	return signatures, nil
}
