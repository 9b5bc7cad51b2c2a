package ledger

import (
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/gonuts-mint/cashu"
	"github.com/elnosh/gonuts-mint/crypto"
)

// signBlindedMessages signs each blinded message with its keyset's private
// key for the message's amount, attaching a DLEQ proof so the holder can
// verify the signature came from the claimed keyset without trusting the
// mint's word for it.
func (e *Engine) signBlindedMessages(messages cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	signatures := make(cashu.BlindedSignatures, len(messages))

	for i, bm := range messages {
		keyset, ok := e.keysets.Get(bm.Id)
		if !ok {
			return nil, &cashu.UnknownKeysetErr
		}
		key, ok := keyset.Keys[bm.Amount]
		if !ok {
			return nil, &cashu.InvalidBlindedMessageAmount
		}

		B_bytes, err := hex.DecodeString(bm.B_)
		if err != nil {
			return nil, cashu.BuildCashuError("invalid B_: "+err.Error(), cashu.StandardErrCode)
		}
		B_, err := secp256k1.ParsePubKey(B_bytes)
		if err != nil {
			return nil, cashu.BuildCashuError(err.Error(), cashu.StandardErrCode)
		}

		C_ := crypto.SignBlindedMessage(B_, key.PrivateKey)
		dleqE, dleqS := crypto.GenerateDLEQ(key.PrivateKey, B_, C_)

		signatures[i] = cashu.BlindedSignature{
			Amount: bm.Amount,
			Id:     bm.Id,
			C_:     hex.EncodeToString(C_.SerializeCompressed()),
			DLEQ: &cashu.DLEQProof{
				E: hex.EncodeToString(dleqE.Serialize()),
				S: hex.EncodeToString(dleqS.Serialize()),
			},
		}
	}

	return signatures, nil
}

// changePromises picks which of the melt outputs to sign for an overpaid
// Lightning fee reserve. It splits the overpaid amount into the smallest
// set of distinct powers of two, largest first, and assigns them in that
// order to the outputs as given: NUT-08 leaves ordering of the blank
// outputs to the wallet, so the mint must not reorder them, only decide
// how many of them (from the front) to sign and for what amount. When
// there are fewer outputs than change amounts, the largest amounts are
// signed and the remainder is forfeited, per "return as much as possible".
func (e *Engine) changePromises(overpaid uint64, outputs cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	if overpaid == 0 || len(outputs) == 0 {
		return nil, nil
	}

	amounts := cashu.OptimalSplit(overpaid)

	n := len(outputs)
	if len(amounts) < n {
		n = len(amounts)
	}

	toSign := make(cashu.BlindedMessages, n)
	for i := 0; i < n; i++ {
		bm := outputs[i]
		bm.Amount = amounts[i]
		toSign[i] = bm
	}

	return e.signBlindedMessages(toSign)
}
