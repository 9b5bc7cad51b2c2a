package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/gonuts-mint/cashu"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut10"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut11"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut14"
	"github.com/elnosh/gonuts-mint/crypto"
)

// verifyProofs checks that proofs are neither pending nor already spent,
// contain no duplicates, each references a known keyset and amount, each
// satisfies any spending condition in its secret, and each signature
// verifies under the keyset's private key for its amount. Ys must be the
// hash-to-curve value of each proof's secret, in the same order.
func (e *Engine) verifyProofs(proofs cashu.Proofs, Ys []string) error {
	if len(proofs) == 0 {
		return &cashu.NoProofsProvided
	}

	pendingProofs, err := e.db.GetPendingProofs(Ys)
	if err != nil {
		return cashu.BuildCashuError(err.Error(), cashu.DBErrCode)
	}
	if len(pendingProofs) != 0 {
		return &cashu.ProofPendingErr
	}

	usedProofs, err := e.db.GetProofsUsed(Ys)
	if err != nil {
		return cashu.BuildCashuError(err.Error(), cashu.DBErrCode)
	}
	if len(usedProofs) != 0 {
		return &cashu.TokenAlreadySpentErr
	}

	if cashu.CheckDuplicateProofs(proofs) {
		return &cashu.DuplicateProofs
	}

	for _, proof := range proofs {
		keyset, ok := e.keysets.Get(proof.Id)
		if !ok {
			return &cashu.UnknownKeysetErr
		}
		key, ok := keyset.Keys[proof.Amount]
		if !ok {
			return &cashu.InvalidProofErr
		}

		if kind := nut10.SecretType(proof); kind != nut10.AnyoneCanSpend {
			secret, err := nut10.DeserializeSecret(proof.Secret)
			if err != nil {
				return cashu.BuildCashuError(err.Error(), cashu.StandardErrCode)
			}
			switch kind {
			case nut10.P2PK:
				if err := verifyP2PKLockedProof(proof, secret); err != nil {
					return err
				}
			case nut10.HTLC:
				if err := nut14.VerifyHTLCProof(proof, secret); err != nil {
					return err
				}
			}
		}

		Cbytes, err := hex.DecodeString(proof.C)
		if err != nil {
			return cashu.BuildCashuError("invalid C: "+err.Error(), cashu.StandardErrCode)
		}
		C, err := secp256k1.ParsePubKey(Cbytes)
		if err != nil {
			return cashu.BuildCashuError(err.Error(), cashu.StandardErrCode)
		}

		if !crypto.Verify([]byte(proof.Secret), key.PrivateKey, C) {
			return &cashu.InvalidProofErr
		}
	}

	return nil
}

func verifyP2PKLockedProof(proof cashu.Proof, secret nut10.WellKnownSecret) error {
	var witness nut11.P2PKWitness
	if err := json.Unmarshal([]byte(proof.Witness), &witness); err != nil {
		witness.Signatures = []string{}
	}

	tags, err := nut11.ParseP2PKTags(secret.Tags)
	if err != nil {
		return err
	}

	signaturesRequired := 1
	hash := sha256.Sum256([]byte(proof.Secret))

	if tags.Locktime > 0 && time.Now().Unix() > tags.Locktime {
		if len(tags.Refund) == 0 {
			return nil
		}
		if len(witness.Signatures) < 1 {
			return &nut11.InvalidWitness
		}
		if !nut11.HasValidSignatures(hash[:], witness, signaturesRequired, tags.Refund) {
			return &nut11.NotEnoughSignaturesErr
		}
		return nil
	}

	pubkey, err := nut11.ParsePublicKey(secret.Data)
	if err != nil {
		return err
	}
	keys := []*btcec.PublicKey{pubkey}
	if tags.NSigs > 0 {
		signaturesRequired = tags.NSigs
		if len(tags.Pubkeys) == 0 {
			return &nut11.EmptyPubkeysErr
		}
		keys = append(keys, tags.Pubkeys...)
	}

	if len(witness.Signatures) < 1 {
		return &nut11.InvalidWitness
	}
	if !nut11.HasValidSignatures(hash[:], witness, signaturesRequired, keys) {
		return &nut11.NotEnoughSignaturesErr
	}
	return nil
}

// verifyP2PKBlindedMessages checks SIG_ALL-flagged outputs against the
// shared spending condition carried by the inputs being swapped/melted.
func verifyP2PKBlindedMessages(proofs cashu.Proofs, blindedMessages cashu.BlindedMessages) error {
	secret, err := nut10.DeserializeSecret(proofs[0].Secret)
	if err != nil {
		return cashu.BuildCashuError(err.Error(), cashu.StandardErrCode)
	}
	pubkeys, err := nut11.PublicKeys(secret)
	if err != nil {
		return err
	}

	signaturesRequired := 1
	tags, err := nut11.ParseP2PKTags(secret.Tags)
	if err != nil {
		return err
	}
	if tags.NSigs > 0 {
		signaturesRequired = tags.NSigs
	}

	for _, proof := range proofs {
		s, err := nut10.DeserializeSecret(proof.Secret)
		if err != nil {
			return cashu.BuildCashuError(err.Error(), cashu.StandardErrCode)
		}
		if !nut11.IsSigAll(s) {
			return &nut11.AllSigAllFlagsErr
		}

		currentSignaturesRequired := 1
		currentTags, err := nut11.ParseP2PKTags(s.Tags)
		if err != nil {
			return err
		}
		if currentTags.NSigs > 0 {
			currentSignaturesRequired = currentTags.NSigs
		}

		currentKeys, err := nut11.PublicKeys(s)
		if err != nil {
			return err
		}
		if !reflect.DeepEqual(pubkeys, currentKeys) {
			return &nut11.SigAllKeysMustBeEqualErr
		}
		if signaturesRequired != currentSignaturesRequired {
			return &nut11.NSigsMustBeEqualErr
		}
	}

	for _, bm := range blindedMessages {
		B_bytes, err := hex.DecodeString(bm.B_)
		if err != nil {
			return cashu.BuildCashuError(err.Error(), cashu.StandardErrCode)
		}
		hash := sha256.Sum256(B_bytes)

		var witness nut11.P2PKWitness
		if err := json.Unmarshal([]byte(bm.Witness), &witness); err != nil || len(witness.Signatures) < 1 {
			return &nut11.InvalidWitness
		}
		if !nut11.HasValidSignatures(hash[:], witness, signaturesRequired, pubkeys) {
			return &nut11.NotEnoughSignaturesErr
		}
	}

	return nil
}
