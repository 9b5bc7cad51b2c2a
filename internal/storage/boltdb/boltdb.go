// Package boltdb is an alternative LedgerDB backend for deployments that
// want a single embedded key-value store instead of sqlite, grounded on the
// mint's original bbolt-based storage.
package boltdb

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/elnosh/gonuts-mint/cashu"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut04"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut05"
	"github.com/elnosh/gonuts-mint/crypto"
	"github.com/elnosh/gonuts-mint/internal/storage"
	bolt "go.etcd.io/bbolt"
)

const (
	seedBucket            = "seed"
	keysetsBucket         = "keysets"
	proofsBucket          = "proofs"
	pendingProofsBucket   = "pending_proofs"
	mintQuotesBucket      = "mint_quotes"
	meltQuotesBucket      = "melt_quotes"
	blindSignaturesBucket = "blind_signatures"
)

var ErrNotFound = errors.New("not found")

type BoltDB struct {
	bolt *bolt.DB
}

func InitBolt(path string) (*BoltDB, error) {
	db, err := bolt.Open(filepath.Join(path, "mint.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("error opening bolt db: %v", err)
	}

	boltdb := &BoltDB{bolt: db}
	if err := boltdb.initBuckets(); err != nil {
		return nil, fmt.Errorf("error setting up bolt db: %v", err)
	}

	return boltdb, nil
}

func (db *BoltDB) initBuckets() error {
	buckets := []string{
		seedBucket, keysetsBucket, proofsBucket, pendingProofsBucket,
		mintQuotesBucket, meltQuotesBucket, blindSignaturesBucket,
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) Close() error {
	return db.bolt.Close()
}

func (db *BoltDB) SaveSeed(seed []byte) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(seedBucket)).Put([]byte("id"), []byte(hex.EncodeToString(seed)))
	})
}

func (db *BoltDB) GetSeed() ([]byte, error) {
	var seed []byte
	err := db.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(seedBucket)).Get([]byte("id"))
		if v == nil {
			return ErrNotFound
		}
		decoded, err := hex.DecodeString(string(v))
		if err != nil {
			return err
		}
		seed = decoded
		return nil
	})
	return seed, err
}

func (db *BoltDB) SaveKeyset(keyset storage.DBKeyset) error {
	jsonKeyset, err := json.Marshal(keyset)
	if err != nil {
		return err
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(keysetsBucket)).Put([]byte(keyset.Id), jsonKeyset)
	})
}

func (db *BoltDB) GetKeysets() ([]storage.DBKeyset, error) {
	var keysets []storage.DBKeyset
	err := db.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(keysetsBucket)).ForEach(func(k, v []byte) error {
			var keyset storage.DBKeyset
			if err := json.Unmarshal(v, &keyset); err != nil {
				return err
			}
			keysets = append(keysets, keyset)
			return nil
		})
	})
	return keysets, err
}

func (db *BoltDB) UpdateKeysetActive(keysetId string, active bool) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(keysetsBucket))
		v := b.Get([]byte(keysetId))
		if v == nil {
			return ErrNotFound
		}
		var keyset storage.DBKeyset
		if err := json.Unmarshal(v, &keyset); err != nil {
			return err
		}
		keyset.Active = active
		updated, err := json.Marshal(keyset)
		if err != nil {
			return err
		}
		return b.Put([]byte(keysetId), updated)
	})
}

func proofKey(secret string) []byte {
	Y := crypto.HashToCurve([]byte(secret))
	return Y.SerializeCompressed()
}

func putProof(tx *bolt.Tx, bucket string, proof cashu.Proof, meltQuoteId string) error {
	dbp := storage.DBProof{
		Amount:      proof.Amount,
		Id:          proof.Id,
		Secret:      proof.Secret,
		Y:           hex.EncodeToString(proofKey(proof.Secret)),
		C:           proof.C,
		Witness:     proof.Witness,
		MeltQuoteId: meltQuoteId,
	}
	jsonProof, err := json.Marshal(dbp)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(bucket)).Put(proofKey(proof.Secret), jsonProof)
}

func (db *BoltDB) GetProofsUsed(Ys []string) ([]storage.DBProof, error) {
	return getProofsByY(db, proofsBucket, Ys)
}

func getProofsByY(db *BoltDB, bucket string, Ys []string) ([]storage.DBProof, error) {
	var proofs []storage.DBProof
	err := db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		for _, y := range Ys {
			key, err := hex.DecodeString(y)
			if err != nil {
				return err
			}
			v := b.Get(key)
			if v == nil {
				continue
			}
			var proof storage.DBProof
			if err := json.Unmarshal(v, &proof); err != nil {
				return err
			}
			proofs = append(proofs, proof)
		}
		return nil
	})
	return proofs, err
}

func (db *BoltDB) AddPendingProofs(proofs cashu.Proofs, quoteId string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		for _, proof := range proofs {
			if err := putProof(tx, pendingProofsBucket, proof, quoteId); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) GetPendingProofs(Ys []string) ([]storage.DBProof, error) {
	return getProofsByY(db, pendingProofsBucket, Ys)
}

func (db *BoltDB) GetPendingProofsByQuote(quoteId string) ([]storage.DBProof, error) {
	var proofs []storage.DBProof
	err := db.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(pendingProofsBucket)).ForEach(func(k, v []byte) error {
			var proof storage.DBProof
			if err := json.Unmarshal(v, &proof); err != nil {
				return err
			}
			if proof.MeltQuoteId == quoteId {
				proofs = append(proofs, proof)
			}
			return nil
		})
	})
	return proofs, err
}

func (db *BoltDB) RemovePendingProofs(Ys []string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(pendingProofsBucket))
		for _, y := range Ys {
			key, err := hex.DecodeString(y)
			if err != nil {
				return err
			}
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) SaveMintQuote(quote storage.MintQuote) error {
	jsonQuote, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(mintQuotesBucket)).Put([]byte(quote.Id), jsonQuote)
	})
}

func getMintQuote(tx *bolt.Tx, id string) (storage.MintQuote, error) {
	v := tx.Bucket([]byte(mintQuotesBucket)).Get([]byte(id))
	if v == nil {
		return storage.MintQuote{}, ErrNotFound
	}
	var quote storage.MintQuote
	if err := json.Unmarshal(v, &quote); err != nil {
		return storage.MintQuote{}, err
	}
	return quote, nil
}

func (db *BoltDB) GetMintQuote(id string) (storage.MintQuote, error) {
	var quote storage.MintQuote
	err := db.bolt.View(func(tx *bolt.Tx) error {
		q, err := getMintQuote(tx, id)
		quote = q
		return err
	})
	return quote, err
}

func (db *BoltDB) GetMintQuoteByPaymentHash(paymentHash string) (storage.MintQuote, error) {
	var quote storage.MintQuote
	found := false
	err := db.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(mintQuotesBucket)).ForEach(func(k, v []byte) error {
			var q storage.MintQuote
			if err := json.Unmarshal(v, &q); err != nil {
				return err
			}
			if q.PaymentHash == paymentHash {
				quote = q
				found = true
			}
			return nil
		})
	})
	if err != nil {
		return storage.MintQuote{}, err
	}
	if !found {
		return storage.MintQuote{}, ErrNotFound
	}
	return quote, nil
}

func (db *BoltDB) UpdateMintQuoteState(quoteId string, state nut04.State) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		quote, err := getMintQuote(tx, quoteId)
		if err != nil {
			return err
		}
		quote.State = state
		updated, err := json.Marshal(quote)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(mintQuotesBucket)).Put([]byte(quoteId), updated)
	})
}

func (db *BoltDB) SaveMeltQuote(quote storage.MeltQuote) error {
	jsonQuote, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(meltQuotesBucket)).Put([]byte(quote.Id), jsonQuote)
	})
}

func getMeltQuote(tx *bolt.Tx, id string) (storage.MeltQuote, error) {
	v := tx.Bucket([]byte(meltQuotesBucket)).Get([]byte(id))
	if v == nil {
		return storage.MeltQuote{}, ErrNotFound
	}
	var quote storage.MeltQuote
	if err := json.Unmarshal(v, &quote); err != nil {
		return storage.MeltQuote{}, err
	}
	return quote, nil
}

func (db *BoltDB) GetMeltQuote(id string) (storage.MeltQuote, error) {
	var quote storage.MeltQuote
	err := db.bolt.View(func(tx *bolt.Tx) error {
		q, err := getMeltQuote(tx, id)
		quote = q
		return err
	})
	return quote, err
}

func (db *BoltDB) GetMeltQuoteByPaymentRequest(invoice string) (*storage.MeltQuote, error) {
	var quote *storage.MeltQuote
	err := db.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(meltQuotesBucket)).ForEach(func(k, v []byte) error {
			var q storage.MeltQuote
			if err := json.Unmarshal(v, &q); err != nil {
				return err
			}
			if q.InvoiceRequest == invoice {
				quote = &q
			}
			return nil
		})
	})
	return quote, err
}

func (db *BoltDB) GetPendingMeltQuotes() ([]storage.MeltQuote, error) {
	var quotes []storage.MeltQuote
	err := db.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(meltQuotesBucket)).ForEach(func(k, v []byte) error {
			var q storage.MeltQuote
			if err := json.Unmarshal(v, &q); err != nil {
				return err
			}
			if q.State == nut05.Pending {
				quotes = append(quotes, q)
			}
			return nil
		})
	})
	return quotes, err
}

func (db *BoltDB) UpdateMeltQuote(quoteId string, preimage string, state nut05.State) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		quote, err := getMeltQuote(tx, quoteId)
		if err != nil {
			return err
		}
		quote.State = state
		quote.Preimage = preimage
		updated, err := json.Marshal(quote)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(meltQuotesBucket)).Put([]byte(quoteId), updated)
	})
}

type storedSignature struct {
	B_        string
	Signature cashu.BlindedSignature
}

func putBlindSignature(tx *bolt.Tx, B_ string, sig cashu.BlindedSignature) error {
	stored := storedSignature{B_: B_, Signature: sig}
	jsonSig, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(blindSignaturesBucket)).Put([]byte(B_), jsonSig)
}

func (db *BoltDB) GetBlindSignature(B_ string) (cashu.BlindedSignature, error) {
	var sig cashu.BlindedSignature
	err := db.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(blindSignaturesBucket)).Get([]byte(B_))
		if v == nil {
			return ErrNotFound
		}
		var stored storedSignature
		if err := json.Unmarshal(v, &stored); err != nil {
			return err
		}
		sig = stored.Signature
		return nil
	})
	return sig, err
}

func (db *BoltDB) GetBlindSignatures(B_s []string) (cashu.BlindedSignatures, error) {
	var sigs cashu.BlindedSignatures
	err := db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(blindSignaturesBucket))
		for _, B_ := range B_s {
			v := b.Get([]byte(B_))
			if v == nil {
				continue
			}
			var stored storedSignature
			if err := json.Unmarshal(v, &stored); err != nil {
				return err
			}
			sigs = append(sigs, stored.Signature)
		}
		return nil
	})
	return sigs, err
}

func (db *BoltDB) MintTokensTx(quoteId string, B_s []string, blindSignatures cashu.BlindedSignatures) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		quote, err := getMintQuote(tx, quoteId)
		if err != nil {
			return err
		}
		quote.State = nut04.Issued
		updated, err := json.Marshal(quote)
		if err != nil {
			return err
		}
		if err := tx.Bucket([]byte(mintQuotesBucket)).Put([]byte(quoteId), updated); err != nil {
			return err
		}
		for i, sig := range blindSignatures {
			if err := putBlindSignature(tx, B_s[i], sig); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) SwapTx(proofsToInvalidate cashu.Proofs, B_s []string, blindSignatures cashu.BlindedSignatures) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		for _, proof := range proofsToInvalidate {
			if err := putProof(tx, proofsBucket, proof, ""); err != nil {
				return err
			}
		}
		for i, sig := range blindSignatures {
			if err := putBlindSignature(tx, B_s[i], sig); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) SettleInternalTx(meltQuoteId, mintQuoteId, preimage string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		meltQuote, err := getMeltQuote(tx, meltQuoteId)
		if err != nil {
			return err
		}
		meltQuote.State = nut05.Paid
		meltQuote.Preimage = preimage
		updatedMelt, err := json.Marshal(meltQuote)
		if err != nil {
			return err
		}
		if err := tx.Bucket([]byte(meltQuotesBucket)).Put([]byte(meltQuoteId), updatedMelt); err != nil {
			return err
		}

		mintQuote, err := getMintQuote(tx, mintQuoteId)
		if err != nil {
			return err
		}
		mintQuote.State = nut04.Paid
		updatedMint, err := json.Marshal(mintQuote)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(mintQuotesBucket)).Put([]byte(mintQuoteId), updatedMint)
	})
}

func (db *BoltDB) GetIssuedEcash() (map[string]uint64, error) {
	issued := make(map[string]uint64)
	err := db.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(blindSignaturesBucket)).ForEach(func(k, v []byte) error {
			var stored storedSignature
			if err := json.Unmarshal(v, &stored); err != nil {
				return err
			}
			issued[stored.Signature.Id] += stored.Signature.Amount
			return nil
		})
	})
	return issued, err
}

func (db *BoltDB) GetRedeemedEcash() (map[string]uint64, error) {
	redeemed := make(map[string]uint64)
	err := db.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(proofsBucket)).ForEach(func(k, v []byte) error {
			var proof storage.DBProof
			if err := json.Unmarshal(v, &proof); err != nil {
				return err
			}
			redeemed[proof.Id] += proof.Amount
			return nil
		})
	})
	return redeemed, err
}
