package storage

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/gonuts-mint/cashu"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut04"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut05"
)

// LedgerDB is the persistence port the ledger engine drives. Every mutating
// method that couples two otherwise-independent writes (marking a quote
// issued while saving its promises, invalidating proofs while saving their
// promises) is expressed as a single transactional method here so a crash
// mid-operation can never leave tokens signed without the ledger recording
// them as issued, or proofs invalidated without their outputs signed.
type LedgerDB interface {
	SaveSeed([]byte) error
	GetSeed() ([]byte, error)

	SaveKeyset(DBKeyset) error
	GetKeysets() ([]DBKeyset, error)
	UpdateKeysetActive(keysetId string, active bool) error

	GetProofsUsed(Ys []string) ([]DBProof, error)
	AddPendingProofs(proofs cashu.Proofs, quoteId string) error
	GetPendingProofs(Ys []string) ([]DBProof, error)
	GetPendingProofsByQuote(quoteId string) ([]DBProof, error)
	RemovePendingProofs(Ys []string) error

	SaveMintQuote(MintQuote) error
	GetMintQuote(string) (MintQuote, error)
	GetMintQuoteByPaymentHash(string) (MintQuote, error)
	UpdateMintQuoteState(quoteId string, state nut04.State) error

	SaveMeltQuote(MeltQuote) error
	GetMeltQuote(string) (MeltQuote, error)
	// used to check if a melt quote already exists for the passed invoice
	GetMeltQuoteByPaymentRequest(string) (*MeltQuote, error)
	UpdateMeltQuote(quoteId string, preimage string, state nut05.State) error
	// GetPendingMeltQuotes lists melt quotes left in the Pending state, so
	// a crash mid-payment can be reconciled against the Lightning backend
	// at startup.
	GetPendingMeltQuotes() ([]MeltQuote, error)

	GetBlindSignature(B_ string) (cashu.BlindedSignature, error)
	GetBlindSignatures(B_s []string) (cashu.BlindedSignatures, error)

	// MintTokensTx atomically marks quoteId issued and persists the
	// promises generated for it (B_s holds the blinded messages the
	// signatures answer, in the same order). Used so a mint never signs
	// outputs for a quote without recording that the quote has been spent.
	MintTokensTx(quoteId string, B_s []string, blindSignatures cashu.BlindedSignatures) error

	// SwapTx atomically invalidates the spent proofs and persists the
	// promises generated for the swap's outputs.
	SwapTx(proofsToInvalidate cashu.Proofs, B_s []string, blindSignatures cashu.BlindedSignatures) error

	// SettleInternalTx atomically transitions an internally-settled
	// mint/melt quote pair: the melt quote to Paid with its preimage, and
	// the mint quote to Paid so it becomes mintable.
	SettleInternalTx(meltQuoteId, mintQuoteId, preimage string) error

	// these return a map of keyset id and amount
	GetIssuedEcash() (map[string]uint64, error)
	GetRedeemedEcash() (map[string]uint64, error)

	Close() error
}

type DBKeyset struct {
	Id                string
	Unit              string
	Active            bool
	Seed              string
	DerivationPathIdx uint32
	InputFeePpk       uint
}

type DBProof struct {
	Amount  uint64
	Id      string
	Secret  string
	Y       string
	C       string
	Witness string
	// for proofs in pending table
	MeltQuoteId string
}

type MintQuote struct {
	Id             string
	Amount         uint64
	Unit           string
	PaymentRequest string
	PaymentHash    string
	State          nut04.State
	Expiry         uint64
	Pubkey         *secp256k1.PublicKey
}

type MeltQuote struct {
	Id             string
	InvoiceRequest string
	Unit           string
	PaymentHash    string
	Amount         uint64
	FeeReserve     uint64
	State          nut05.State
	Expiry         uint64
	Preimage       string
	IsMpp          bool
	// used when the melt quote is MPP
	AmountMsat uint64
}
