package ledger

import "github.com/elnosh/gonuts-mint/cashu/nuts/nut06"

// Config is the structured form of the mint's deploy-time knobs. Loading
// it from env vars, flags or a file is left to cmd/mintd; this type is
// just the shape the engine consumes.
type Config struct {
	// DerivationPathIdx is the counter used to derive the active sat
	// keyset's child key at startup.
	DerivationPathIdx uint32
	InputFeePpk       uint

	// SeedDecryptionKey is checked at startup. A nil or empty key means the
	// stored seed is used as-is. No seed decryption is performed: a
	// non-empty key makes LoadEngine return an error.
	SeedDecryptionKey []byte

	Limits   Limits
	MintInfo nut06.MintInfo
}

type MintMethodSettings struct {
	MinAmount uint64
	MaxAmount uint64
}

type MeltMethodSettings struct {
	MinAmount uint64
	MaxAmount uint64
}

// Limits mirrors spec.md's mint_max_peg_in/mint_max_peg_out/
// mint_max_balance/mint_peg_out_only knobs.
type Limits struct {
	MaxBalance         uint64
	PegOutOnly         bool
	RateLimitPerMinute uint
	MintingSettings    MintMethodSettings
	MeltingSettings    MeltMethodSettings
}
