// Package nut04 contains structs as defined in [NUT-04]
//
// [NUT-04]: https://github.com/cashubtc/nuts/blob/main/04.md
package nut04

import "github.com/elnosh/gonuts-mint/cashu"

// State is the lifecycle state of a mint quote.
type State int

const (
	Unpaid State = iota
	Paid
	Issued
)

func (s State) String() string {
	switch s {
	case Paid:
		return "PAID"
	case Issued:
		return "ISSUED"
	default:
		return "UNPAID"
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func StringToState(s string) State {
	switch s {
	case "PAID":
		return Paid
	case "ISSUED":
		return Issued
	default:
		return Unpaid
	}
}

func (s *State) UnmarshalJSON(data []byte) error {
	str := string(data)
	switch str {
	case `"PAID"`:
		*s = Paid
	case `"ISSUED"`:
		*s = Issued
	default:
		*s = Unpaid
	}
	return nil
}

type PostMintQuoteBolt11Request struct {
	Amount uint64 `json:"amount"`
	Unit   string `json:"unit"`
}

type PostMintQuoteBolt11Response struct {
	Quote   string `json:"quote"`
	Request string `json:"request"`
	State   State  `json:"state"`
	// Paid is kept for backwards compatibility with older wallet clients
	// that predate the State field.
	Paid   bool  `json:"paid"`
	Expiry int64 `json:"expiry"`
}

type PostMintBolt11Request struct {
	Quote   string                `json:"quote"`
	Outputs cashu.BlindedMessages `json:"outputs"`
}

type PostMintBolt11Response struct {
	Signatures cashu.BlindedSignatures `json:"signatures"`
}
