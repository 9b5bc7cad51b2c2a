package ledger

import "github.com/elnosh/gonuts-mint/cashu/nuts/nut06"

// SetMintInfo stores the mint's public info document, filling in the
// supported-NUTs map from the operations this engine actually implements
// and the unit(s) and limits it was configured with.
func (e *Engine) SetMintInfo(info nut06.MintInfo) {
	if info.Nuts == nil {
		info.Nuts = nut06.NutsMap{}
	}

	active, ok := e.keysets.Active(cashuSat)
	unit := cashuSat
	if ok {
		unit = active.Unit
	}

	mintSettings := nut06.MethodSetting{
		Method:    BOLT11_METHOD,
		Unit:      unit,
		MinAmount: e.limits.MintingSettings.MinAmount,
		MaxAmount: e.limits.MintingSettings.MaxAmount,
	}
	meltSettings := nut06.MethodSetting{
		Method:    BOLT11_METHOD,
		Unit:      unit,
		MinAmount: e.limits.MeltingSettings.MinAmount,
		MaxAmount: e.limits.MeltingSettings.MaxAmount,
	}

	info.Nuts[4] = nut06.NutSetting{
		Methods:  []nut06.MethodSetting{mintSettings},
		Disabled: e.limits.PegOutOnly,
	}
	info.Nuts[5] = nut06.NutSetting{
		Methods:  []nut06.MethodSetting{meltSettings},
		Disabled: false,
	}
	info.Nuts[7] = struct {
		Supported bool `json:"supported"`
	}{Supported: true}
	info.Nuts[8] = struct {
		Supported bool `json:"supported"`
	}{Supported: true}
	info.Nuts[9] = struct {
		Supported bool `json:"supported"`
	}{Supported: true}
	info.Nuts[10] = struct {
		Supported bool `json:"supported"`
	}{Supported: true}
	info.Nuts[11] = struct {
		Supported bool `json:"supported"`
	}{Supported: true}
	info.Nuts[12] = struct {
		Supported bool `json:"supported"`
	}{Supported: true}
	info.Nuts[14] = struct {
		Supported bool `json:"supported"`
	}{Supported: true}
	info.Nuts[20] = struct {
		Supported bool `json:"supported"`
	}{Supported: true}

	e.mintInfo = info
}

// RetrieveMintInfo returns the mint's current balance cap status folded
// into its public info document: once issued ecash minus redeemed ecash
// reaches the configured max balance, minting is reported disabled.
func (e *Engine) RetrieveMintInfo() (nut06.MintInfo, error) {
	info := e.mintInfo

	if e.limits.MaxBalance > 0 {
		balance, err := e.balance()
		if err != nil {
			return info, err
		}

		if balance >= e.limits.MaxBalance {
			mintNut, _ := info.Nuts[4].(nut06.NutSetting)
			mintNut.Disabled = true
			info.Nuts[4] = mintNut
		}
	}

	return info, nil
}

// balance returns total issued ecash minus total redeemed ecash across all
// keysets, i.e. the sum the mint is currently liable for.
func (e *Engine) balance() (uint64, error) {
	issued, err := e.db.GetIssuedEcash()
	if err != nil {
		return 0, err
	}
	redeemed, err := e.db.GetRedeemedEcash()
	if err != nil {
		return 0, err
	}

	var balance uint64
	for _, amt := range issued {
		balance += amt
	}
	for _, amt := range redeemed {
		balance -= amt
	}
	return balance, nil
}
