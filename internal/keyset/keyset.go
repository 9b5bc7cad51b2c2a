// Package keyset manages the mint's active and retired signing keysets:
// loading them from storage at startup, activating new ones per unit, and
// answering lookups the ledger and proof verifier need on every request.
package keyset

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/elnosh/gonuts-mint/crypto"
	"github.com/elnosh/gonuts-mint/internal/storage"
)

// Manager owns every keyset the mint knows about, keyed by id, plus the
// single active keyset per unit that new signatures are issued from.
type Manager struct {
	mu     sync.RWMutex
	db     storage.LedgerDB
	master *hdkeychain.ExtendedKey

	all    map[string]crypto.MintKeyset
	active map[string]crypto.MintKeyset // unit -> active keyset
}

// Load reads every keyset row from db, regenerates each keyset's keys from
// the master seed and its stored derivation index, and marks them active
// or retired according to the stored flag.
func Load(db storage.LedgerDB, seed []byte) (*Manager, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("deriving master key: %v", err)
	}

	m := &Manager{
		db:     db,
		master: master,
		all:    make(map[string]crypto.MintKeyset),
		active: make(map[string]crypto.MintKeyset),
	}

	dbKeysets, err := db.GetKeysets()
	if err != nil {
		return nil, fmt.Errorf("reading keysets from db: %v", err)
	}

	for _, dbks := range dbKeysets {
		ks, err := crypto.GenerateKeyset(master, dbks.DerivationPathIdx, dbks.Unit, dbks.InputFeePpk)
		if err != nil {
			return nil, fmt.Errorf("regenerating keyset '%v': %v", dbks.Id, err)
		}
		ks.Active = dbks.Active
		m.all[ks.Id] = *ks
		if dbks.Active {
			m.active[dbks.Unit] = *ks
		}
	}

	return m, nil
}

// ActivateForUnit returns the unit's active keyset. When the unit has none,
// it creates one from the given derivation index and input fee, persists it
// and marks it active. When the unit already has an active keyset, that
// keyset is returned unchanged: the derivation index and input fee passed in
// are not compared against it and are not used.
func (m *Manager) ActivateForUnit(unit string, derivationPathIdx uint32, inputFeePpk uint) (crypto.MintKeyset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.active[unit]; ok {
		return existing, nil
	}

	ks, err := crypto.GenerateKeyset(m.master, derivationPathIdx, unit, inputFeePpk)
	if err != nil {
		return crypto.MintKeyset{}, err
	}

	seedBytes, err := m.db.GetSeed()
	if err != nil {
		return crypto.MintKeyset{}, fmt.Errorf("reading seed: %v", err)
	}

	dbKeyset := storage.DBKeyset{
		Id:                ks.Id,
		Unit:              ks.Unit,
		Active:            true,
		Seed:              hex.EncodeToString(seedBytes),
		DerivationPathIdx: ks.DerivationPathIdx,
		InputFeePpk:       ks.InputFeePpk,
	}
	if err := m.db.SaveKeyset(dbKeyset); err != nil {
		return crypto.MintKeyset{}, fmt.Errorf("saving new active keyset: %v", err)
	}

	m.all[ks.Id] = *ks
	m.active[unit] = *ks
	return *ks, nil
}

// Rotate retires the current active keyset for unit (if any) and activates
// a fresh one at the given derivation index, so future signatures use the
// new keys while proofs against the old one still verify.
func (m *Manager) Rotate(unit string, derivationPathIdx uint32, inputFeePpk uint) (crypto.MintKeyset, error) {
	m.mu.Lock()
	if current, ok := m.active[unit]; ok {
		current.Active = false
		if err := m.db.UpdateKeysetActive(current.Id, false); err != nil {
			m.mu.Unlock()
			return crypto.MintKeyset{}, fmt.Errorf("retiring keyset '%v': %v", current.Id, err)
		}
		m.all[current.Id] = current
		delete(m.active, unit)
	}
	m.mu.Unlock()

	return m.ActivateForUnit(unit, derivationPathIdx, inputFeePpk)
}

// Active returns the currently active keyset for a unit.
func (m *Manager) Active(unit string) (crypto.MintKeyset, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ks, ok := m.active[unit]
	return ks, ok
}

// Get returns any keyset (active or retired) by id.
func (m *Manager) Get(id string) (crypto.MintKeyset, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ks, ok := m.all[id]
	return ks, ok
}

// All returns every keyset the mint knows about, active and retired.
func (m *Manager) All() map[string]crypto.MintKeyset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]crypto.MintKeyset, len(m.all))
	for k, v := range m.all {
		out[k] = v
	}
	return out
}
