// Package ledger implements the mint/melt/swap/restore state machines
// that couple blind issuance to the Lightning payment lifecycle.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut06"
	"github.com/elnosh/gonuts-mint/internal/keylock"
	"github.com/elnosh/gonuts-mint/internal/keyset"
	"github.com/elnosh/gonuts-mint/internal/pubsub"
	"github.com/elnosh/gonuts-mint/internal/storage"
	"github.com/elnosh/gonuts-mint/lightning"
)

const (
	QuoteExpiryMins = 10
	BOLT11_METHOD   = "bolt11"
)

// MintQuoteTopic and MeltQuoteTopic are the pubsub topics quote state
// updates are published to, keyed further by quote id.
func MintQuoteTopic(quoteId string) string { return "mint-quote:" + quoteId }
func MeltQuoteTopic(quoteId string) string { return "melt-quote:" + quoteId }
func ProofStateTopic(y string) string      { return "proof:" + y }

// Engine is the mint's ledger: it drives storage and the Lightning backend
// to implement mint, melt, swap and restore without assuming anything
// about how requests reach it.
type Engine struct {
	db       storage.LedgerDB
	backend  lightning.Client
	keysets  *keyset.Manager
	events   *pubsub.Hub
	locks    *keylock.Table
	logger   *slog.Logger
	limits   Limits
	mintInfo nut06.MintInfo
}

// LoadEngine wires storage, the keyset manager, and a Lightning backend
// into a ready-to-use Engine, activating a sat keyset if none is active
// yet.
func LoadEngine(db storage.LedgerDB, backend lightning.Client, logger *slog.Logger, config Config) (*Engine, error) {
	if backend == nil {
		return nil, fmt.Errorf("invalid lightning client")
	}

	seed, err := loadOrCreateSeed(db, config.SeedDecryptionKey)
	if err != nil {
		return nil, err
	}

	keysets, err := keyset.Load(db, seed)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		db:      db,
		backend: backend,
		keysets: keysets,
		events:  pubsub.NewHub(),
		locks:   keylock.NewTable(),
		logger:  logger,
		limits:  config.Limits,
	}

	active, err := keysets.ActivateForUnit(cashuSat, config.DerivationPathIdx, config.InputFeePpk)
	if err != nil {
		return nil, fmt.Errorf("activating keyset: %v", err)
	}
	engine.logInfof("active keyset '%v' for unit '%v' with fee %v", active.Id, active.Unit, active.InputFeePpk)

	engine.SetMintInfo(config.MintInfo)
	return engine, nil
}

const cashuSat = "sat"

func loadOrCreateSeed(db storage.LedgerDB, decryptionKey []byte) ([]byte, error) {
	seed, err := db.GetSeed()
	if err == nil {
		return decryptSeed(seed, decryptionKey)
	}

	seed, genErr := generateSeed()
	if genErr != nil {
		return nil, genErr
	}
	if err := db.SaveSeed(seed); err != nil {
		return nil, err
	}
	return seed, nil
}

func generateSeed() ([]byte, error) {
	for {
		seed, err := hdkeychain.GenerateSeed(32)
		if err == nil {
			return seed, nil
		}
	}
}

// decryptSeed is a no-op when no decryption key is configured. Seed-at-rest
// encryption is not implemented yet, so a configured key is rejected
// outright rather than being silently ignored while the stored seed is
// treated as plaintext.
func decryptSeed(seed, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return seed, nil
	}
	return nil, fmt.Errorf("seed decryption key configured but decryption is not implemented")
}

func SetupLogger(mintPath string, debug bool) (*slog.Logger, error) {
	replacer := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)
			source.File = filepath.Base(source.File)
		}
		return a
	}

	logFile, err := os.OpenFile(filepath.Join(mintPath, "mint.log"), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %v", err)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, logFile), &slog.HandlerOptions{
		AddSource:   true,
		Level:       level,
		ReplaceAttr: replacer,
	})), nil
}

// logInfof/logErrorf/logDebugf format the message and preserve the
// caller's source position, so log lines point at the real call site
// instead of this helper.
func (e *Engine) logInfof(format string, args ...any) {
	e.log(slog.LevelInfo, format, args...)
}

func (e *Engine) logErrorf(format string, args ...any) {
	e.log(slog.LevelError, format, args...)
}

func (e *Engine) logDebugf(format string, args ...any) {
	if !e.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	e.log(slog.LevelDebug, format, args...)
}

func (e *Engine) log(level slog.Level, format string, args ...any) {
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, fmt.Sprintf(format, args...), pcs[0])
	_ = e.logger.Handler().Handle(context.Background(), r)
}

// publishMintQuote and publishMeltQuote marshal a quote and publish it on
// its topic, logging rather than failing the caller if marshaling errors.
func (e *Engine) publishMintQuote(q storage.MintQuote) {
	data, err := json.Marshal(q)
	if err != nil {
		e.logErrorf("error marshaling mint quote for publish: %v", err)
		return
	}
	e.events.Publish(MintQuoteTopic(q.Id), data)
}

func (e *Engine) publishMeltQuote(q storage.MeltQuote) {
	data, err := json.Marshal(q)
	if err != nil {
		e.logErrorf("error marshaling melt quote for publish: %v", err)
		return
	}
	e.events.Publish(MeltQuoteTopic(q.Id), data)
}

func (e *Engine) Subscribe(topic string) *pubsub.Subscriber {
	return e.events.Subscribe(topic)
}

func (e *Engine) Unsubscribe(s *pubsub.Subscriber, topic string) {
	e.events.Unsubscribe(s, topic)
}
