package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/elnosh/gonuts-mint/cashu/nuts/nut06"
	"github.com/elnosh/gonuts-mint/internal/ledger"
	"github.com/elnosh/gonuts-mint/internal/storage"
	"github.com/elnosh/gonuts-mint/internal/storage/sqlite"
	"github.com/elnosh/gonuts-mint/lightning"
)

func mintPath() (string, error) {
	path := os.Getenv("MINT_DB_PATH")
	if len(path) > 0 {
		return path, nil
	}
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homedir, ".gonuts", "mint"), nil
}

func configFromEnv() (ledger.Config, string, bool, error) {
	path, err := mintPath()
	if err != nil {
		return ledger.Config{}, "", false, err
	}

	var derivationPathIdx uint64
	if idxEnv, ok := os.LookupEnv("KEYSET_DERIVATION_IDX"); ok {
		derivationPathIdx, err = strconv.ParseUint(idxEnv, 10, 32)
		if err != nil {
			return ledger.Config{}, "", false, fmt.Errorf("invalid KEYSET_DERIVATION_IDX: %v", err)
		}
	}

	var inputFeePpk uint64
	if feeEnv, ok := os.LookupEnv("INPUT_FEE_PPK"); ok {
		inputFeePpk, err = strconv.ParseUint(feeEnv, 10, 16)
		if err != nil {
			return ledger.Config{}, "", false, fmt.Errorf("invalid INPUT_FEE_PPK: %v", err)
		}
	}

	limits := ledger.Limits{}
	if maxBalanceEnv, ok := os.LookupEnv("MAX_BALANCE"); ok {
		limits.MaxBalance, err = strconv.ParseUint(maxBalanceEnv, 10, 64)
		if err != nil {
			return ledger.Config{}, "", false, fmt.Errorf("invalid MAX_BALANCE: %v", err)
		}
	}
	if maxMintEnv, ok := os.LookupEnv("MINTING_MAX_AMOUNT"); ok {
		maxMint, err := strconv.ParseUint(maxMintEnv, 10, 64)
		if err != nil {
			return ledger.Config{}, "", false, fmt.Errorf("invalid MINTING_MAX_AMOUNT: %v", err)
		}
		limits.MintingSettings.MaxAmount = maxMint
	}
	if maxMeltEnv, ok := os.LookupEnv("MELTING_MAX_AMOUNT"); ok {
		maxMelt, err := strconv.ParseUint(maxMeltEnv, 10, 64)
		if err != nil {
			return ledger.Config{}, "", false, fmt.Errorf("invalid MELTING_MAX_AMOUNT: %v", err)
		}
		limits.MeltingSettings.MaxAmount = maxMelt
	}
	limits.PegOutOnly = strings.ToLower(os.Getenv("PEG_OUT_ONLY")) == "true"

	mintInfo := nut06.MintInfo{
		Name:            os.Getenv("MINT_NAME"),
		Description:     os.Getenv("MINT_DESCRIPTION"),
		LongDescription: os.Getenv("MINT_DESCRIPTION_LONG"),
		Motd:            os.Getenv("MINT_MOTD"),
	}
	if contact := os.Getenv("MINT_CONTACT_INFO"); len(contact) > 0 {
		var infoArr [][]string
		if err := json.Unmarshal([]byte(contact), &infoArr); err != nil {
			return ledger.Config{}, "", false, fmt.Errorf("error parsing contact info: %v", err)
		}
		for _, info := range infoArr {
			mintInfo.Contact = append(mintInfo.Contact, nut06.ContactInfo{Method: info[0], Info: info[1]})
		}
	}

	debug := strings.ToLower(os.Getenv("LOG")) == "debug"

	return ledger.Config{
		DerivationPathIdx: uint32(derivationPathIdx),
		InputFeePpk:       uint(inputFeePpk),
		Limits:            limits,
		MintInfo:          mintInfo,
	}, path, debug, nil
}

func backendFromEnv() (lightning.Client, error) {
	switch os.Getenv("LIGHTNING_BACKEND") {
	case "FakeBackend", "":
		return &lightning.FakeBackend{}, nil
	default:
		return nil, fmt.Errorf("unsupported LIGHTNING_BACKEND %q: only FakeBackend is wired in this build", os.Getenv("LIGHTNING_BACKEND"))
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	config, path, debug, err := configFromEnv()
	if err != nil {
		log.Fatalf("error reading config: %v", err)
	}
	if err := os.MkdirAll(path, 0700); err != nil {
		log.Fatalf("error creating mint directory: %v", err)
	}

	logger, err := ledger.SetupLogger(path, debug)
	if err != nil {
		log.Fatalf("error setting up logger: %v", err)
	}

	var db storage.LedgerDB
	db, err = sqlite.InitSQLite(path)
	if err != nil {
		log.Fatalf("error starting mint database: %v", err)
	}
	defer db.Close()

	backend, err := backendFromEnv()
	if err != nil {
		log.Fatalf("error setting up lightning backend: %v", err)
	}

	engine, err := ledger.LoadEngine(db, backend, logger, config)
	if err != nil {
		log.Fatalf("error loading ledger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := engine.Recover(ctx); err != nil {
		log.Fatalf("error recovering pending melt quotes: %v", err)
	}

	log.Printf("mint ready, data at %v", path)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-c
	cancel()
	log.Println("shutting down")
}
