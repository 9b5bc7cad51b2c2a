package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/elnosh/gonuts-mint/cashu"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut04"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut05"
	"github.com/elnosh/gonuts-mint/crypto"
	"github.com/elnosh/gonuts-mint/internal/storage"
	"github.com/elnosh/gonuts-mint/internal/storage/sqlite"
	"github.com/elnosh/gonuts-mint/lightning"
)

func newTestEngine(t *testing.T) (*Engine, *lightning.FakeBackend) {
	t.Helper()

	db, err := sqlite.InitSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("error setting up test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	backend := &lightning.FakeBackend{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine, err := LoadEngine(db, backend, logger, Config{})
	if err != nil {
		t.Fatalf("error loading engine: %v", err)
	}
	return engine, backend
}

func randomSecret(t *testing.T) string {
	t.Helper()
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("error generating random secret: %v", err)
	}
	return hex.EncodeToString(b)
}

// blindOutputs builds blinded messages for the given amounts against
// keysetId, returning the secrets and blinding factors needed to unblind
// whatever signatures the mint returns for them.
func blindOutputs(t *testing.T, keysetId string, amounts []uint64) (cashu.BlindedMessages, []string, []*secp256k1.PrivateKey) {
	t.Helper()

	outputs := make(cashu.BlindedMessages, len(amounts))
	secrets := make([]string, len(amounts))
	rs := make([]*secp256k1.PrivateKey, len(amounts))

	for i, amount := range amounts {
		secret := randomSecret(t)
		var rBytes [32]byte
		if _, err := rand.Read(rBytes[:]); err != nil {
			t.Fatalf("error generating blinding factor: %v", err)
		}

		B_, r := crypto.BlindMessage([]byte(secret), rBytes[:])
		outputs[i] = cashu.NewBlindedMessage(keysetId, amount, B_)
		secrets[i] = secret
		rs[i] = r
	}

	return outputs, secrets, rs
}

// unblindProofs turns signatures the mint issued for blindOutputs' return
// values into spendable proofs.
func unblindProofs(t *testing.T, sigs cashu.BlindedSignatures, secrets []string, rs []*secp256k1.PrivateKey, keys map[uint64]crypto.KeyPair) cashu.Proofs {
	t.Helper()

	proofs := make(cashu.Proofs, len(sigs))
	for i, sig := range sigs {
		C_bytes, err := hex.DecodeString(sig.C_)
		if err != nil {
			t.Fatalf("error decoding signature: %v", err)
		}
		C_, err := secp256k1.ParsePubKey(C_bytes)
		if err != nil {
			t.Fatalf("error parsing signature: %v", err)
		}

		key, ok := keys[sig.Amount]
		if !ok {
			t.Fatalf("no key for amount %v", sig.Amount)
		}
		C := crypto.UnblindSignature(C_, rs[i], key.PublicKey)

		proofs[i] = cashu.Proof{
			Amount: sig.Amount,
			Id:     sig.Id,
			Secret: secrets[i],
			C:      hex.EncodeToString(C.SerializeCompressed()),
		}
	}
	return proofs
}

// mintProofs takes a quote through payment and issuance, returning
// spendable proofs worth amount sats.
func mintProofs(t *testing.T, e *Engine, amount uint64) cashu.Proofs {
	t.Helper()

	quote, err := e.RequestMintQuote(BOLT11_METHOD, amount, cashuSat)
	if err != nil {
		t.Fatalf("error requesting mint quote: %v", err)
	}

	active, ok := e.keysets.Active(cashuSat)
	if !ok {
		t.Fatal("no active keyset for sat")
	}

	outputs, secrets, rs := blindOutputs(t, active.Id, cashu.AmountSplit(amount))
	sigs, err := e.MintTokens(BOLT11_METHOD, quote.Id, outputs)
	if err != nil {
		t.Fatalf("error minting tokens: %v", err)
	}

	return unblindProofs(t, sigs, secrets, rs, active.Keys)
}

func TestRequestMintQuote(t *testing.T) {
	e, backend := newTestEngine(t)

	quote, err := e.RequestMintQuote(BOLT11_METHOD, 1000, cashuSat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.State != nut04.Unpaid {
		t.Fatalf("expected new quote to be unpaid, got %v", quote.State)
	}
	if len(backend.Invoices) != 1 {
		t.Fatalf("expected backend to have 1 invoice, got %v", len(backend.Invoices))
	}
}

func TestRequestMintQuoteRejectsUnsupportedUnit(t *testing.T) {
	e, _ := newTestEngine(t)

	if _, err := e.RequestMintQuote(BOLT11_METHOD, 1000, "usd"); err == nil {
		t.Fatal("expected error for unsupported unit")
	}
}

func TestMintTokensSignaturesCarryValidDLEQ(t *testing.T) {
	e, _ := newTestEngine(t)

	const amount = 16
	quote, err := e.RequestMintQuote(BOLT11_METHOD, amount, cashuSat)
	if err != nil {
		t.Fatalf("error requesting mint quote: %v", err)
	}
	active, _ := e.keysets.Active(cashuSat)

	outputs, _, _ := blindOutputs(t, active.Id, cashu.AmountSplit(amount))
	sigs, err := e.MintTokens(BOLT11_METHOD, quote.Id, outputs)
	if err != nil {
		t.Fatalf("error minting tokens: %v", err)
	}

	for i, sig := range sigs {
		if sig.DLEQ == nil {
			t.Fatalf("expected signature %v to carry a DLEQ proof", i)
		}

		B_bytes, _ := hex.DecodeString(outputs[i].B_)
		B_, err := secp256k1.ParsePubKey(B_bytes)
		if err != nil {
			t.Fatalf("error parsing B_: %v", err)
		}
		C_bytes, _ := hex.DecodeString(sig.C_)
		C_, err := secp256k1.ParsePubKey(C_bytes)
		if err != nil {
			t.Fatalf("error parsing C_: %v", err)
		}
		eBytes, _ := hex.DecodeString(sig.DLEQ.E)
		sBytes, _ := hex.DecodeString(sig.DLEQ.S)
		dleqE := secp256k1.PrivKeyFromBytes(eBytes)
		dleqS := secp256k1.PrivKeyFromBytes(sBytes)

		key := active.Keys[sig.Amount]
		if !crypto.VerifyDLEQ(dleqE, dleqS, key.PublicKey, B_, C_) {
			t.Fatalf("DLEQ proof for amount %v failed to verify", sig.Amount)
		}
	}
}

func TestMintTokensIssuesSignaturesAndMarksQuoteIssued(t *testing.T) {
	e, _ := newTestEngine(t)

	const amount = 64
	quote, err := e.RequestMintQuote(BOLT11_METHOD, amount, cashuSat)
	if err != nil {
		t.Fatalf("error requesting mint quote: %v", err)
	}
	active, _ := e.keysets.Active(cashuSat)

	outputs, secrets, rs := blindOutputs(t, active.Id, cashu.AmountSplit(amount))
	sigs, err := e.MintTokens(BOLT11_METHOD, quote.Id, outputs)
	if err != nil {
		t.Fatalf("error minting tokens: %v", err)
	}
	proofs := unblindProofs(t, sigs, secrets, rs, active.Keys)
	if proofs.Amount() != amount {
		t.Fatalf("expected proofs worth %v, got %v", amount, proofs.Amount())
	}

	final, err := e.db.GetMintQuote(quote.Id)
	if err != nil {
		t.Fatalf("error fetching mint quote: %v", err)
	}
	if final.State != nut04.Issued {
		t.Fatalf("expected quote to be marked issued, got %v", final.State)
	}
}

func TestMintTokensRejectsDoubleIssuance(t *testing.T) {
	e, _ := newTestEngine(t)

	const amount = 8
	quote, err := e.RequestMintQuote(BOLT11_METHOD, amount, cashuSat)
	if err != nil {
		t.Fatalf("error requesting mint quote: %v", err)
	}
	active, _ := e.keysets.Active(cashuSat)

	outputs, _, _ := blindOutputs(t, active.Id, cashu.AmountSplit(amount))
	if _, err := e.MintTokens(BOLT11_METHOD, quote.Id, outputs); err != nil {
		t.Fatalf("error minting tokens: %v", err)
	}

	moreOutputs, _, _ := blindOutputs(t, active.Id, cashu.AmountSplit(amount))
	if _, err := e.MintTokens(BOLT11_METHOD, quote.Id, moreOutputs); err == nil {
		t.Fatal("expected second mint attempt against an issued quote to fail")
	}
}

func TestMintTokensRejectsUnpaidQuote(t *testing.T) {
	e, backend := newTestEngine(t)

	const amount = 8
	quote, err := e.RequestMintQuote(BOLT11_METHOD, amount, cashuSat)
	if err != nil {
		t.Fatalf("error requesting mint quote: %v", err)
	}
	backend.SetInvoiceStatus(quote.PaymentHash, lightning.Failed)

	active, _ := e.keysets.Active(cashuSat)
	outputs, _, _ := blindOutputs(t, active.Id, cashu.AmountSplit(amount))
	if _, err := e.MintTokens(BOLT11_METHOD, quote.Id, outputs); err == nil {
		t.Fatal("expected mint against unpaid quote to fail")
	}
}

func TestMintTokensRejectsExpiredQuote(t *testing.T) {
	e, backend := newTestEngine(t)

	const amount = 8
	invoice, err := backend.CreateInvoice(amount)
	if err != nil {
		t.Fatalf("error creating invoice: %v", err)
	}

	quote := storage.MintQuote{
		Id:             "expired-quote",
		Amount:         amount,
		Unit:           cashuSat,
		PaymentRequest: invoice.PaymentRequest,
		PaymentHash:    invoice.PaymentHash,
		State:          nut04.Unpaid,
		Expiry:         uint64(time.Now().Add(-time.Minute).Unix()),
	}
	if err := e.db.SaveMintQuote(quote); err != nil {
		t.Fatalf("error saving mint quote: %v", err)
	}

	active, _ := e.keysets.Active(cashuSat)
	outputs, _, _ := blindOutputs(t, active.Id, cashu.AmountSplit(amount))
	if _, err := e.MintTokens(BOLT11_METHOD, quote.Id, outputs); err == nil {
		t.Fatal("expected mint against expired quote to fail")
	}
}

func TestMintTokensRejectsUnderMint(t *testing.T) {
	e, _ := newTestEngine(t)

	const amount = 8
	quote, err := e.RequestMintQuote(BOLT11_METHOD, amount, cashuSat)
	if err != nil {
		t.Fatalf("error requesting mint quote: %v", err)
	}
	active, _ := e.keysets.Active(cashuSat)

	outputs, _, _ := blindOutputs(t, active.Id, cashu.AmountSplit(amount/2))
	if _, err := e.MintTokens(BOLT11_METHOD, quote.Id, outputs); err == nil {
		t.Fatal("expected mint with outputs under quote amount to fail")
	}
}

func TestSwapPreservesValue(t *testing.T) {
	e, _ := newTestEngine(t)

	const amount = 32
	proofs := mintProofs(t, e, amount)

	active, _ := e.keysets.Active(cashuSat)
	outputs, secrets, rs := blindOutputs(t, active.Id, cashu.AmountSplit(amount))

	sigs, err := e.Swap(proofs, outputs)
	if err != nil {
		t.Fatalf("error swapping: %v", err)
	}
	newProofs := unblindProofs(t, sigs, secrets, rs, active.Keys)
	if newProofs.Amount() != amount {
		t.Fatalf("expected swap to preserve value %v, got %v", amount, newProofs.Amount())
	}

	states, err := e.ProofsStateCheck(ysOf(t, proofs))
	if err != nil {
		t.Fatalf("error checking proof state: %v", err)
	}
	for _, s := range states {
		if s.State.String() != "SPENT" {
			t.Fatalf("expected original proofs to be spent after swap, got %v", s.State)
		}
	}
}

func TestSwapRejectsAlreadySpentProofs(t *testing.T) {
	e, _ := newTestEngine(t)

	const amount = 16
	proofs := mintProofs(t, e, amount)
	active, _ := e.keysets.Active(cashuSat)

	outputs, _, _ := blindOutputs(t, active.Id, cashu.AmountSplit(amount))
	if _, err := e.Swap(proofs, outputs); err != nil {
		t.Fatalf("error swapping: %v", err)
	}

	moreOutputs, _, _ := blindOutputs(t, active.Id, cashu.AmountSplit(amount))
	if _, err := e.Swap(proofs, moreOutputs); err == nil {
		t.Fatal("expected swap of already-spent proofs to fail")
	}
}

func TestSwapRejectsInsufficientAmount(t *testing.T) {
	e, _ := newTestEngine(t)

	const amount = 16
	proofs := mintProofs(t, e, amount)
	active, _ := e.keysets.Active(cashuSat)

	outputs, _, _ := blindOutputs(t, active.Id, cashu.AmountSplit(amount*2))
	if _, err := e.Swap(proofs, outputs); err == nil {
		t.Fatal("expected swap requesting more value than provided to fail")
	}
}

func TestMeltTokensInternalSettlement(t *testing.T) {
	e, _ := newTestEngine(t)

	const amount = 500
	mintQuote, err := e.RequestMintQuote(BOLT11_METHOD, amount, cashuSat)
	if err != nil {
		t.Fatalf("error requesting mint quote: %v", err)
	}

	meltQuote, err := e.RequestMeltQuote(BOLT11_METHOD, mintQuote.PaymentRequest, cashuSat)
	if err != nil {
		t.Fatalf("error requesting melt quote: %v", err)
	}
	if meltQuote.FeeReserve != 0 {
		t.Fatalf("expected zero fee reserve for internally-settleable melt, got %v", meltQuote.FeeReserve)
	}

	proofs := mintProofs(t, e, amount)

	settled, _, err := e.MeltTokens(context.Background(), BOLT11_METHOD, meltQuote.Id, proofs, nil)
	if err != nil {
		t.Fatalf("error melting tokens: %v", err)
	}
	if settled.State != nut05.Paid {
		t.Fatalf("expected melt quote to settle as paid, got %v", settled.State)
	}

	finalMintQuote, err := e.GetMintQuoteState(BOLT11_METHOD, mintQuote.Id)
	if err != nil {
		t.Fatalf("error fetching mint quote: %v", err)
	}
	if finalMintQuote.State != nut04.Paid {
		t.Fatalf("expected mint quote settled internally to be paid, got %v", finalMintQuote.State)
	}
}

// TestMeltTokensInternalSettlementNeverCallsBackend drops every invoice
// record the backend knows about right before settling, so any call into
// the backend during internal settlement would fail with "invoice does not
// exist" and the test would fail too.
func TestMeltTokensInternalSettlementNeverCallsBackend(t *testing.T) {
	e, backend := newTestEngine(t)

	const amount = 500
	mintQuote, err := e.RequestMintQuote(BOLT11_METHOD, amount, cashuSat)
	if err != nil {
		t.Fatalf("error requesting mint quote: %v", err)
	}
	meltQuote, err := e.RequestMeltQuote(BOLT11_METHOD, mintQuote.PaymentRequest, cashuSat)
	if err != nil {
		t.Fatalf("error requesting melt quote: %v", err)
	}
	proofs := mintProofs(t, e, amount)

	backend.Invoices = nil

	settled, _, err := e.MeltTokens(context.Background(), BOLT11_METHOD, meltQuote.Id, proofs, nil)
	if err != nil {
		t.Fatalf("error melting tokens: %v", err)
	}
	if settled.State != nut05.Paid {
		t.Fatalf("expected melt quote to settle as paid, got %v", settled.State)
	}
}

func TestMeltTokensExternalPaymentSucceedsAndReturnsChange(t *testing.T) {
	e, _ := newTestEngine(t)

	const spendAmount = 100
	proofs := mintProofs(t, e, spendAmount)

	invoiceReq, _, _, err := lightning.CreateFakeInvoice(50, false)
	if err != nil {
		t.Fatalf("error creating invoice: %v", err)
	}
	meltQuote, err := e.RequestMeltQuote(BOLT11_METHOD, invoiceReq, cashuSat)
	if err != nil {
		t.Fatalf("error requesting melt quote: %v", err)
	}

	active, _ := e.keysets.Active(cashuSat)
	overpaid := spendAmount - meltQuote.Amount - meltQuote.FeeReserve
	changeOutputs, changeSecrets, changeRs := blindOutputs(t, active.Id, cashu.AmountSplit(overpaid))

	settled, change, err := e.MeltTokens(context.Background(), BOLT11_METHOD, meltQuote.Id, proofs, changeOutputs)
	if err != nil {
		t.Fatalf("error melting tokens: %v", err)
	}
	if settled.State != nut05.Paid {
		t.Fatalf("expected melt to succeed, got state %v", settled.State)
	}
	if change.Amount() == 0 {
		t.Fatal("expected change for overpaid amount")
	}

	changeProofs := unblindProofs(t, change, changeSecrets, changeRs, active.Keys)
	if changeProofs.Amount() != change.Amount() {
		t.Fatalf("change proofs amount mismatch: %v vs %v", changeProofs.Amount(), change.Amount())
	}
}

func TestMeltTokensFailedPaymentReleasesProofs(t *testing.T) {
	e, _ := newTestEngine(t)

	const spendAmount = 50
	proofs := mintProofs(t, e, spendAmount)

	invoiceReq, _, _, err := lightning.CreateFakeInvoice(spendAmount, true)
	if err != nil {
		t.Fatalf("error creating invoice: %v", err)
	}
	meltQuote, err := e.RequestMeltQuote(BOLT11_METHOD, invoiceReq, cashuSat)
	if err != nil {
		t.Fatalf("error requesting melt quote: %v", err)
	}

	settled, _, err := e.MeltTokens(context.Background(), BOLT11_METHOD, meltQuote.Id, proofs, nil)
	if err != nil {
		t.Fatalf("error melting tokens: %v", err)
	}
	if settled.State != nut05.Unpaid {
		t.Fatalf("expected failed payment to leave melt quote unpaid, got %v", settled.State)
	}

	states, err := e.ProofsStateCheck(ysOf(t, proofs))
	if err != nil {
		t.Fatalf("error checking proof state: %v", err)
	}
	for _, s := range states {
		if s.State.String() != "UNSPENT" {
			t.Fatalf("expected proofs released after failed payment to be unspent, got %v", s.State)
		}
	}

	// the same proofs should now be usable again
	active, _ := e.keysets.Active(cashuSat)
	outputs, _, _ := blindOutputs(t, active.Id, cashu.AmountSplit(spendAmount))
	if _, err := e.Swap(proofs, outputs); err != nil {
		t.Fatalf("expected released proofs to be spendable again, got error: %v", err)
	}
}

func TestRestoreSignaturesOnlyReturnsSignedOutputs(t *testing.T) {
	e, _ := newTestEngine(t)

	const amount = 4
	quote, err := e.RequestMintQuote(BOLT11_METHOD, amount, cashuSat)
	if err != nil {
		t.Fatalf("error requesting mint quote: %v", err)
	}
	active, _ := e.keysets.Active(cashuSat)

	signedOutputs, _, _ := blindOutputs(t, active.Id, cashu.AmountSplit(amount))
	if _, err := e.MintTokens(BOLT11_METHOD, quote.Id, signedOutputs); err != nil {
		t.Fatalf("error minting tokens: %v", err)
	}

	unsignedOutputs, _, _ := blindOutputs(t, active.Id, []uint64{amount})
	probe := append(cashu.BlindedMessages{}, signedOutputs...)
	probe = append(probe, unsignedOutputs...)

	restoredOutputs, restoredSigs, err := e.RestoreSignatures(probe)
	if err != nil {
		t.Fatalf("error restoring signatures: %v", err)
	}
	if len(restoredOutputs) != len(signedOutputs) {
		t.Fatalf("expected %v restored outputs, got %v", len(signedOutputs), len(restoredOutputs))
	}
	if len(restoredSigs) != len(signedOutputs) {
		t.Fatalf("expected %v restored signatures, got %v", len(signedOutputs), len(restoredSigs))
	}
}

func TestRecoverSettlesPaymentThatSucceededWhileDown(t *testing.T) {
	e, backend := newTestEngine(t)

	const spendAmount = 50
	proofs := mintProofs(t, e, spendAmount)

	invoiceReq, _, paymentHash, err := lightning.CreateFakeInvoice(spendAmount, false)
	if err != nil {
		t.Fatalf("error creating invoice: %v", err)
	}
	meltQuote, err := e.RequestMeltQuote(BOLT11_METHOD, invoiceReq, cashuSat)
	if err != nil {
		t.Fatalf("error requesting melt quote: %v", err)
	}

	if err := e.db.AddPendingProofs(proofs, meltQuote.Id); err != nil {
		t.Fatalf("error reserving proofs: %v", err)
	}
	if err := e.db.UpdateMeltQuote(meltQuote.Id, "", nut05.Pending); err != nil {
		t.Fatalf("error marking melt quote pending: %v", err)
	}
	backend.Invoices = append(backend.Invoices, lightning.FakeBackendInvoice{
		PaymentHash: paymentHash,
		Preimage:    lightning.FakePreimage,
		Status:      lightning.Succeeded,
	})

	if err := e.Recover(context.Background()); err != nil {
		t.Fatalf("error recovering: %v", err)
	}

	final, err := e.db.GetMeltQuote(meltQuote.Id)
	if err != nil {
		t.Fatalf("error fetching melt quote: %v", err)
	}
	if final.State != nut05.Paid {
		t.Fatalf("expected recovery to settle the melt quote as paid, got %v", final.State)
	}
}

func TestRecoverReleasesProofsForPaymentThatFailedWhileDown(t *testing.T) {
	e, backend := newTestEngine(t)

	const spendAmount = 50
	proofs := mintProofs(t, e, spendAmount)

	invoiceReq, _, paymentHash, err := lightning.CreateFakeInvoice(spendAmount, false)
	if err != nil {
		t.Fatalf("error creating invoice: %v", err)
	}
	meltQuote, err := e.RequestMeltQuote(BOLT11_METHOD, invoiceReq, cashuSat)
	if err != nil {
		t.Fatalf("error requesting melt quote: %v", err)
	}

	if err := e.db.AddPendingProofs(proofs, meltQuote.Id); err != nil {
		t.Fatalf("error reserving proofs: %v", err)
	}
	if err := e.db.UpdateMeltQuote(meltQuote.Id, "", nut05.Pending); err != nil {
		t.Fatalf("error marking melt quote pending: %v", err)
	}
	backend.Invoices = append(backend.Invoices, lightning.FakeBackendInvoice{
		PaymentHash: paymentHash,
		Preimage:    lightning.FakePreimage,
		Status:      lightning.Failed,
	})

	if err := e.Recover(context.Background()); err != nil {
		t.Fatalf("error recovering: %v", err)
	}

	final, err := e.db.GetMeltQuote(meltQuote.Id)
	if err != nil {
		t.Fatalf("error fetching melt quote: %v", err)
	}
	if final.State != nut05.Unpaid {
		t.Fatalf("expected recovery to release the melt quote back to unpaid, got %v", final.State)
	}
}

func TestInputFeesZeroForZeroFeeKeyset(t *testing.T) {
	e, _ := newTestEngine(t)
	active, _ := e.keysets.Active(cashuSat)

	proofs := cashu.Proofs{
		{Amount: 1, Id: active.Id},
		{Amount: 2, Id: active.Id},
		{Amount: 4, Id: active.Id},
	}

	fees := e.InputFees(proofs)
	if fees != 0 {
		t.Fatalf("expected zero fees for a zero input-fee-ppk keyset, got %v", fees)
	}
}

// TestChangePromisesSignsLargestAmountsWhenOutputsAreScarce checks that when
// a wallet supplies fewer blank outputs than there are change denominations,
// the mint signs the largest denominations first so as much of the
// overpaid fee as possible is returned, per NUT-08's "return as much as
// possible". 13 splits into [8, 4, 1]; with a single output only the 8
// should be signed.
func TestChangePromisesSignsLargestAmountsWhenOutputsAreScarce(t *testing.T) {
	e, _ := newTestEngine(t)
	active, _ := e.keysets.Active(cashuSat)

	outputs, _, _ := blindOutputs(t, active.Id, []uint64{0})
	sigs, err := e.changePromises(13, outputs)
	if err != nil {
		t.Fatalf("error generating change promises: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("expected 1 change signature, got %v", len(sigs))
	}
	if sigs[0].Amount != 8 {
		t.Fatalf("expected the largest denomination 8 to be signed, got %v", sigs[0].Amount)
	}
}

func ysOf(t *testing.T, proofs cashu.Proofs) []string {
	t.Helper()
	ys := make([]string, len(proofs))
	for i, p := range proofs {
		y := crypto.HashToCurve([]byte(p.Secret))
		ys[i] = hex.EncodeToString(y.SerializeCompressed())
	}
	return ys
}
