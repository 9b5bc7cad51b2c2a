package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	decodepay "github.com/nbd-wtf/ln-decodepay"

	"github.com/elnosh/gonuts-mint/cashu"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut04"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut05"
	"github.com/elnosh/gonuts-mint/cashu/nuts/nut11"
	"github.com/elnosh/gonuts-mint/crypto"
	"github.com/elnosh/gonuts-mint/internal/storage"
	"github.com/elnosh/gonuts-mint/lightning"
)

// RequestMintQuote asks the Lightning backend for an invoice of amount and
// records a new, unpaid mint quote against it.
func (e *Engine) RequestMintQuote(method string, amount uint64, unit string) (storage.MintQuote, error) {
	if method != BOLT11_METHOD {
		return storage.MintQuote{}, cashu.PaymentMethodNotSupportedErr
	}
	if unit != cashuSat {
		return storage.MintQuote{}, cashu.BuildCashuError(fmt.Sprintf("unit '%v' not supported", unit), cashu.UnitErrCode)
	}

	if e.limits.MintingSettings.MaxAmount > 0 && amount > e.limits.MintingSettings.MaxAmount {
		return storage.MintQuote{}, cashu.MintAmountExceededErr
	}
	if e.limits.MaxBalance > 0 {
		balance, err := e.balance()
		if err != nil {
			return storage.MintQuote{}, cashu.BuildCashuError(err.Error(), cashu.DBErrCode)
		}
		if balance+amount > e.limits.MaxBalance {
			return storage.MintQuote{}, cashu.MintingDisabled
		}
	}

	e.logInfof("requesting invoice from lightning backend for %v sats", amount)
	invoice, err := e.backend.CreateInvoice(amount)
	if err != nil {
		return storage.MintQuote{}, cashu.BuildCashuError(fmt.Sprintf("could not generate invoice: %v", err), cashu.LightningBackendErrCode)
	}

	quoteId, err := cashu.GenerateRandomQuoteId()
	if err != nil {
		e.logErrorf("error generating random quote id: %v", err)
		return storage.MintQuote{}, cashu.StandardErr
	}

	mintQuote := storage.MintQuote{
		Id:             quoteId,
		Amount:         amount,
		Unit:           unit,
		PaymentRequest: invoice.PaymentRequest,
		PaymentHash:    invoice.PaymentHash,
		State:          nut04.Unpaid,
		Expiry:         invoice.Expiry,
	}
	if err := e.db.SaveMintQuote(mintQuote); err != nil {
		return storage.MintQuote{}, cashu.BuildCashuError(fmt.Sprintf("error saving mint quote: %v", err), cashu.DBErrCode)
	}

	e.publishMintQuote(mintQuote)
	return mintQuote, nil
}

// GetMintQuoteState returns a mint quote, polling the backend for a fresh
// payment status when the quote is still unpaid.
func (e *Engine) GetMintQuoteState(method, quoteId string) (storage.MintQuote, error) {
	if method != BOLT11_METHOD {
		return storage.MintQuote{}, cashu.PaymentMethodNotSupportedErr
	}

	mintQuote, err := e.db.GetMintQuote(quoteId)
	if err != nil {
		return storage.MintQuote{}, &cashu.QuoteNotExistErr
	}

	if mintQuote.State == nut04.Unpaid {
		status, err := e.backend.InvoiceStatus(mintQuote.PaymentHash)
		if err != nil {
			return storage.MintQuote{}, cashu.BuildCashuError(fmt.Sprintf("error getting invoice status: %v", err), cashu.LightningBackendErrCode)
		}
		if status.Settled {
			mintQuote.State = nut04.Paid
			if err := e.db.UpdateMintQuoteState(mintQuote.Id, mintQuote.State); err != nil {
				return storage.MintQuote{}, cashu.BuildCashuError(fmt.Sprintf("error updating mint quote: %v", err), cashu.DBErrCode)
			}
			e.publishMintQuote(mintQuote)
		}
	}

	return mintQuote, nil
}

// MintTokens signs outputs against a paid mint quote and marks it issued.
// The signatures are computed first; storing them and the issued-state flip
// then happen inside a single db transaction, so a crash can never leave
// signatures recorded for a quote that is not marked issued, or vice versa.
func (e *Engine) MintTokens(method, quoteId string, outputs cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	if method != BOLT11_METHOD {
		return nil, cashu.PaymentMethodNotSupportedErr
	}

	release := e.locks.Lock(quoteId)
	defer release()

	mintQuote, err := e.db.GetMintQuote(quoteId)
	if err != nil {
		return nil, &cashu.QuoteNotExistErr
	}

	if mintQuote.State == nut04.Unpaid {
		status, err := e.backend.InvoiceStatus(mintQuote.PaymentHash)
		if err != nil {
			return nil, cashu.BuildCashuError(fmt.Sprintf("error getting invoice status: %v", err), cashu.LightningBackendErrCode)
		}
		if !status.Settled {
			return nil, &cashu.MintQuoteRequestNotPaid
		}
		mintQuote.State = nut04.Paid
	}
	if mintQuote.State == nut04.Issued {
		return nil, &cashu.MintQuoteAlreadyIssued
	}
	if uint64(time.Now().Unix()) > mintQuote.Expiry {
		return nil, &cashu.MintQuoteExpired
	}

	var outputsAmount uint64
	B_s := make([]string, len(outputs))
	for i, bm := range outputs {
		outputsAmount += bm.Amount
		B_s[i] = bm.B_
	}
	if outputsAmount != mintQuote.Amount {
		return nil, &cashu.OutputsOverQuoteAmountErr
	}

	existing, err := e.db.GetBlindSignatures(B_s)
	if err != nil {
		return nil, cashu.BuildCashuError(err.Error(), cashu.DBErrCode)
	}
	if len(existing) > 0 {
		return nil, &cashu.BlindedMessageAlreadySigned
	}

	signatures, err := e.signBlindedMessages(outputs)
	if err != nil {
		return nil, err
	}

	if err := e.db.MintTokensTx(quoteId, B_s, signatures); err != nil {
		return nil, cashu.BuildCashuError(fmt.Sprintf("error minting tokens: %v", err), cashu.DBErrCode)
	}

	e.publishMintQuote(mintQuote)
	return signatures, nil
}

// RequestMeltQuote decodes the invoice to melt, reserves a Lightning fee
// budget for it, and records a melt quote. When an outstanding mint quote
// already exists for the same invoice, the pair can later settle without
// touching the Lightning backend, so the fee reserve is set to zero.
func (e *Engine) RequestMeltQuote(method, request, unit string) (storage.MeltQuote, error) {
	if method != BOLT11_METHOD {
		return storage.MeltQuote{}, cashu.PaymentMethodNotSupportedErr
	}
	if unit != cashuSat {
		return storage.MeltQuote{}, cashu.BuildCashuError(fmt.Sprintf("unit '%v' not supported", unit), cashu.UnitErrCode)
	}

	bolt11, err := decodepay.Decodepay(request)
	if err != nil {
		return storage.MeltQuote{}, cashu.BuildCashuError(fmt.Sprintf("invalid invoice: %v", err), cashu.MeltQuoteErrCode)
	}
	if bolt11.MSatoshi == 0 {
		return storage.MeltQuote{}, cashu.BuildCashuError("invoice has no amount", cashu.MeltQuoteErrCode)
	}
	satAmount := uint64(bolt11.MSatoshi) / 1000

	if e.limits.MeltingSettings.MaxAmount > 0 && satAmount > e.limits.MeltingSettings.MaxAmount {
		return storage.MeltQuote{}, cashu.MeltAmountExceededErr
	}

	quoteId, err := cashu.GenerateRandomQuoteId()
	if err != nil {
		e.logErrorf("error generating random quote id: %v", err)
		return storage.MeltQuote{}, cashu.StandardErr
	}

	fee := e.backend.FeeReserve(satAmount)
	meltQuote := storage.MeltQuote{
		Id:             quoteId,
		InvoiceRequest: request,
		Unit:           unit,
		PaymentHash:    bolt11.PaymentHash,
		Amount:         satAmount,
		FeeReserve:     fee,
		State:          nut05.Unpaid,
		Expiry:         uint64(time.Now().Add(time.Minute * QuoteExpiryMins).Unix()),
	}

	if mintQuote, err := e.db.GetMintQuoteByPaymentHash(bolt11.PaymentHash); err == nil {
		e.logDebugf("melt quote '%v' can be settled internally against mint quote '%v'", quoteId, mintQuote.Id)
		meltQuote.FeeReserve = 0
	}

	if err := e.db.SaveMeltQuote(meltQuote); err != nil {
		return storage.MeltQuote{}, cashu.BuildCashuError(fmt.Sprintf("error saving melt quote: %v", err), cashu.DBErrCode)
	}

	return meltQuote, nil
}

// GetMeltQuoteState returns a melt quote, resolving it against the backend
// when it is still pending a payment outcome.
func (e *Engine) GetMeltQuoteState(ctx context.Context, method, quoteId string) (storage.MeltQuote, error) {
	if method != BOLT11_METHOD {
		return storage.MeltQuote{}, cashu.PaymentMethodNotSupportedErr
	}

	meltQuote, err := e.db.GetMeltQuote(quoteId)
	if err != nil {
		return storage.MeltQuote{}, &cashu.QuoteNotExistErr
	}
	if meltQuote.State != nut05.Pending {
		return meltQuote, nil
	}

	status, statusErr := e.backend.OutgoingPaymentStatus(ctx, meltQuote.PaymentHash)
	switch status.PaymentStatus {
	case lightning.Succeeded:
		if err := e.finalizeMeltPaid(&meltQuote, status.Preimage); err != nil {
			return storage.MeltQuote{}, err
		}
	case lightning.Failed:
		if statusErr != nil && strings.Contains(statusErr.Error(), "payment failed") {
			if err := e.failMelt(&meltQuote); err != nil {
				return storage.MeltQuote{}, err
			}
		}
	}

	return meltQuote, nil
}

func (e *Engine) removePendingProofsForQuote(quoteId string) (cashu.Proofs, error) {
	dbproofs, err := e.db.GetPendingProofsByQuote(quoteId)
	if err != nil {
		return nil, err
	}

	proofs := make(cashu.Proofs, len(dbproofs))
	Ys := make([]string, len(dbproofs))
	for i, dbp := range dbproofs {
		Ys[i] = dbp.Y
		proofs[i] = cashu.Proof{Amount: dbp.Amount, Id: dbp.Id, Secret: dbp.Secret, C: dbp.C}
	}

	if err := e.db.RemovePendingProofs(Ys); err != nil {
		return nil, err
	}
	return proofs, nil
}

func (e *Engine) failMelt(meltQuote *storage.MeltQuote) error {
	meltQuote.State = nut05.Unpaid
	if err := e.db.UpdateMeltQuote(meltQuote.Id, "", meltQuote.State); err != nil {
		return cashu.BuildCashuError(fmt.Sprintf("error updating melt quote: %v", err), cashu.DBErrCode)
	}
	if _, err := e.removePendingProofsForQuote(meltQuote.Id); err != nil {
		return cashu.BuildCashuError(fmt.Sprintf("error removing pending proofs: %v", err), cashu.DBErrCode)
	}
	e.publishMeltQuote(*meltQuote)
	return nil
}

func (e *Engine) finalizeMeltPaid(meltQuote *storage.MeltQuote, preimage string) error {
	proofs, err := e.removePendingProofsForQuote(meltQuote.Id)
	if err != nil {
		return cashu.BuildCashuError(fmt.Sprintf("error removing pending proofs: %v", err), cashu.DBErrCode)
	}
	Ys := make([]string, len(proofs))
	for i, p := range proofs {
		Y := crypto.HashToCurve([]byte(p.Secret))
		Ys[i] = hex.EncodeToString(Y.SerializeCompressed())
	}
	if err := e.db.SwapTx(proofs, nil, nil); err != nil {
		return cashu.BuildCashuError(fmt.Sprintf("error invalidating proofs: %v", err), cashu.DBErrCode)
	}

	meltQuote.State = nut05.Paid
	meltQuote.Preimage = preimage
	if err := e.db.UpdateMeltQuote(meltQuote.Id, preimage, nut05.Paid); err != nil {
		return cashu.BuildCashuError(fmt.Sprintf("error updating melt quote: %v", err), cashu.DBErrCode)
	}
	e.publishMeltQuote(*meltQuote)
	return nil
}

// MeltTokens verifies proofs cover a melt quote's amount plus fees,
// reserves them as pending, and attempts payment. When a mint quote for
// the same invoice exists the pair settle internally without touching the
// Lightning backend; otherwise the backend is asked to pay outside of any
// db transaction, since network calls must never hold a lock a crash could
// leave stuck. Pending proof entries for this quote are cleared once the
// payment succeeds or fails; while the backend reports it in flight they
// stay reserved and the quote stays Pending.
func (e *Engine) MeltTokens(ctx context.Context, method, quoteId string, proofs cashu.Proofs, outputs cashu.BlindedMessages) (storage.MeltQuote, cashu.BlindedSignatures, error) {
	if method != BOLT11_METHOD {
		return storage.MeltQuote{}, nil, cashu.PaymentMethodNotSupportedErr
	}

	release := e.locks.Lock(quoteId)
	defer release()

	meltQuote, err := e.db.GetMeltQuote(quoteId)
	if err != nil {
		return storage.MeltQuote{}, nil, &cashu.QuoteNotExistErr
	}
	if meltQuote.State == nut05.Paid {
		return storage.MeltQuote{}, nil, &cashu.MeltQuoteAlreadyPaid
	}
	if meltQuote.State == nut05.Pending {
		return storage.MeltQuote{}, nil, &cashu.QuotePending
	}

	var proofsAmount uint64
	Ys := make([]string, len(proofs))
	for i, proof := range proofs {
		proofsAmount += proof.Amount
		Y := crypto.HashToCurve([]byte(proof.Secret))
		Ys[i] = hex.EncodeToString(Y.SerializeCompressed())
	}

	if err := e.verifyProofs(proofs, Ys); err != nil {
		return storage.MeltQuote{}, nil, err
	}
	if nut11.ProofsSigAll(proofs) {
		return storage.MeltQuote{}, nil, &nut11.SigAllOnlySwap
	}

	fees := e.InputFees(proofs)
	if proofsAmount < meltQuote.Amount+meltQuote.FeeReserve+fees {
		return storage.MeltQuote{}, nil, &cashu.InsufficientProofsAmount
	}

	if err := e.db.AddPendingProofs(proofs, meltQuote.Id); err != nil {
		return storage.MeltQuote{}, nil, cashu.BuildCashuError(fmt.Sprintf("error reserving proofs: %v", err), cashu.DBErrCode)
	}
	meltQuote.State = nut05.Pending
	if err := e.db.UpdateMeltQuote(meltQuote.Id, "", nut05.Pending); err != nil {
		return storage.MeltQuote{}, nil, cashu.BuildCashuError(fmt.Sprintf("error updating melt quote: %v", err), cashu.DBErrCode)
	}

	var change cashu.BlindedSignatures
	if mintQuote, err := e.db.GetMintQuoteByPaymentHash(meltQuote.PaymentHash); err == nil {
		e.logInfof("settling melt quote '%v' internally against mint quote '%v', no backend call", meltQuote.Id, mintQuote.Id)
		if err := e.db.SettleInternalTx(meltQuote.Id, mintQuote.Id, ""); err != nil {
			return storage.MeltQuote{}, nil, cashu.BuildCashuError(fmt.Sprintf("error settling quotes internally: %v", err), cashu.DBErrCode)
		}
		if err := e.settleProofs(Ys, proofs); err != nil {
			return storage.MeltQuote{}, nil, err
		}
		meltQuote.State = nut05.Paid
		meltQuote.Preimage = ""
		e.publishMeltQuote(meltQuote)
		return meltQuote, nil, nil
	}

	e.logInfof("attempting to pay invoice for melt quote '%v'", meltQuote.Id)
	paymentStatus, payErr := e.backend.SendPayment(ctx, meltQuote.InvoiceRequest, meltQuote.FeeReserve)
	if payErr != nil {
		if strings.Contains(payErr.Error(), "payment error") {
			if err := e.failMelt(&meltQuote); err != nil {
				return storage.MeltQuote{}, nil, err
			}
			return meltQuote, nil, nil
		}
		paymentStatus.PaymentStatus = lightning.Failed
	}

	switch paymentStatus.PaymentStatus {
	case lightning.Succeeded:
		if err := e.settleProofs(Ys, proofs); err != nil {
			return storage.MeltQuote{}, nil, err
		}
		meltQuote.State = nut05.Paid
		meltQuote.Preimage = paymentStatus.Preimage
		if err := e.db.UpdateMeltQuote(meltQuote.Id, paymentStatus.Preimage, nut05.Paid); err != nil {
			return storage.MeltQuote{}, nil, cashu.BuildCashuError(fmt.Sprintf("error updating melt quote: %v", err), cashu.DBErrCode)
		}
		if proofsAmount > meltQuote.Amount+fees && len(outputs) > 0 {
			change, err = e.changePromises(proofsAmount-meltQuote.Amount-fees, outputs)
			if err != nil {
				e.logErrorf("error generating change promises for quote '%v': %v", meltQuote.Id, err)
			}
		}
		e.publishMeltQuote(meltQuote)

	case lightning.Pending:
		e.logInfof("outgoing payment for melt quote '%v' is pending", meltQuote.Id)

	case lightning.Failed:
		status, statusErr := e.backend.OutgoingPaymentStatus(ctx, meltQuote.PaymentHash)
		switch status.PaymentStatus {
		case lightning.Succeeded:
			if err := e.settleProofs(Ys, proofs); err != nil {
				return storage.MeltQuote{}, nil, err
			}
			meltQuote.State = nut05.Paid
			meltQuote.Preimage = status.Preimage
			if err := e.db.UpdateMeltQuote(meltQuote.Id, status.Preimage, nut05.Paid); err != nil {
				return storage.MeltQuote{}, nil, cashu.BuildCashuError(fmt.Sprintf("error updating melt quote: %v", err), cashu.DBErrCode)
			}
			e.publishMeltQuote(meltQuote)
		case lightning.Pending:
			e.logInfof("outgoing payment for melt quote '%v' is pending", meltQuote.Id)
		default:
			if statusErr == nil || !strings.Contains(statusErr.Error(), "in flight") {
				if err := e.failMelt(&meltQuote); err != nil {
					return storage.MeltQuote{}, nil, err
				}
			}
		}
	}

	return meltQuote, change, nil
}

func (e *Engine) settleProofs(Ys []string, proofs cashu.Proofs) error {
	if err := e.db.RemovePendingProofs(Ys); err != nil {
		return cashu.BuildCashuError(fmt.Sprintf("error removing pending proofs: %v", err), cashu.DBErrCode)
	}
	if err := e.db.SwapTx(proofs, nil, nil); err != nil {
		return cashu.BuildCashuError(fmt.Sprintf("error invalidating proofs: %v", err), cashu.DBErrCode)
	}
	return nil
}
