package ledger

import (
	"context"

	"github.com/elnosh/gonuts-mint/lightning"
)

// Recover reconciles melt quotes left Pending by a crash mid-payment: it
// asks the Lightning backend for each one's outgoing payment status and
// finishes what the interrupted request started. A payment that
// succeeded gets its proofs invalidated and the quote marked paid; one
// that failed gets its reservation released so the proofs are spendable
// again; one still pending is left untouched for a later call to resolve.
func (e *Engine) Recover(ctx context.Context) error {
	pendingQuotes, err := e.db.GetPendingMeltQuotes()
	if err != nil {
		return err
	}

	for _, meltQuote := range pendingQuotes {
		status, statusErr := e.backend.OutgoingPaymentStatus(ctx, meltQuote.PaymentHash)
		switch status.PaymentStatus {
		case lightning.Succeeded:
			e.logInfof("recovery: payment for melt quote '%v' succeeded while mint was down, settling", meltQuote.Id)
			if err := e.finalizeMeltPaid(&meltQuote, status.Preimage); err != nil {
				e.logErrorf("recovery: could not finalize melt quote '%v': %v", meltQuote.Id, err)
			}
		case lightning.Failed:
			e.logInfof("recovery: payment for melt quote '%v' failed while mint was down, releasing proofs", meltQuote.Id)
			if err := e.failMelt(&meltQuote); err != nil {
				e.logErrorf("recovery: could not release proofs for melt quote '%v': %v", meltQuote.Id, err)
			}
		case lightning.Pending:
			e.logInfof("recovery: payment for melt quote '%v' is still in flight, leaving pending", meltQuote.Id)
		default:
			if statusErr != nil {
				e.logErrorf("recovery: could not get payment status for melt quote '%v': %v", meltQuote.Id, statusErr)
			}
		}
	}

	return nil
}
