// Package lightning defines the port the ledger drives to settle quotes
// against a Lightning backend, plus a fake backend for tests and regtest-less
// development.
package lightning

import "context"

// State is the lifecycle state of an outgoing or incoming Lightning payment.
type State int

const (
	Unknown State = iota
	Succeeded
	Pending
	Failed
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "SUCCEEDED"
	case Pending:
		return "PENDING"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Client is the interface a Lightning backend implements so the ledger can
// request invoices, pay them out, and track settlement without depending on
// any particular node software.
type Client interface {
	ConnectionStatus() error

	// CreateInvoice requests a new incoming invoice for amount sats.
	CreateInvoice(amount uint64) (Invoice, error)
	// InvoiceStatus looks up an invoice the backend issued by payment hash.
	InvoiceStatus(hash string) (Invoice, error)

	// FeeReserve returns the fee, in sats, the backend wants reserved
	// against a payment of amount sats before attempting it.
	FeeReserve(amount uint64) uint64

	// SendPayment pays the given bolt11 request, refusing to pay more than
	// maxFee sats in routing fees.
	SendPayment(ctx context.Context, request string, maxFee uint64) (PaymentStatus, error)
	// PayPartialAmount pays amountMsat of a multi-part payment request.
	PayPartialAmount(ctx context.Context, request string, amountMsat, maxFee uint64) (PaymentStatus, error)
	// OutgoingPaymentStatus looks up the status of a payment this backend
	// has previously attempted, by payment hash.
	OutgoingPaymentStatus(ctx context.Context, hash string) (PaymentStatus, error)

	// SubscribeInvoice opens a subscription that streams updates for the
	// invoice with the given payment hash until it is settled or the
	// subscription is torn down.
	SubscribeInvoice(ctx context.Context, paymentHash string) (InvoiceSubscriptionClient, error)
}

// InvoiceSubscriptionClient streams updates for a single invoice.
type InvoiceSubscriptionClient interface {
	Recv() (Invoice, error)
}

// PaymentStatus reports the outcome of an outgoing payment attempt.
type PaymentStatus struct {
	Preimage      string
	PaymentStatus State
}

type Invoice struct {
	PaymentRequest string
	PaymentHash    string
	Preimage       string
	Settled        bool
	Amount         uint64
	Expiry         uint64
}
