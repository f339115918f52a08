package models

import "errors"

// Errors shared by the gateways, services and handlers
var (
	ErrProviderUnavailable = errors.New("wallet provider not available")
	ErrConnectionFailed    = errors.New("contract initialization failed")
	ErrUnsupportedNetwork  = errors.New("unsupported network")
	ErrWalletNotConnected  = errors.New("wallet not connected")

	ErrTransactionRejected = errors.New("transaction rejected")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrTransactionPending  = errors.New("transaction pending")

	ErrUploadFailed       = errors.New("content upload failed")
	ErrContentFetchFailed = errors.New("content fetch failed")

	ErrNotFound      = errors.New("not found")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidState  = errors.New("invalid state transition")
)

// ErrorKind names the taxonomy bucket of err for storage and API responses
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrConnectionFailed):
		return "connection_failed"
	case errors.Is(err, ErrUnsupportedNetwork):
		return "unsupported_network"
	case errors.Is(err, ErrTransactionPending):
		return "transaction_pending"
	case errors.Is(err, ErrTransactionRejected):
		return "transaction_rejected"
	case errors.Is(err, ErrTransactionReverted):
		return "transaction_reverted"
	case errors.Is(err, ErrUploadFailed):
		return "upload_failed"
	case errors.Is(err, ErrContentFetchFailed):
		return "content_fetch_failed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	default:
		return "internal"
	}
}

// PendingTxError reports a broadcast transaction whose outcome is not yet
// known. It matches ErrTransactionPending and unwraps to the wait error.
type PendingTxError struct {
	TxHash string
	Err    error
}

func (e *PendingTxError) Error() string {
	return "transaction " + e.TxHash + " pending: " + e.Err.Error()
}

func (e *PendingTxError) Is(target error) bool {
	return target == ErrTransactionPending
}

func (e *PendingTxError) Unwrap() error {
	return e.Err
}

// PendingTxHash returns the hash carried by a PendingTxError in err
func PendingTxHash(err error) (string, bool) {
	var pe *PendingTxError
	if errors.As(err, &pe) {
		return pe.TxHash, true
	}
	return "", false
}
