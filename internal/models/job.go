package models

import (
	"time"
)

// PublishState represents a step of the publish flow
type PublishState string

const (
	PublishStateEditing    PublishState = "editing"
	PublishStateUploading  PublishState = "uploading_content"
	PublishStateSubmitting PublishState = "submitting_transaction"
	PublishStateConfirmed  PublishState = "confirmed"
	PublishStateFailed     PublishState = "failed"
)

// publishTransitions lists the allowed next states for each state
var publishTransitions = map[PublishState][]PublishState{
	PublishStateEditing:    {PublishStateUploading, PublishStateFailed},
	PublishStateUploading:  {PublishStateSubmitting, PublishStateFailed},
	PublishStateSubmitting: {PublishStateConfirmed, PublishStateFailed},
	PublishStateFailed:     {PublishStateEditing},
}

// CanTransition reports whether the flow may move from s to next
func (s PublishState) CanTransition(next PublishState) bool {
	for _, allowed := range publishTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Draft is the transient publish form
type Draft struct {
	Title   string   `json:"title" binding:"required"`
	Content string   `json:"content" binding:"required"`
	Price   string   `json:"price"` // ETH, empty means zero
	IsFree  bool     `json:"is_free"`
	Media   []string `json:"media,omitempty"` // CIDs of pinned attachments
}

// PublishJob records one publish attempt and where it stopped
type PublishJob struct {
	ID             string       `json:"job_id" db:"id"`
	IdempotencyKey string       `json:"idempotency_key,omitempty" db:"idempotency_key"`
	State          PublishState `json:"state" db:"state"`
	Draft          Draft        `json:"draft" db:"-"`
	DraftJSON      []byte       `json:"-" db:"draft"`
	ContentHash    string       `json:"content_hash,omitempty" db:"content_hash"`
	TxHash         string       `json:"tx_hash,omitempty" db:"tx_hash"`
	BlockNumber    uint64       `json:"block_number,omitempty" db:"block_number"`
	Attempts       int          `json:"attempts" db:"attempts"`
	ErrorKind      string       `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage   string       `json:"error,omitempty" db:"error_message"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
	ConfirmedAt    *time.Time   `json:"confirmed_at,omitempty" db:"confirmed_at"`
}

// Transition moves the job to next, rejecting moves the flow does not allow
func (j *PublishJob) Transition(next PublishState) error {
	if !j.State.CanTransition(next) {
		return ErrInvalidState
	}
	j.State = next
	j.UpdatedAt = time.Now()
	return nil
}

// Fail records err and moves the job to failed. The draft is left intact.
// A pending transaction keeps its hash so a retry can look it up.
func (j *PublishJob) Fail(err error) {
	if hash, ok := PendingTxHash(err); ok {
		j.TxHash = hash
	}
	j.State = PublishStateFailed
	j.ErrorKind = ErrorKind(err)
	j.ErrorMessage = err.Error()
	j.UpdatedAt = time.Now()
}

// Confirm records the receipt and discards the draft body
func (j *PublishJob) Confirm(receipt *TxReceipt) {
	now := time.Now()
	j.State = PublishStateConfirmed
	j.TxHash = receipt.TxHash
	j.BlockNumber = receipt.BlockNumber
	j.ErrorKind = ""
	j.ErrorMessage = ""
	j.Draft = Draft{Title: j.Draft.Title, IsFree: j.Draft.IsFree, Price: j.Draft.Price}
	j.UpdatedAt = now
	j.ConfirmedAt = &now
}

// AwaitingReceipt reports whether the job failed after broadcasting a
// transaction whose outcome was never observed
func (j *PublishJob) AwaitingReceipt() bool {
	return j.State == PublishStateFailed && j.TxHash != ""
}

// TxReceipt is the subset of a mined receipt the API reports
type TxReceipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
}

// PaymentResult is returned after a purchase or tip is confirmed
type PaymentResult struct {
	ArticleID uint64    `json:"article_id"`
	Amount    string    `json:"amount"` // ETH
	Receipt   TxReceipt `json:"receipt"`
	Message   string    `json:"message"`
}
