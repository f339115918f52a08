package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ales-api/internal/chain"
	"github.com/ales-api/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

const (
	MaxTitleLength   = 200
	MaxContentBytes  = 1 << 20
	MaxMediaPerDraft = 20
)

var (
	// CIDv0 (base58 multihash) or CIDv1 (base32, lowercase)
	cidV0Regex = regexp.MustCompile(`^Qm[1-9A-HJ-NP-Za-km-z]{44}$`)
	cidV1Regex = regexp.MustCompile(`^b[a-z2-7]{58,}$`)
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Validator checks publish drafts and payment input
type Validator struct {
	maxTitleLength  int
	maxContentBytes int
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		maxTitleLength:  MaxTitleLength,
		maxContentBytes: MaxContentBytes,
	}
}

// ValidateDraft validates a draft before it enters the publish flow. An
// empty price is accepted and later normalized to zero.
func (v *Validator) ValidateDraft(draft *models.Draft) []ValidationError {
	var errors []ValidationError

	// Validate title
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		errors = append(errors, ValidationError{Field: "title", Message: "title is required"})
	} else if utf8.RuneCountInString(title) > v.maxTitleLength {
		errors = append(errors, ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("title exceeds maximum of %d characters", v.maxTitleLength),
		})
	}

	// Validate content
	if strings.TrimSpace(draft.Content) == "" {
		errors = append(errors, ValidationError{Field: "content", Message: "content is required"})
	} else if len(draft.Content) > v.maxContentBytes {
		errors = append(errors, ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("content exceeds maximum of %d bytes", v.maxContentBytes),
		})
	}

	// Validate price, ignored for free articles
	if !draft.IsFree && strings.TrimSpace(draft.Price) != "" {
		if _, err := chain.ParseEther(draft.Price); err != nil {
			errors = append(errors, ValidationError{
				Field:   "price",
				Message: "price must be a non-negative ETH amount with at most 18 decimals",
				Value:   draft.Price,
			})
		}
	}

	// Validate media references
	if len(draft.Media) > MaxMediaPerDraft {
		errors = append(errors, ValidationError{
			Field:   "media",
			Message: fmt.Sprintf("at most %d media attachments are allowed", MaxMediaPerDraft),
		})
	}
	for _, cid := range draft.Media {
		if !IsValidCID(cid) {
			errors = append(errors, ValidationError{Field: "media", Message: "invalid CID", Value: cid})
		}
	}

	return errors
}

// ValidateTipAmount requires a parseable amount greater than zero
func (v *Validator) ValidateTipAmount(amount string) []ValidationError {
	if strings.TrimSpace(amount) == "" {
		return []ValidationError{{Field: "amount", Message: "amount is required"}}
	}
	wei, err := chain.ParseEther(amount)
	if err != nil {
		return []ValidationError{{Field: "amount", Message: "amount must be a valid ETH amount", Value: amount}}
	}
	if wei.Sign() <= 0 {
		return []ValidationError{{Field: "amount", Message: "amount must be greater than zero", Value: amount}}
	}
	return nil
}

// NormalizeDraft trims the draft and settles its price: free articles and
// an empty price both become "0".
func NormalizeDraft(draft models.Draft) models.Draft {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Price = strings.TrimSpace(draft.Price)
	if draft.IsFree || draft.Price == "" {
		draft.Price = "0"
	}

	seen := make(map[string]bool, len(draft.Media))
	media := make([]string, 0, len(draft.Media))
	for _, cid := range draft.Media {
		if !seen[cid] {
			seen[cid] = true
			media = append(media, cid)
		}
	}
	draft.Media = media
	return draft
}

// IsValidCID checks for a CIDv0 or base32 CIDv1
func IsValidCID(s string) bool {
	return cidV0Regex.MatchString(s) || cidV1Regex.MatchString(s)
}

// IsValidAddress checks for a 20-byte hex address
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// IsValidUUID checks if a string is a valid UUID
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Messages flattens validation errors for logging and error wrapping
func Messages(errors []ValidationError) string {
	parts := make([]string, 0, len(errors))
	for _, e := range errors {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return strings.Join(parts, "; ")
}
