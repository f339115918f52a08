package validation

import (
	"strings"
	"testing"

	"github.com/ales-api/internal/models"
)

const (
	cidV0 = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	cidV1 = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"
)

func TestValidateDraft(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name       string
		draft      *models.Draft
		wantErrors int
		wantFields []string
	}{
		{
			name:       "valid priced draft",
			draft:      &models.Draft{Title: "Hello", Content: "<p>World</p>", Price: "0.01"},
			wantErrors: 0,
		},
		{
			name:       "empty price is accepted",
			draft:      &models.Draft{Title: "Hello", Content: "<p>World</p>", Price: ""},
			wantErrors: 0,
		},
		{
			name:       "free draft ignores an invalid price",
			draft:      &models.Draft{Title: "Hello", Content: "World", Price: "abc", IsFree: true},
			wantErrors: 0,
		},
		{
			name:       "valid media references",
			draft:      &models.Draft{Title: "Hello", Content: "World", Media: []string{cidV0, cidV1}},
			wantErrors: 0,
		},
		{
			name:       "missing title",
			draft:      &models.Draft{Title: "   ", Content: "World"},
			wantErrors: 1,
			wantFields: []string{"title"},
		},
		{
			name:       "title too long",
			draft:      &models.Draft{Title: strings.Repeat("a", MaxTitleLength+1), Content: "World"},
			wantErrors: 1,
			wantFields: []string{"title"},
		},
		{
			name:       "negative price",
			draft:      &models.Draft{Title: "Hello", Content: "World", Price: "-1"},
			wantErrors: 1,
			wantFields: []string{"price"},
		},
		{
			name:       "invalid media cid",
			draft:      &models.Draft{Title: "Hello", Content: "World", Media: []string{"not-a-cid"}},
			wantErrors: 1,
			wantFields: []string{"media"},
		},
		{
			name:       "multiple validation errors",
			draft:      &models.Draft{Price: "1.2.3"},
			wantErrors: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := validator.ValidateDraft(tt.draft)
			if len(errors) != tt.wantErrors {
				t.Errorf("ValidateDraft() got %d errors, want %d. Errors: %v", len(errors), tt.wantErrors, errors)
			}

			for _, wantField := range tt.wantFields {
				found := false
				for _, err := range errors {
					if err.Field == wantField {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("Expected error for field '%s' but not found", wantField)
				}
			}
		})
	}
}

func TestValidateTipAmount(t *testing.T) {
	validator := NewValidator()

	valid := []string{"0.001", "1", " 2.5 "}
	for _, amount := range valid {
		if errs := validator.ValidateTipAmount(amount); len(errs) != 0 {
			t.Errorf("ValidateTipAmount(%q) unexpected errors: %v", amount, errs)
		}
	}

	invalid := []string{"", "0", "0.0", "-0.1", "abc"}
	for _, amount := range invalid {
		if errs := validator.ValidateTipAmount(amount); len(errs) != 1 {
			t.Errorf("ValidateTipAmount(%q) expected 1 error, got %v", amount, errs)
		}
	}
}

func TestNormalizeDraft(t *testing.T) {
	tests := []struct {
		name      string
		draft     models.Draft
		wantPrice string
	}{
		{"empty price on paid draft", models.Draft{Title: "T", Price: ""}, "0"},
		{"free draft forces zero", models.Draft{Title: "T", Price: "1.5", IsFree: true}, "0"},
		{"price kept", models.Draft{Title: "T", Price: " 0.25 "}, "0.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDraft(tt.draft)
			if got.Price != tt.wantPrice {
				t.Errorf("Expected price %q, got %q", tt.wantPrice, got.Price)
			}
		})
	}

	got := NormalizeDraft(models.Draft{Title: "  spaced  ", Media: []string{cidV0, cidV0, cidV1}})
	if got.Title != "spaced" {
		t.Errorf("Expected trimmed title, got %q", got.Title)
	}
	if len(got.Media) != 2 {
		t.Errorf("Expected duplicate media removed, got %v", got.Media)
	}
}

func TestIsValidAddressAndUUID(t *testing.T) {
	if !IsValidAddress("0x2C7061B0942F4D0859988Ffa631cc188131E1fC1") {
		t.Error("Expected contract address to be valid")
	}
	if IsValidAddress("0x123") {
		t.Error("Short address should be invalid")
	}
	if !IsValidUUID("550e8400-e29b-41d4-a716-446655440000") {
		t.Error("Expected UUID to be valid")
	}
	if IsValidUUID("job-1") {
		t.Error("Non-UUID should be invalid")
	}
}
