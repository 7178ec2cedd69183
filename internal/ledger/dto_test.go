package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() PostingInput {
	return PostingInput{
		Description:  "Office rent March",
		Date:         time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Currency:     "AED",
		ExchangeRate: decimal.NewFromInt(1),
		Source:       SourceManual,
		CreatedBy:    7,
		Lines: []PostingLineInput{
			{AccountID: 1, Debit: decimal.NewFromInt(100)},
			{AccountID: 2, Credit: decimal.NewFromInt(100)},
		},
	}
}

func TestPostingInputValidateOK(t *testing.T) {
	require.NoError(t, validInput().Validate())
}

func TestPostingInputValidateUnbalanced(t *testing.T) {
	input := validInput()
	input.Lines[1].Credit = decimal.NewFromInt(90)

	err := input.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	found := false
	for _, reason := range verr.Reasons {
		if reason.Field == "total" {
			found = true
		}
	}
	assert.True(t, found, "expected an entry-level balance failure, got %v", verr.Reasons)
}

func TestPostingInputValidateWithinTolerance(t *testing.T) {
	input := validInput()
	input.Lines[1].Credit = decimal.RequireFromString("99.995")
	require.NoError(t, input.Validate())
}

func TestPostingInputValidateSingleLine(t *testing.T) {
	input := validInput()
	input.Lines = input.Lines[:1]

	err := input.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestPostingInputValidateCollectsAllFailures(t *testing.T) {
	input := validInput()
	input.Currency = ""
	input.Lines[0].Debit = decimal.NewFromInt(-5)
	input.Lines[1].Debit = decimal.NewFromInt(10) // both sides set

	err := input.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.GreaterOrEqual(t, len(verr.Reasons), 3)
}

func TestPostingInputValidateBothSidesZero(t *testing.T) {
	input := validInput()
	input.Lines[0].Debit = decimal.Zero

	err := input.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestFormatDocumentNo(t *testing.T) {
	assert.Equal(t, "JE-2025-000001", FormatDocumentNo("JE", 2025, 1))
	assert.Equal(t, "TXN-2025-012345", FormatDocumentNo("TXN", 2025, 12345))
}
