/*
errors.go - Error and warning types for the entitlement pool engine

PURPOSE:
  All engine failure modes in one place. The engine distinguishes two
  severities:

  1. Warnings - data issues in the processed lines/groups. These never
     abort a batch: the affected line or group is skipped or clamped and
     a Warning is returned alongside the results for the caller to
     surface, retry, or ignore.
  2. Errors - structurally invalid input from the caller (e.g. a
     redemption request naming a line the caller never supplied). These
     are rejected outright.

WARNING KINDS:
  missing_product_reference  - line cannot be grouped; that line skipped
  invalid_configuration      - negative/unparseable settings; treated as
                               not eligible
  insufficient_pool_balance  - redemption exceeds pool remaining; clamped
                               at zero
  malformed_deadline         - stored timestamp unparseable; entry kept in
                               the pool sum but excluded from ordering

USAGE:
  Callers match sentinel errors with errors.Is():

    if errors.Is(err, engine.ErrUnknownRedemptionLine) { ... }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownRedemptionLine is returned when a redemption request
	// references a line that is not in the supplied ledger. This is a
	// caller error, not a data issue.
	ErrUnknownRedemptionLine = errors.New("redemption request references unknown line")

	// ErrNegativeRedemption is returned when a redemption request carries
	// a negative quantity. Fulfilled quantities are never negative.
	ErrNegativeRedemption = errors.New("redemption quantity is negative")
)

// UnknownLineError carries the offending line identifier.
type UnknownLineError struct {
	LineID LineID
}

func (e *UnknownLineError) Error() string {
	return fmt.Sprintf("redemption request references unknown line %q", e.LineID)
}

func (e *UnknownLineError) Unwrap() error {
	return ErrUnknownRedemptionLine
}

// =============================================================================
// WARNINGS - Per-line/per-group data issues, returned alongside results
// =============================================================================

type WarningCode string

const (
	WarnMissingProductReference WarningCode = "missing_product_reference"
	WarnInvalidConfiguration    WarningCode = "invalid_configuration"
	WarnInsufficientPoolBalance WarningCode = "insufficient_pool_balance"
	WarnMalformedDeadline       WarningCode = "malformed_deadline"
)

// Warning reports a data issue found while processing one line or group.
// One group's warnings never prevent other groups in the same batch from
// being processed.
type Warning struct {
	Code      WarningCode
	LineID    LineID    // empty for group-level warnings
	ProductID ProductID // empty for line-level warnings without a product
	Message   string
}

func (w Warning) String() string {
	switch {
	case w.LineID != "" && w.ProductID != "":
		return fmt.Sprintf("%s: line %s (product %s): %s", w.Code, w.LineID, w.ProductID, w.Message)
	case w.LineID != "":
		return fmt.Sprintf("%s: line %s: %s", w.Code, w.LineID, w.Message)
	case w.ProductID != "":
		return fmt.Sprintf("%s: product %s: %s", w.Code, w.ProductID, w.Message)
	default:
		return fmt.Sprintf("%s: %s", w.Code, w.Message)
	}
}
