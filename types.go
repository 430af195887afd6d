package facetx

import "github.com/cockroachdb/errors"

// ErrorCode identifies the class of a facetx error. Codes are stable and are
// attached to the sentinel errors below as secondary errors.
type ErrorCode int

const (
	ErrCodeInvalidFacetField ErrorCode = iota + 1000
	ErrCodeInvalidOption
	ErrCodeInvalidExpression
	ErrCodeUnknownFacetValue
	ErrCodeCanceled
	ErrCodeIndexUnavailable
)

func (e ErrorCode) String() string {
	switch e {
	case ErrCodeInvalidFacetField:
		return "invalid facet field"
	case ErrCodeInvalidOption:
		return "invalid option"
	case ErrCodeInvalidExpression:
		return "invalid expression"
	case ErrCodeUnknownFacetValue:
		return "unknown facet value"
	case ErrCodeCanceled:
		return "canceled"
	case ErrCodeIndexUnavailable:
		return "index unavailable"
	}
	return "unknown error"
}

func newErrorWithCode(code ErrorCode, msg string) error {
	return errors.WithSecondaryError(errors.New(msg), errors.Newf("code: %d", int(code)))
}

// Sentinel errors. Match them with errors.Is; returned errors wrap them with
// the field or stage that failed.
var (
	// ErrInvalidFacetField rejects a FacetFieldInfo before any index work.
	ErrInvalidFacetField = newErrorWithCode(ErrCodeInvalidFacetField, "facetx: invalid facet field")

	// ErrInvalidOption rejects a SearchWithFacets argument, such as a negative top.
	ErrInvalidOption = newErrorWithCode(ErrCodeInvalidOption, "facetx: invalid option")

	// ErrInvalidExpression means the index cannot evaluate an expression node.
	ErrInvalidExpression = newErrorWithCode(ErrCodeInvalidExpression, "facetx: invalid expression")

	// ErrUnknownFacetValue means a value, typically a range id, does not
	// resolve against its field. Searches count such values as 0.
	ErrUnknownFacetValue = newErrorWithCode(ErrCodeUnknownFacetValue, "facetx: unknown facet value")

	// ErrCanceled is returned when the caller's context ends before the search
	// completes. Other requests sharing a cache population are unaffected.
	ErrCanceled = newErrorWithCode(ErrCodeCanceled, "facetx: canceled")

	// ErrIndexUnavailable marks failures of the index itself. The cache of
	// fields populated earlier stays valid.
	ErrIndexUnavailable = newErrorWithCode(ErrCodeIndexUnavailable, "facetx: index unavailable")
)
