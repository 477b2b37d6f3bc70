package entikit

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes (exported consts for IDE completion and type safety by convention)
const (
	CodeInvalidType       = "invalid_type"
	CodeRequired          = "required"
	CodeInvalidEnum       = "invalid_enum"
	CodeInvalidFormat     = "invalid_format"
	CodeNoMatchingVariant = "no_matching_variant"
	CodeTooSmall          = "too_small"
	CodeTooBig            = "too_big"
	CodeTooShort          = "too_short"
	CodeTooLong           = "too_long"
	CodePattern           = "pattern"
	CodeParseError        = "parse_error"
	CodeCustomRule        = "custom_rule"
	CodeUnknownSerializer = "unknown_serializer"
)

// FieldError represents a single conversion or validation entry.
type FieldError struct {
	Path    string // Dotted field path (for example: items.2.price).
	Code    string // One of the codes listed above.
	Message string
	Cause   error // Optional: underlying error.
	// Params carries structured parameters (e.g., {"expected":"string", "got":"bool"})
	// for i18n and observability.
	Params map[string]any
	// Rule optionally records the rule name that produced this error.
	Rule string
}

// FieldErrors is a collection of field errors that implements error.
type FieldErrors []FieldError

// Error summarizes the first few entries.
func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(fe)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := fe[i]
		// e.g. invalid_type at price
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendFieldErrors appends entries to the destination, initializing the slice
// when needed.
func AppendFieldErrors(dst FieldErrors, more ...FieldError) FieldErrors {
	if dst == nil {
		dst = FieldErrors{}
	}
	dst = append(dst, more...)
	return dst
}

// AsFieldErrors extracts FieldErrors from an error using errors.As internally.
func AsFieldErrors(err error) (FieldErrors, bool) {
	if err == nil {
		return nil, false
	}
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Rebase returns a copy of the errors with every path re-rooted under base.
// Used when a nested pipeline's errors surface through a parent field.
func (fe FieldErrors) Rebase(base string) FieldErrors {
	if base == "" || len(fe) == 0 {
		return fe
	}
	out := make(FieldErrors, len(fe))
	for i, it := range fe {
		it.Path = JoinPath(base, it.Path)
		out[i] = it
	}
	return out
}

// SchemaDefinitionError reports malformed field descriptors, e.g. two primary
// fields. Raised at schema build time and never recovered.
type SchemaDefinitionError struct {
	Schema string
	Detail string
}

func (e *SchemaDefinitionError) Error() string {
	return fmt.Sprintf("entikit: schema %q: %s", e.Schema, e.Detail)
}

// NoMatchingUnionVariant reports a union field whose guards all rejected the
// input and that has no optional/nullable/default fallback.
type NoMatchingUnionVariant struct {
	Path  string
	Tried []string // Discriminants and candidate kinds in evaluation order.
}

func (e *NoMatchingUnionVariant) Error() string {
	return fmt.Sprintf("entikit: no union variant matched at %s (tried %s)", e.Path, strings.Join(e.Tried, ","))
}

// InvalidEnumValue reports an enum field receiving a value outside the declared
// set (and outside allowed labels, if labels are permitted).
type InvalidEnumValue struct {
	Path    string
	Value   any
	Allowed []any
}

func (e *InvalidEnumValue) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, a := range e.Allowed {
		allowed[i] = fmt.Sprintf("%v", a)
	}
	return fmt.Sprintf("entikit: invalid enum value %v at %s (allowed %s)", e.Value, e.Path, strings.Join(allowed, ","))
}

// ValidationFailed aggregates one or more FieldErrors. It is raised only by the
// throwing validation entry point; plain validation returns the list.
type ValidationFailed struct {
	Schema string
	Errors FieldErrors
}

func (e *ValidationFailed) Error() string {
	return fmt.Sprintf("entikit: validation of %q failed: %s", e.Schema, e.Errors.Error())
}

func (e *ValidationFailed) Unwrap() error { return e.Errors }
