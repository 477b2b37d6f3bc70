package entikit

// Direction selects which way a pipeline converts.
type Direction int

const (
	Decode Direction = iota // External neutral data -> entity value.
	Encode                  // Entity value -> external neutral data.
)

func (d Direction) String() string {
	switch d {
	case Decode:
		return "decode"
	case Encode:
		return "encode"
	default:
		return "direction(?)"
	}
}

// ConvertOpt bundles per-invocation conversion options. The zero value is the
// default behavior; a nil *ConvertOpt is treated as the zero value.
type ConvertOpt struct {
	// Parents is the ancestor chain for nested resolution: each nested decode
	// appends the entity under construction, innermost last.
	Parents []map[string]any
	// Groups filters conversion to fields carrying at least one of the given
	// visibility-group labels. Empty means no filtering.
	Groups []string
	// Loosely tolerates shape mismatches by coercing between obviously
	// compatible representations (numeric strings, 0/1 booleans, ...).
	Loosely bool
}

// WithParent returns a copy of the options with parent appended to the
// ancestor chain. The receiver is not modified; pipelines share options across
// sibling fields.
func (o *ConvertOpt) WithParent(parent map[string]any) *ConvertOpt {
	var out ConvertOpt
	if o != nil {
		out = *o
	}
	chain := make([]map[string]any, 0, len(out.Parents)+1)
	chain = append(chain, out.Parents...)
	chain = append(chain, parent)
	out.Parents = chain
	return &out
}
