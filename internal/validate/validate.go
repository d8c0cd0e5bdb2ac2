// Package validate bounds-checks parsed JSON documents before they are
// trusted. It guards against hostile structure (deep nesting, huge key
// counts, oversized strings); the byte-size cap that gates parsing in the
// first place lives in the store, not here.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Violation reasons, machine-readable.
const (
	ReasonDepth    = "depth_exceeded"
	ReasonKeys     = "key_count_exceeded"
	ReasonString   = "string_too_long"
	ReasonType     = "unsupported_type"
	ReasonEmpty    = "empty_document"
	ReasonEncoding = "invalid_encoding"
	ReasonSyntax   = "malformed_json"
)

// Limits bounds the structure of one JSON document. Zero values are not
// usable; callers build Limits from config.ValidationConfig.
type Limits struct {
	MaxDepth     int
	MaxKeys      int
	MaxStringLen int
}

// Violation reports which bound a document broke and the configured limit,
// so callers can produce an actionable diagnostic.
type Violation struct {
	Reason string
	Limit  int
	Detail string
}

func (v *Violation) Error() string { return v.Detail }

// AsViolation unwraps err into a *Violation if it is one.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// Document parses data and validates the result against lim. The input must
// be non-empty, valid UTF-8, and well-formed JSON; syntax errors are reported
// with their byte offset.
func Document(data []byte, lim Limits) error {
	if len(data) == 0 {
		return &Violation{Reason: ReasonEmpty, Detail: "empty JSON document"}
	}
	if !utf8.Valid(data) {
		return &Violation{Reason: ReasonEncoding, Detail: "invalid UTF-8 encoding in JSON document"}
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			return &Violation{
				Reason: ReasonSyntax,
				Detail: fmt.Sprintf("invalid JSON: %s at offset %d", syn.Error(), syn.Offset),
			}
		}
		return &Violation{Reason: ReasonSyntax, Detail: fmt.Sprintf("invalid JSON: %s", err)}
	}

	return Value(v, lim)
}

// Value validates an already-parsed JSON value against lim. It returns nil
// when every bound holds, or the first *Violation found. Traversal stops at
// the first broken bound; an attacker-supplied document is never walked
// further than necessary.
func Value(v any, lim Limits) error {
	w := &walker{lim: lim}
	return w.walk(v, 0)
}

// walker carries a single element counter through the whole traversal so the
// total-element bound applies document-wide, not per branch.
type walker struct {
	lim   Limits
	count int
}

func (w *walker) walk(v any, depth int) error {
	if depth > w.lim.MaxDepth {
		return &Violation{
			Reason: ReasonDepth,
			Limit:  w.lim.MaxDepth,
			Detail: fmt.Sprintf("JSON depth exceeds maximum (%d)", w.lim.MaxDepth),
		}
	}

	switch val := v.(type) {
	case map[string]any:
		for key, item := range val {
			if len(key) > w.lim.MaxStringLen {
				return &Violation{
					Reason: ReasonString,
					Limit:  w.lim.MaxStringLen,
					Detail: fmt.Sprintf("JSON key exceeds maximum length (%d)", w.lim.MaxStringLen),
				}
			}
			if err := w.bump(); err != nil {
				return err
			}
			if err := w.walk(item, depth+1); err != nil {
				return err
			}
		}

	case []any:
		for _, item := range val {
			if err := w.bump(); err != nil {
				return err
			}
			if err := w.walk(item, depth+1); err != nil {
				return err
			}
		}

	case string:
		if len(val) > w.lim.MaxStringLen {
			return &Violation{
				Reason: ReasonString,
				Limit:  w.lim.MaxStringLen,
				Detail: fmt.Sprintf("JSON string value exceeds maximum length (%d)", w.lim.MaxStringLen),
			}
		}

	case float64, json.Number, bool, nil:
		// Primitive scalars are fine.

	default:
		// Defense against decoders that hand back exotic types.
		return &Violation{
			Reason: ReasonType,
			Detail: fmt.Sprintf("unsupported JSON type: %T", v),
		}
	}

	return nil
}

// bump counts one object key or array element against the document-wide
// element budget.
func (w *walker) bump() error {
	w.count++
	if w.count > w.lim.MaxKeys {
		return &Violation{
			Reason: ReasonKeys,
			Limit:  w.lim.MaxKeys,
			Detail: fmt.Sprintf("JSON key count exceeds maximum (%d)", w.lim.MaxKeys),
		}
	}
	return nil
}
