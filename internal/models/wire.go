package models

import (
	"encoding/json"
	"fmt"
	"time"

	"sevadesk/internal/syncerr"

	"github.com/shopspring/decimal"
)

// Payload is the loosely-typed wire representation of a record: what goes
// into and comes out of the remote store's JSON bodies. Decoders must fail
// loudly on missing or mistyped mandatory fields and tolerate anything
// extra (forward compatibility), which is why access goes through the
// typed helpers below instead of bare map indexing.
type Payload map[string]any

// wireTimeLayouts covers both what the store emits (RFC 3339 with and
// without fractional seconds) and the legacy space-separated stamps still
// present in rows written by earlier clients.
var wireTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func (p Payload) requiredString(field string) (string, error) {
	raw, ok := p[field]
	if !ok || raw == nil {
		return "", &syncerr.MalformedDataError{Field: field, Reason: "missing"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &syncerr.MalformedDataError{Field: field, Reason: fmt.Sprintf("expected string, got %T", raw)}
	}
	return s, nil
}

func (p Payload) optionalString(field string) (string, error) {
	raw, ok := p[field]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", &syncerr.MalformedDataError{Field: field, Reason: fmt.Sprintf("expected string, got %T", raw)}
	}
	return s, nil
}

func (p Payload) optionalBool(field string) (bool, bool, error) {
	raw, ok := p[field]
	if !ok || raw == nil {
		return false, false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, false, &syncerr.MalformedDataError{Field: field, Reason: fmt.Sprintf("expected bool, got %T", raw)}
	}
	return b, true, nil
}

func (p Payload) optionalInt(field string) (int, error) {
	raw, ok := p[field]
	if !ok || raw == nil {
		return 0, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, &syncerr.MalformedDataError{Field: field, Reason: "not an integer"}
		}
		return int(n), nil
	default:
		return 0, &syncerr.MalformedDataError{Field: field, Reason: fmt.Sprintf("expected number, got %T", raw)}
	}
}

func parseWireTime(field, raw string) (time.Time, error) {
	for _, layout := range wireTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &syncerr.MalformedDataError{Field: field, Reason: fmt.Sprintf("unparseable timestamp %q", raw)}
}

func (p Payload) requiredTime(field string) (time.Time, error) {
	s, err := p.requiredString(field)
	if err != nil {
		return time.Time{}, err
	}
	return parseWireTime(field, s)
}

func (p Payload) optionalTime(field string) (time.Time, error) {
	s, err := p.optionalString(field)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	return parseWireTime(field, s)
}

// requiredDecimal accepts string, float and json.Number encodings; the
// store renders numerics inconsistently depending on column type.
func (p Payload) requiredDecimal(field string) (decimal.Decimal, error) {
	raw, ok := p[field]
	if !ok || raw == nil {
		return decimal.Zero, &syncerr.MalformedDataError{Field: field, Reason: "missing"}
	}
	switch v := raw.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, &syncerr.MalformedDataError{Field: field, Reason: "not a numeric string"}
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, &syncerr.MalformedDataError{Field: field, Reason: "not a number"}
		}
		return d, nil
	case decimal.Decimal:
		return v, nil
	default:
		return decimal.Zero, &syncerr.MalformedDataError{Field: field, Reason: fmt.Sprintf("expected number, got %T", raw)}
	}
}

func (p Payload) optionalStringSlice(field string) ([]string, error) {
	raw, ok := p[field]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &syncerr.MalformedDataError{Field: field, Reason: "expected array of strings"}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &syncerr.MalformedDataError{Field: field, Reason: fmt.Sprintf("expected array, got %T", raw)}
	}
}

// extraFields returns whatever the payload carries beyond the known field
// set. Unknown fields survive a decode/encode round trip untouched rather
// than being coerced or dropped.
func (p Payload) extraFields(known ...string) map[string]any {
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}

	var extra map[string]any
	for k, v := range p {
		if knownSet[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	return extra
}

// metaFields are present on every record kind.
var metaFields = []string{"id", "created_at", "updated_at", "schema_version"}
