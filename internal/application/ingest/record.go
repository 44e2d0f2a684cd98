package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one decoded platform record. The same entity arrives in two
// shapes: flattened bulk-export JSON (camelCase keys, gid identifiers,
// nested price sets) and live webhook JSON (snake_case keys, numeric
// identifiers, flat money strings). Accessors take the bulk key first and
// the webhook key second so every field mapping lives in one place.
type Record map[string]interface{}

// ParentRefKey is the explicit parent-reference field the bulk export
// attaches to child records (variants, line items).
const ParentRefKey = "__parentId"

// ParseRecord decodes a single JSON object into a Record
func ParseRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	return rec, nil
}

// ExternalID returns the record's own identifier. Bulk records carry a
// gid string ("gid://shopify/Order/123"), webhook records a JSON number.
func (r Record) ExternalID() (int64, error) {
	id := parseExternalID(r["id"])
	if id == 0 {
		return 0, fmt.Errorf("record has no usable id (got %v)", r["id"])
	}
	return id, nil
}

// IDKey returns the raw identifier in string form, used as the grouping
// key during reconciliation.
func (r Record) IDKey() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

// ParentRef returns the parent-reference key of a child record, or ""
func (r Record) ParentRef() string {
	s, _ := r[ParentRefKey].(string)
	return s
}

// IsChild reports whether the record carries a parent reference
func (r Record) IsChild() bool {
	return r.ParentRef() != ""
}

// GIDType extracts the object type from a gid identifier, e.g. "Order"
// from "gid://shopify/Order/123". Webhook records have no gid; "" is
// returned.
func (r Record) GIDType() string {
	gid, ok := r["id"].(string)
	if !ok {
		return ""
	}
	parts := strings.Split(gid, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

// Str returns the first present string value among keys
func (r Record) Str(keys ...string) string {
	for _, k := range keys {
		switch v := r[k].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// Int returns the first present integer value among keys. Numeric
// strings are accepted because the bulk export serializes some counts
// as strings.
func (r Record) Int(keys ...string) int {
	for _, k := range keys {
		switch v := r[k].(type) {
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}

// Float returns the first present float value among keys, accepting
// numeric strings (money amounts arrive as strings in both shapes)
func (r Record) Float(keys ...string) float64 {
	for _, k := range keys {
		switch v := r[k].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// Child returns a nested object value, or nil
func (r Record) Child(keys ...string) Record {
	for _, k := range keys {
		if m, ok := r[k].(map[string]interface{}); ok {
			return Record(m)
		}
	}
	return nil
}

// ChildID resolves the external id of a nested reference object
// (e.g. order.customer), or nil when absent
func (r Record) ChildID(keys ...string) *int64 {
	child := r.Child(keys...)
	if child == nil {
		return nil
	}
	if id := parseExternalID(child["id"]); id != 0 {
		return &id
	}
	return nil
}

// Money resolves a money amount: the bulk shape nests it under
// <setKey>.shopMoney.amount (or shop_money in webhook price sets), the
// webhook shape keeps a flat string under flatKey.
func (r Record) Money(setKey, flatKey string) float64 {
	if set := r.Child(setKey, snakeCase(setKey)); set != nil {
		if money := set.Child("shopMoney", "shop_money"); money != nil {
			return money.Float("amount")
		}
	}
	return r.Float(flatKey)
}

// Tags joins a tag list into the canonical comma-separated form; the
// webhook shape already delivers a comma-separated string.
func (r Record) Tags(keys ...string) string {
	for _, k := range keys {
		switch v := r[k].(type) {
		case string:
			return v
		case []interface{}:
			parts := make([]string, 0, len(v))
			for _, t := range v {
				if s, ok := t.(string); ok {
					parts = append(parts, s)
				}
			}
			return strings.Join(parts, ", ")
		}
	}
	return ""
}

// Time parses the first present timestamp among keys, or nil
func (r Record) Time(keys ...string) *time.Time {
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"}
	for _, k := range keys {
		s, ok := r[k].(string)
		if !ok || s == "" {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				utc := t.UTC()
				return &utc
			}
		}
	}
	return nil
}

// parseExternalID accepts a numeric id or a gid string and returns the
// trailing numeric identifier, or 0 when unparseable
func parseExternalID(v interface{}) int64 {
	switch id := v.(type) {
	case float64:
		return int64(id)
	case string:
		trimmed := id
		if i := strings.LastIndex(id, "/"); i >= 0 {
			trimmed = id[i+1:]
		}
		trimmed = strings.SplitN(trimmed, "?", 2)[0]
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// snakeCase converts a camelCase key to its snake_case twin
func snakeCase(key string) string {
	var b strings.Builder
	for i, r := range key {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
