package quotes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"leadrelay/internal/botcheck"
	"leadrelay/internal/validation"
)

// SensitiveFields are never stored, at any nesting depth.
var SensitiveFields = []string{
	"ssn",
	"drivers_license_number",
	"credit_card_number",
}

var (
	typeKeys  = []string{"quote_type", "quoteType", "type"}
	formKeys  = []string{"form_data", "formData", "data"}
	phoneKeys = []string{"phone", "phone_number", "mobile"}
	zipKeys   = []string{"zip", "zip_code", "postal_code"}
)

// ParseRequest decodes a submission body into its quote type tag and its
// snake_cased form fields. When the body nests the form under a form key
// only that object is used, plus any top-level controlFields and CAPTCHA
// token fields so bot checks see them at either level. Otherwise the
// remaining top-level keys are the form.
func ParseRequest(body []byte, controlFields ...string) (string, map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return "", nil, ErrInvalidBody
	}

	var quoteType string
	for _, k := range typeKeys {
		if s, ok := raw[k].(string); ok && strings.TrimSpace(s) != "" {
			quoteType = s
			break
		}
	}

	var form map[string]any
	for _, k := range formKeys {
		if m, ok := raw[k].(map[string]any); ok {
			form = m
			break
		}
	}

	if form == nil {
		fields := make(map[string]any, len(raw))
		for k, v := range raw {
			if !containsKey(formKeys, k) {
				fields[k] = v
			}
		}
		return quoteType, SnakeCaseKeys(fields), nil
	}

	fields := SnakeCaseKeys(form)
	control := append(append([]string{}, botcheck.TokenFields...), controlFields...)
	for k, v := range SnakeCaseKeys(raw) {
		if _, exists := fields[k]; !exists && containsKey(control, k) {
			fields[k] = v
		}
	}
	return quoteType, fields, nil
}

func containsKey(keys []string, k string) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}

// SnakeCaseKeys returns a copy of m with snake_cased keys, trimmed strings,
// and empty strings, nulls and empty objects dropped. Array elements are
// kept in place. Keys are processed in sorted order so colliding spellings
// resolve deterministically.
func SnakeCaseKeys(m map[string]any) map[string]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(m))
	for _, k := range keys {
		nk := validation.ToSnakeCase(k)
		if nk == "" {
			continue
		}
		if v, ok := cleanValue(m[k]); ok {
			out[nk] = v
		}
	}
	return out
}

func cleanValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case map[string]any:
		nested := SnakeCaseKeys(val)
		return nested, len(nested) > 0
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = cleanItem(item)
		}
		return items, true
	default:
		return val, true
	}
}

// cleanItem normalizes an array element without dropping it.
func cleanItem(v any) any {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		return SnakeCaseKeys(val)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = cleanItem(item)
		}
		return items
	default:
		return val
	}
}

// Options controls normalization.
type Options struct {
	PhoneRegion   string
	HoneypotField string
}

// Normalized is a cleaned payload plus the summary columns stored beside it.
type Normalized struct {
	Payload   map[string]any
	FirstName string
	LastName  string
	Email     string
	Phone     string
	ZipCode   string
}

// Normalize strips control and sensitive fields from snake_cased form
// fields, normalizes contact fields and extracts the summary columns.
// The input map is not modified.
func Normalize(fields map[string]any, opts Options) (*Normalized, error) {
	payload := stripSensitive(fields)

	delete(payload, opts.HoneypotField)
	for _, k := range botcheck.TokenFields {
		delete(payload, k)
	}
	delete(payload, "quote_type")
	delete(payload, "type")

	n := &Normalized{Payload: payload}

	if v, ok := payload["email"]; ok {
		s, _ := asString(v)
		email, valid := validation.NormalizeEmail(s)
		if !valid {
			return nil, ErrInvalidEmail
		}
		payload["email"] = email
		n.Email = email
	}

	for _, k := range phoneKeys {
		if s, ok := asString(payload[k]); ok && s != "" {
			phone := validation.NormalizePhone(s, opts.PhoneRegion)
			payload[k] = phone
			if n.Phone == "" {
				n.Phone = phone
			}
		}
	}

	for _, k := range zipKeys {
		if s, ok := asString(payload[k]); ok && s != "" {
			zip := strings.ToUpper(s)
			payload[k] = zip
			if n.ZipCode == "" {
				n.ZipCode = zip
			}
		}
	}

	n.FirstName, _ = asString(payload["first_name"])
	n.LastName, _ = asString(payload["last_name"])
	if n.FirstName == "" && n.LastName == "" {
		for _, k := range []string{"name", "full_name"} {
			if full, ok := asString(payload[k]); ok && full != "" {
				n.FirstName, n.LastName = splitName(full)
				break
			}
		}
	}

	if n.Email == "" && n.Phone == "" {
		return nil, ErrContactRequired
	}

	return n, nil
}

// stripSensitive deep-copies m without any sensitive keys.
func stripSensitive(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if containsKey(SensitiveFields, k) {
			continue
		}
		out[k] = stripSensitiveValue(v)
	}
	return out
}

func stripSensitiveValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return stripSensitive(val)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = stripSensitiveValue(item)
		}
		return items
	default:
		return val
	}
}

func asString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), true
	case json.Number:
		return val.String(), true
	case float64:
		return fmt.Sprintf("%.0f", val), true
	default:
		return "", false
	}
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
