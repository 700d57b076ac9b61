/**
 * @description
 * Small helpers for pulling loosely-typed fields out of webhook payloads.
 * Providers disagree on whether amounts are numbers or strings and on the
 * exact field name for the same concept, so adapters read from a generic map
 * with these accessors instead of rigid structs.
 */
package gateway

import "strconv"

// stringField returns the first non-empty string value among keys. Numeric
// values are stringified, since some providers send numeric codes where others
// send strings.
func stringField(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

// floatField returns the first parseable numeric value among keys, accepting
// both JSON numbers and numeric strings.
func floatField(m map[string]interface{}, keys ...string) float64 {
	for _, key := range keys {
		switch v := m[key].(type) {
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
