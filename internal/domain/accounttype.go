/**
 * @description
 * Account-type resolution: maps the (model, type) pair attached to a purchase
 * to the internal numeric classification consumed downstream by account
 * provisioning. The pair arrives either as separate metadata fields or folded
 * into a single free-form `account_type` descriptor ("Lite 1-Step", etc.).
 *
 * @notes
 * - The table is exhaustive and closed. An unknown combination resolves to nil
 *   rather than a guess; provisioning treats nil as "needs manual review".
 */

package domain

import "strings"

// accountTypeTable enumerates every known (model, type) combination.
var accountTypeTable = map[[2]string]int{
	{"lite", "instant"}:  1,
	{"lite", "1-step"}:   2,
	{"lite", "2-step"}:   3,
	{"prime", "instant"}: 5,
	{"prime", "1-step"}:  6,
	{"prime", "2-step"}:  7,
}

// ResolveAccountTypeID maps a (model, type) pair to its internal account type
// ID. Matching is case-insensitive. Returns nil when the pair is not in the
// table; callers must never substitute a default.
func ResolveAccountTypeID(model, accountType string) *int {
	key := [2]string{
		strings.ToLower(strings.TrimSpace(model)),
		strings.ToLower(strings.TrimSpace(accountType)),
	}
	if id, ok := accountTypeTable[key]; ok {
		v := id
		return &v
	}
	return nil
}

// ParseAccountDescriptor extracts the (model, type) pair from a combined
// descriptor string such as "Prime 2-Step Challenge". Both tokens must be
// unambiguously present; otherwise it reports ok=false and the order is left
// unclassified.
func ParseAccountDescriptor(descriptor string) (model, accountType string, ok bool) {
	s := strings.ToLower(descriptor)

	switch {
	case strings.Contains(s, "lite"):
		model = "lite"
	case strings.Contains(s, "prime"):
		model = "prime"
	default:
		return "", "", false
	}

	switch {
	case strings.Contains(s, "instant"):
		accountType = "instant"
	case strings.Contains(s, "1-step"), strings.Contains(s, "1 step"), strings.Contains(s, "one-step"):
		accountType = "1-step"
	case strings.Contains(s, "2-step"), strings.Contains(s, "2 step"), strings.Contains(s, "two-step"):
		accountType = "2-step"
	default:
		return "", "", false
	}

	return model, accountType, true
}

// ResolveAccountTypeFromMetadata derives the account type ID from an order's
// metadata bag. Explicit `model` + `type` fields win; a combined
// `account_type` descriptor is the fallback. Returns nil when neither path
// yields a known combination.
func ResolveAccountTypeFromMetadata(metadata map[string]string) *int {
	if metadata == nil {
		return nil
	}

	if model, okM := metadata["model"]; okM {
		if typ, okT := metadata["type"]; okT {
			if id := ResolveAccountTypeID(model, typ); id != nil {
				return id
			}
		}
	}

	if descriptor, ok := metadata["account_type"]; ok {
		if model, typ, parsed := ParseAccountDescriptor(descriptor); parsed {
			return ResolveAccountTypeID(model, typ)
		}
	}

	return nil
}
