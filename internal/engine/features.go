package engine

import (
	"strings"
	"time"
)

// NeverLoggedIn is the days_inactive sentinel for accounts with no parseable
// login. It is large enough that every staleness comparison treats the
// account as maximally inactive, and unmistakable in serialized payloads.
const NeverLoggedIn = 999999

// Timestamp layouts accepted from the source system, in match order.
var lastLoginLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// Features is the normalized per-user feature set.
type Features struct {
	DaysInactive int
	TxCount      int

	// Malformed marks a non-empty last_login that failed to parse. The user
	// is treated as never logged in and the report counts a warning.
	Malformed bool
}

// ExtractFeatures derives the feature set for one record. It never fails:
// absent or malformed timestamps fall open to the never-logged-in sentinel.
func ExtractFeatures(rec UserRecord, now time.Time) Features {
	f := Features{TxCount: rec.TransactionCount}
	if f.TxCount < 0 {
		f.TxCount = 0
	}

	raw := strings.TrimSpace(rec.LastLogin)
	if raw == "" {
		f.DaysInactive = NeverLoggedIn
		return f
	}

	t, ok := parseLastLogin(raw)
	if !ok {
		f.DaysInactive = NeverLoggedIn
		f.Malformed = true
		return f
	}

	days := int(now.Sub(t).Hours() / 24)
	if days < 0 {
		days = 0
	}
	f.DaysInactive = days
	return f
}

func parseLastLogin(raw string) (time.Time, bool) {
	for _, layout := range lastLoginLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
