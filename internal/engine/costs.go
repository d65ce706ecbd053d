package engine

import "strings"

// Monthly USD per license tier. External cost tables overlay these defaults;
// a tier missing from both yields zero cost and an input warning.
var defaultCostTable = map[string]float64{
	"admin":       150,
	"csm":         120,
	"itil":        100,
	"itsm":        100,
	"hr":          80,
	"sn_hr_core":  80,
	"fulfiller":   60,
	"approver":    25,
	"requester":   20,
	"integration": 10,
}

// paidRoles are role entitlements that carry a license cost.
var paidRoles = map[string]bool{
	"admin":          true,
	"security_admin": true,
	"itil":           true,
	"csm":            true,
	"hr":             true,
	"itsm":           true,
	"sn_hr_core":     true,
	"fulfiller":      true,
	"approver":       true,
}

// RequesterTier is the floor tier assumed for users whose roles require no
// paid entitlement. Role removals downgrade toward this tier.
const RequesterTier = "requester"

// DefaultCostTable returns a copy of the built-in license cost table.
func DefaultCostTable() map[string]float64 {
	out := make(map[string]float64, len(defaultCostTable))
	for k, v := range defaultCostTable {
		out[k] = v
	}
	return out
}

// IsPaidRole reports whether the role name is a paid entitlement.
func IsPaidRole(role string) bool {
	return paidRoles[strings.ToLower(strings.TrimSpace(role))]
}

func lookupCost(table map[string]float64, tier string) (float64, bool) {
	key := strings.ToLower(strings.TrimSpace(tier))
	if key == "" {
		return 0, false
	}
	if cost, ok := table[key]; ok {
		return cost, true
	}
	return 0, false
}

// resolveCosts fills missing license costs from the tier table and returns
// the resolved copy plus the number of records whose non-empty tier could not
// be priced. Sync-supplied costs win over the table.
func resolveCosts(snapshot []UserRecord, table map[string]float64) ([]UserRecord, int) {
	out := make([]UserRecord, len(snapshot))
	warnings := 0
	for i, rec := range snapshot {
		if rec.LicenseCost < 0 {
			rec.LicenseCost = 0
		}
		if rec.LicenseCost == 0 {
			if cost, ok := lookupCost(table, rec.LicenseType); ok {
				rec.LicenseCost = cost
			} else if strings.TrimSpace(rec.LicenseType) != "" {
				warnings++
			}
		}
		out[i] = rec
	}
	return out, warnings
}
