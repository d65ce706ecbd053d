package engine

import (
	"sort"
	"strings"
)

// Classification thresholds. These are compatibility constants, not tuning:
// downstream consumers rely on the exact boundaries.
const (
	// StaleDays marks an account stale for the last-login audit.
	StaleDays = 365
	// InactiveDays is the license-action axis: past this the deactivate
	// rule applies.
	InactiveDays = 90
	// WarningDays opens the display-only warning tier (30, 90].
	WarningDays = 30
)

// Username prefixes that mark service/integration accounts.
var integrationPrefixes = []string{"svc_", "int_", "api_", "integration"}

// snapshotStats carries the cross-user aggregates category predicates need.
type snapshotStats struct {
	emailCounts  map[string]int
	deptMedian   map[string]float64
	deptLicensed map[string]int
	costTable    map[string]float64
}

func computeSnapshotStats(records []UserRecord, p Params) snapshotStats {
	stats := snapshotStats{
		emailCounts:  make(map[string]int),
		deptMedian:   make(map[string]float64),
		deptLicensed: make(map[string]int),
		costTable:    p.CostTable,
	}

	deptTx := make(map[string][]int)
	for _, rec := range records {
		if email := normalizeEmail(rec.Email); email != "" {
			stats.emailCounts[email]++
		}
		if rec.LicenseCost > 0 {
			dept := normalizeDept(rec.Department)
			stats.deptLicensed[dept]++
			tx := rec.TransactionCount
			if tx < 0 {
				tx = 0
			}
			deptTx[dept] = append(deptTx[dept], tx)
		}
	}

	for dept, values := range deptTx {
		if len(values) < p.MinDeptSize {
			continue
		}
		sort.Ints(values)
		stats.deptMedian[dept] = median(values)
	}
	return stats
}

// Classify evaluates the independent category predicates for one user.
// Evaluation order is irrelevant: every predicate reads the same snapshot.
func Classify(rec UserRecord, f Features, stats snapshotStats) Categories {
	cats := Categories{}

	cats.NeverLoggedIn = f.DaysInactive == NeverLoggedIn
	cats.Stale = f.DaysInactive > StaleDays
	cats.Active = f.DaysInactive <= StaleDays
	cats.Inactive90Plus = f.DaysInactive > InactiveDays
	cats.Warning = f.DaysInactive > WarningDays && f.DaysInactive <= InactiveDays

	licensed := rec.LicenseCost > 0
	cats.WastedLicense = licensed && f.TxCount == 0

	if licensed {
		dept := normalizeDept(rec.Department)
		if m, ok := stats.deptMedian[dept]; ok {
			cats.Underutilized = float64(f.TxCount) < m
		}
	}

	cats.Overlicensed = licensed && rec.LicenseCost > requiredTierCost(rec, stats.costTable)

	if email := normalizeEmail(rec.Email); email != "" {
		cats.Duplicate = stats.emailCounts[email] >= 2
	}

	cats.Integration = isIntegrationAccount(rec)
	return cats
}

// requiredTierCost returns the monthly cost of the cheapest license tier the
// user's role set requires. Users with no paid roles need only the requester
// floor.
func requiredTierCost(rec UserRecord, table map[string]float64) float64 {
	required, _ := lookupCost(table, RequesterTier)
	for _, role := range rec.Roles {
		name := strings.ToLower(strings.TrimSpace(role))
		if !paidRoles[name] {
			continue
		}
		cost, ok := lookupCost(table, name)
		if !ok {
			continue
		}
		if cost > required {
			required = cost
		}
	}
	return required
}

// tierSteps counts the distinct tier costs strictly above required and at or
// below licensed: how many tiers the user sits above their requirement.
func tierSteps(table map[string]float64, required, licensed float64) int {
	seen := make(map[float64]bool)
	for _, cost := range table {
		if cost > required && cost <= licensed {
			seen[cost] = true
		}
	}
	return len(seen)
}

func isIntegrationAccount(rec UserRecord) bool {
	if strings.EqualFold(strings.TrimSpace(rec.LicenseType), "integration") {
		return true
	}
	name := strings.ToLower(strings.TrimSpace(rec.UserName))
	for _, prefix := range integrationPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeDept(dept string) string {
	d := strings.TrimSpace(dept)
	if d == "" {
		return "Unassigned"
	}
	return d
}

func median(sorted []int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
}
