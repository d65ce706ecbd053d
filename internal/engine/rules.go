package engine

import (
	"fmt"
	"math"
)

// BuildDecision walks the remediation rules in priority order and returns the
// first that fires. Exactly one action per user: a deactivation candidate is
// never also reported for a downgrade. Integration accounts are exempt from
// every rule; they are counted in the summary but never actioned. The bool is
// false when the user needs no action.
func BuildDecision(rec UserRecord, f Features, cats Categories, stats snapshotStats, p Params) (Decision, bool) {
	if cats.Integration {
		return Decision{}, false
	}

	d := Decision{
		UserSysID:    rec.SysID,
		UserName:     rec.UserName,
		Email:        rec.Email,
		DaysInactive: f.DaysInactive,
		TxCount:      f.TxCount,
		LastLogin:    rec.LastLogin,
	}

	switch {
	case cats.Inactive90Plus:
		d.Action = ActionDeactivate
		d.ConfidencePct = deactivateConfidence(f.DaysInactive, p)
		d.MonthlySaving = roundCents(rec.LicenseCost)
		if cats.NeverLoggedIn {
			d.Reason = "account has never logged in"
		} else {
			d.Reason = fmt.Sprintf("no login for %d days", f.DaysInactive)
		}

	case cats.Overlicensed:
		required := requiredTierCost(rec, p.CostTable)
		d.Action = ActionRemovePaidRoles
		d.ConfidencePct = overlicensedConfidence(p.CostTable, required, rec.LicenseCost)
		d.MonthlySaving = roundCents(rec.LicenseCost - required)
		d.Reason = fmt.Sprintf("license costs $%.2f/month but assigned roles require only $%.2f", rec.LicenseCost, required)

	case cats.WastedLicense:
		d.Action = ActionDowngradeLicense
		d.ConfidencePct = clampScore(p.ConfWasted)
		d.MonthlySaving = roundCents(rec.LicenseCost)
		d.Reason = "paid license with zero transactions in the reporting period"

	case cats.Underutilized:
		d.Action = ActionReviewAndDowngrade
		d.ConfidencePct = underutilConfidence(p)
		d.MonthlySaving = roundCents(rec.LicenseCost * 0.5)
		d.Reason = underutilReason(rec, f, stats)

	default:
		return Decision{}, false
	}
	return d, true
}

// deactivateConfidence grows linearly with inactivity and saturates. Accounts
// with no login on record get the saturation value outright.
func deactivateConfidence(days int, p Params) int {
	if days >= NeverLoggedIn {
		return clampScore(p.ConfSaturation)
	}
	c := p.ConfBase + p.ConfSlope*float64(days)
	if c > p.ConfSaturation {
		c = p.ConfSaturation
	}
	return clampScore(c)
}

// overlicensedConfidence rises with the number of tiers between what the user
// holds and what their roles require.
func overlicensedConfidence(table map[string]float64, required, licensed float64) int {
	c := 72 + 7*tierSteps(table, required, licensed)
	if c > 93 {
		c = 93
	}
	return c
}

// underutilConfidence caps below the approval band. A below-median signal is
// relative to peers, not absolute, so it must stay in manual review.
func underutilConfidence(p Params) int {
	c := int(math.Round(p.ConfUnderutil))
	if c >= PendingApprovalMin {
		c = PendingApprovalMin - 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

func underutilReason(rec UserRecord, f Features, stats snapshotStats) string {
	dept := normalizeDept(rec.Department)
	if m, ok := stats.deptMedian[dept]; ok {
		return fmt.Sprintf("%d transactions vs %s median of %.1f", f.TxCount, dept, m)
	}
	return fmt.Sprintf("%d transactions, below department median", f.TxCount)
}
