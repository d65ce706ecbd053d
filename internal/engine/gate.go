package engine

import "sort"

// Automation bands. Confidence at or above AutoEligibleMin may execute
// without review, [PendingApprovalMin, AutoEligibleMin) needs sign-off, and
// everything below stays with a human.
const (
	AutoEligibleMin    = 95
	PendingApprovalMin = 80
)

// Band names as they appear in reports and session validation errors.
const (
	BandAutoEligible     = "auto_eligible"
	BandPendingApprovals = "pending_approvals"
	BandManualReview     = "manual_review"
)

// Band returns the automation band for a confidence percentage.
func Band(confidencePct int) string {
	switch {
	case confidencePct >= AutoEligibleMin:
		return BandAutoEligible
	case confidencePct >= PendingApprovalMin:
		return BandPendingApprovals
	default:
		return BandManualReview
	}
}

// BulkEligible reports whether a decision may be included in a bulk
// execution session. Manual-review items need a one-off execute call.
func BulkEligible(confidencePct int) bool {
	return confidencePct >= PendingApprovalMin
}

func buildAutomation(decisions []Decision) Automation {
	a := Automation{ActionsAvailable: []string{}}
	seen := make(map[string]bool)
	for _, d := range decisions {
		switch Band(d.ConfidencePct) {
		case BandAutoEligible:
			a.AutoEligible++
		case BandPendingApprovals:
			a.PendingApprovals++
		default:
			a.ManualReview++
		}
		if !seen[string(d.Action)] {
			seen[string(d.Action)] = true
			a.ActionsAvailable = append(a.ActionsAvailable, string(d.Action))
		}
	}
	sort.Strings(a.ActionsAvailable)
	return a
}
