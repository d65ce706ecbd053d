package engine

import (
	"fmt"
	"math"
	"strings"
)

// Base privilege-risk weight per role. Roles absent here but present in
// paidRoles carry the default paid weight.
var defaultRoleWeights = map[string]float64{
	"admin":          40,
	"security_admin": 40,
	"itil":           20,
}

const defaultPaidRoleWeight = 10

// ComputeScores derives the score set for one user. Pure: identical inputs
// always produce identical scores.
func ComputeScores(rec UserRecord, f Features, p Params) ScoreSet {
	return ScoreSet{
		PrivilegeRisk:   privilegeRisk(rec, f, p),
		EfficiencyScore: efficiencyScore(rec, f),
		DaysInactive:    f.DaysInactive,
	}
}

// privilegeRisk grows with the count and sensitivity of assigned roles, with
// bumps for privileged accounts showing little legitimate use.
func privilegeRisk(rec UserRecord, f Features, p Params) int {
	risk := 0.0
	hasAdmin := false
	hasITIL := false

	for _, role := range rec.Roles {
		name := strings.ToLower(strings.TrimSpace(role))
		if name == "" {
			continue
		}
		if name == "admin" || name == "security_admin" {
			hasAdmin = true
		}
		if name == "itil" {
			hasITIL = true
		}
		if w, ok := p.RoleWeights[name]; ok {
			risk += w
			continue
		}
		if w, ok := defaultRoleWeights[name]; ok {
			risk += w
			continue
		}
		if paidRoles[name] {
			risk += defaultPaidRoleWeight
		}
	}

	if hasAdmin {
		if f.TxCount < 5 {
			risk += 30
		}
		if f.DaysInactive > WarningDays {
			risk += 20
		}
	}
	if hasITIL {
		if f.TxCount == 0 {
			risk += 40
		}
		if f.DaysInactive > 60 {
			risk += 20
		}
	}

	risk += math.Floor(rec.LicenseCost/100) * 10

	return clampScore(risk)
}

// efficiencyScore decreases with staleness and increases with observed
// transactions. Never-logged-in and long-inactive users score zero.
func efficiencyScore(rec UserRecord, f Features) int {
	if f.DaysInactive == NeverLoggedIn || f.DaysInactive > InactiveDays || !rec.Active {
		return 0
	}
	base := math.Min(float64(f.TxCount)*0.5+float64(len(rec.Roles))*4, 100)
	penalty := math.Min(float64(f.DaysInactive)*0.8, 50)
	return clampScore(base - penalty)
}

// riskReasons explains the privilege-risk contributions for audit listings.
func riskReasons(rec UserRecord, f Features) []string {
	var out []string
	hasAdmin := false
	hasITIL := false
	for _, role := range rec.Roles {
		name := strings.ToLower(strings.TrimSpace(role))
		if name == "admin" || name == "security_admin" {
			hasAdmin = true
		}
		if name == "itil" {
			hasITIL = true
		}
	}
	if hasAdmin {
		out = append(out, "holds an admin role")
		if f.TxCount < 5 {
			out = append(out, "admin with almost no recorded activity")
		}
		if f.DaysInactive > WarningDays {
			out = append(out, fmt.Sprintf("admin inactive for %s", formatDays(f.DaysInactive)))
		}
	}
	if hasITIL {
		if f.TxCount == 0 {
			out = append(out, "itil role with zero transactions")
		}
		if f.DaysInactive > 60 {
			out = append(out, fmt.Sprintf("itil role idle for %s", formatDays(f.DaysInactive)))
		}
	}
	if rec.LicenseCost >= 100 {
		out = append(out, fmt.Sprintf("high license cost $%.0f/month", rec.LicenseCost))
	}
	return out
}

func formatDays(days int) string {
	if days == NeverLoggedIn {
		return "ever (no login on record)"
	}
	return fmt.Sprintf("%d days", days)
}

func clampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}
