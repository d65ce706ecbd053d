package engine

import "math"

// roundCents normalizes a dollar amount to two decimal places. Applied at
// every report boundary so serialized figures never carry float dust.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func buildFinancials(records []UserRecord, decisions []Decision) Financials {
	var fin Financials
	var current float64
	for _, r := range records {
		if r.LicenseCost > 0 {
			current += r.LicenseCost
		}
	}

	for _, d := range decisions {
		switch d.Action {
		case ActionDeactivate:
			fin.RecoverableFromInactive += d.MonthlySaving
		case ActionRemovePaidRoles:
			fin.RecoverableFromOverlic += d.MonthlySaving
		case ActionDowngradeLicense:
			fin.RecoverableFromWasted += d.MonthlySaving
		case ActionReviewAndDowngrade:
			fin.RecoverableFromUnderutil += d.MonthlySaving
		}
	}

	monthly := fin.RecoverableFromInactive + fin.RecoverableFromOverlic +
		fin.RecoverableFromWasted + fin.RecoverableFromUnderutil
	optimized := current - monthly
	if optimized < 0 {
		optimized = 0
	}

	fin.CurrentMonthlyCost = roundCents(current)
	fin.MonthlySavingsPotential = roundCents(monthly)
	fin.AnnualSavingsPotential = roundCents(monthly * 12)
	fin.OptimizedMonthlyCost = roundCents(optimized)
	fin.RecoverableFromInactive = roundCents(fin.RecoverableFromInactive)
	fin.RecoverableFromOverlic = roundCents(fin.RecoverableFromOverlic)
	fin.RecoverableFromWasted = roundCents(fin.RecoverableFromWasted)
	fin.RecoverableFromUnderutil = roundCents(fin.RecoverableFromUnderutil)
	return fin
}

func buildDepartmentBreakdown(records []UserRecord, decisions []Decision) map[string]DepartmentStat {
	savingBySysID := make(map[string]float64, len(decisions))
	for _, d := range decisions {
		savingBySysID[d.UserSysID] = d.MonthlySaving
	}

	out := make(map[string]DepartmentStat)
	for _, r := range records {
		dept := normalizeDept(r.Department)
		st := out[dept]
		st.Count++
		if r.LicenseCost > 0 {
			st.Cost += r.LicenseCost
		}
		st.Waste += savingBySysID[r.SysID]
		out[dept] = st
	}

	for dept, st := range out {
		st.Cost = roundCents(st.Cost)
		st.Waste = roundCents(st.Waste)
		if st.Cost > 0 {
			ratio := st.Waste / st.Cost
			if ratio > 1 {
				ratio = 1
			}
			if ratio < 0 {
				ratio = 0
			}
			st.WasteRatio = math.Round(ratio*1000) / 1000
		}
		out[dept] = st
	}
	return out
}
