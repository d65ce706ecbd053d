package engine

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"
)

// ErrEmptySnapshot is returned when Evaluate receives no users.
var ErrEmptySnapshot = errors.New("engine: empty user snapshot")

// Listing caps keep report payloads bounded on large instances.
const (
	maxAuditEntries  = 200
	maxTopRiskyUsers = 20
	topRiskyMinScore = 50
)

type userEval struct {
	features Features
	scores   ScoreSet
	cats     Categories
	decision Decision
	hasDec   bool
}

// Evaluate runs the full pipeline over one snapshot and assembles the report.
// The same snapshot, clock and params always yield byte-identical output
// after JSON encoding.
func Evaluate(snapshot []UserRecord, now time.Time, p Params) (*Report, error) {
	if len(snapshot) == 0 {
		return nil, ErrEmptySnapshot
	}
	p = p.normalized()

	records, costWarnings := resolveCosts(snapshot, p.CostTable)
	stats := computeSnapshotStats(records, p)

	evals := make([]userEval, len(records))
	sem := make(chan struct{}, p.MaxWorkers)
	var wg sync.WaitGroup
	for i := range records {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rec := records[i]
			f := ExtractFeatures(rec, now)
			ev := userEval{
				features: f,
				scores:   ComputeScores(rec, f, p),
				cats:     Classify(rec, f, stats),
			}
			if d, ok := BuildDecision(rec, f, ev.cats, stats, p); ok {
				ev.decision = d
				ev.hasDec = true
			}
			evals[i] = ev
		}(i)
	}
	wg.Wait()

	rpt := &Report{
		DepartmentBreakdown: map[string]DepartmentStat{},
		Decisions:           []Decision{},
		TopRiskyUsers:       []RiskyUser{},
		DuplicateUsers:      []DuplicateUser{},
		GeneratedAt:         now.UTC(),
	}

	warnings := costWarnings
	licensed := 0
	var decisions []Decision
	for i, ev := range evals {
		rec := records[i]
		if ev.features.Malformed {
			warnings++
		}
		if rec.LicenseCost > 0 {
			licensed++
		}

		rpt.Summary.TotalUsers++
		if ev.cats.Inactive90Plus {
			rpt.Summary.InactiveUsers++
		}
		if ev.cats.WastedLicense {
			rpt.Summary.WastedLicenses++
		}
		if ev.cats.Underutilized {
			rpt.Summary.UnderutilizedUsers++
		}
		if ev.cats.Overlicensed {
			rpt.Summary.OverlicensedUsers++
		}
		if ev.cats.Integration {
			rpt.Summary.IntegrationAccounts++
		}
		if ev.hasDec {
			decisions = append(decisions, ev.decision)
		}
	}
	rpt.Summary.ActiveUsers = rpt.Summary.TotalUsers - rpt.Summary.InactiveUsers
	rpt.InputWarnings = warnings

	sortDecisions(decisions)
	if decisions != nil {
		rpt.Decisions = decisions
	}

	rpt.DuplicateUsers = buildDuplicates(stats)
	rpt.Summary.DuplicateUsers = len(rpt.DuplicateUsers)

	rpt.Financials = buildFinancials(records, decisions)
	rpt.DepartmentBreakdown = buildDepartmentBreakdown(records, decisions)
	rpt.Automation = buildAutomation(decisions)
	rpt.TopRiskyUsers = buildTopRisky(records, evals)
	rpt.LastLoginAudit = buildAudit(records, evals)
	rpt.RiskScore = computeRiskScore(rpt.Summary.TotalUsers, licensed, rpt.Summary)
	return rpt, nil
}

// Decisions are ordered biggest saving first so the head of the list is the
// natural bulk-session candidate set.
func sortDecisions(decisions []Decision) {
	sort.Slice(decisions, func(i, j int) bool {
		if decisions[i].MonthlySaving != decisions[j].MonthlySaving {
			return decisions[i].MonthlySaving > decisions[j].MonthlySaving
		}
		if decisions[i].ConfidencePct != decisions[j].ConfidencePct {
			return decisions[i].ConfidencePct > decisions[j].ConfidencePct
		}
		return decisions[i].UserSysID < decisions[j].UserSysID
	})
}

func buildDuplicates(stats snapshotStats) []DuplicateUser {
	out := []DuplicateUser{}
	for email, count := range stats.emailCounts {
		if count >= 2 {
			out = append(out, DuplicateUser{Email: email, AccountCount: count})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func buildTopRisky(records []UserRecord, evals []userEval) []RiskyUser {
	out := []RiskyUser{}
	for i, ev := range evals {
		if ev.scores.PrivilegeRisk < topRiskyMinScore {
			continue
		}
		rec := records[i]
		out = append(out, RiskyUser{
			UserSysID:     rec.SysID,
			UserName:      rec.UserName,
			PrivilegeRisk: ev.scores.PrivilegeRisk,
			Roles:         rec.Roles,
			Reasons:       riskReasons(rec, ev.features),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PrivilegeRisk != out[j].PrivilegeRisk {
			return out[i].PrivilegeRisk > out[j].PrivilegeRisk
		}
		return out[i].UserSysID < out[j].UserSysID
	})
	if len(out) > maxTopRiskyUsers {
		out = out[:maxTopRiskyUsers]
	}
	return out
}

func buildAudit(records []UserRecord, evals []userEval) LastLoginAudit {
	audit := LastLoginAudit{
		Total:         len(records),
		NeverLoggedIn: []AuditEntry{},
		StaleUsers:    []AuditEntry{},
		ActiveUsers:   []AuditEntry{},
	}
	for i, ev := range evals {
		rec := records[i]
		// Email-less integration accounts stay out of the listings but still
		// count toward Total.
		if ev.cats.Integration && normalizeEmail(rec.Email) == "" {
			continue
		}
		entry := AuditEntry{
			UserSysID:    rec.SysID,
			UserName:     rec.UserName,
			Email:        rec.Email,
			LastLogin:    rec.LastLogin,
			DaysInactive: ev.features.DaysInactive,
		}
		switch {
		case ev.cats.NeverLoggedIn:
			audit.NeverLoggedIn = append(audit.NeverLoggedIn, entry)
		case ev.cats.Stale:
			audit.StaleUsers = append(audit.StaleUsers, entry)
		default:
			audit.ActiveUsers = append(audit.ActiveUsers, entry)
		}
	}

	sort.Slice(audit.NeverLoggedIn, func(i, j int) bool {
		return audit.NeverLoggedIn[i].UserName < audit.NeverLoggedIn[j].UserName
	})
	sort.Slice(audit.StaleUsers, func(i, j int) bool {
		a, b := audit.StaleUsers[i], audit.StaleUsers[j]
		if a.DaysInactive != b.DaysInactive {
			return a.DaysInactive > b.DaysInactive
		}
		return a.UserSysID < b.UserSysID
	})
	// Longest-idle actives first: the interesting end of the partition.
	sort.Slice(audit.ActiveUsers, func(i, j int) bool {
		a, b := audit.ActiveUsers[i], audit.ActiveUsers[j]
		if a.DaysInactive != b.DaysInactive {
			return a.DaysInactive > b.DaysInactive
		}
		return a.UserSysID < b.UserSysID
	})

	audit.NeverLoggedIn = capEntries(audit.NeverLoggedIn)
	audit.StaleUsers = capEntries(audit.StaleUsers)
	audit.ActiveUsers = capEntries(audit.ActiveUsers)
	return audit
}

func capEntries(entries []AuditEntry) []AuditEntry {
	if len(entries) > maxAuditEntries {
		return entries[:maxAuditEntries]
	}
	return entries
}

// computeRiskScore folds the summary ratios into a single 0-100 posture
// number. Waste and overlicensing are measured against the licensed
// population, inactivity against everyone.
func computeRiskScore(total, licensed int, s Summary) int {
	if total == 0 {
		return 0
	}
	lic := licensed
	if lic == 0 {
		lic = 1
	}
	wasteRatio := float64(s.WastedLicenses) / float64(lic)
	inactiveRatio := float64(s.InactiveUsers) / float64(total)
	overlicRatio := float64(s.OverlicensedUsers) / float64(lic)
	dupPts := float64(s.DuplicateUsers) * 2
	if dupPts > 15 {
		dupPts = 15
	}
	v := wasteRatio*40 + inactiveRatio*35 + overlicRatio*25 + dupPts
	if v > 100 {
		v = 100
	}
	return int(math.Round(v))
}
