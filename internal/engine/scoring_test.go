package engine

import (
	"testing"
	"time"
)

func TestEfficiencyScoreZeroWhenNotUsable(t *testing.T) {
	cases := []struct {
		name string
		rec  UserRecord
		f    Features
	}{
		{name: "never logged in", rec: UserRecord{Active: true}, f: Features{DaysInactive: NeverLoggedIn, TxCount: 500}},
		{name: "past inactive threshold", rec: UserRecord{Active: true}, f: Features{DaysInactive: InactiveDays + 1, TxCount: 500}},
		{name: "deactivated account", rec: UserRecord{Active: false}, f: Features{DaysInactive: 5, TxCount: 500}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := ComputeScores(tc.rec, tc.f, DefaultParams())
			if s.EfficiencyScore != 0 {
				t.Fatalf("efficiency = %d, want 0", s.EfficiencyScore)
			}
		})
	}
}

func TestEfficiencyScoreRewardsUseAndPenalizesIdle(t *testing.T) {
	p := DefaultParams()
	rec := UserRecord{Active: true, Roles: []string{"itil", "approver"}}

	// base = min(40*0.5 + 2*4, 100) = 28, penalty = min(10*0.8, 50) = 8
	s := ComputeScores(rec, Features{DaysInactive: 10, TxCount: 40}, p)
	if s.EfficiencyScore != 20 {
		t.Fatalf("efficiency = %d, want 20", s.EfficiencyScore)
	}

	busy := ComputeScores(rec, Features{DaysInactive: 10, TxCount: 400}, p)
	if busy.EfficiencyScore <= s.EfficiencyScore {
		t.Fatalf("more transactions did not raise efficiency: %d <= %d", busy.EfficiencyScore, s.EfficiencyScore)
	}

	idle := ComputeScores(rec, Features{DaysInactive: 60, TxCount: 40}, p)
	if idle.EfficiencyScore >= s.EfficiencyScore {
		t.Fatalf("longer idle did not lower efficiency: %d >= %d", idle.EfficiencyScore, s.EfficiencyScore)
	}
}

func TestPrivilegeRiskDormantAdmin(t *testing.T) {
	p := DefaultParams()

	// admin weight 40, low activity +30, idle past warning +20.
	s := ComputeScores(
		UserRecord{Active: true, Roles: []string{"admin"}},
		Features{DaysInactive: 45, TxCount: 2},
		p,
	)
	if s.PrivilegeRisk != 90 {
		t.Fatalf("dormant admin risk = %d, want 90", s.PrivilegeRisk)
	}

	working := ComputeScores(
		UserRecord{Active: true, Roles: []string{"admin"}},
		Features{DaysInactive: 2, TxCount: 120},
		p,
	)
	if working.PrivilegeRisk != 40 {
		t.Fatalf("working admin risk = %d, want 40", working.PrivilegeRisk)
	}
}

func TestPrivilegeRiskITILWithoutWork(t *testing.T) {
	// itil weight 20, zero transactions +40, idle >60d +20.
	s := ComputeScores(
		UserRecord{Active: true, Roles: []string{"itil"}},
		Features{DaysInactive: 75, TxCount: 0},
		DefaultParams(),
	)
	if s.PrivilegeRisk != 80 {
		t.Fatalf("idle itil risk = %d, want 80", s.PrivilegeRisk)
	}
}

func TestPrivilegeRiskRoleWeightOverride(t *testing.T) {
	p := DefaultParams()
	p.RoleWeights = map[string]float64{"admin": 10}

	s := ComputeScores(
		UserRecord{Active: true, Roles: []string{"admin"}},
		Features{DaysInactive: 0, TxCount: 100},
		p,
	)
	if s.PrivilegeRisk != 10 {
		t.Fatalf("overridden admin weight risk = %d, want 10", s.PrivilegeRisk)
	}
}

func TestScoresStayInRange(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	extremes := []UserRecord{
		{Active: true, Roles: []string{"admin", "security_admin", "itil", "csm", "hr"}, LicenseCost: 5000},
		{Active: true, TransactionCount: 1000000, LastLogin: "2026-02-28"},
		{Active: false, TransactionCount: -50},
		{Active: true, LastLogin: "garbage"},
	}

	for i, rec := range extremes {
		f := ExtractFeatures(rec, now)
		s := ComputeScores(rec, f, DefaultParams())
		if s.PrivilegeRisk < 0 || s.PrivilegeRisk > 100 {
			t.Fatalf("record %d: privilege risk %d out of range", i, s.PrivilegeRisk)
		}
		if s.EfficiencyScore < 0 || s.EfficiencyScore > 100 {
			t.Fatalf("record %d: efficiency %d out of range", i, s.EfficiencyScore)
		}
	}
}
