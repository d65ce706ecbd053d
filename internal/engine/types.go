package engine

import "time"

// Action is the closed set of remediation actions a Decision may carry.
// Financial and automation handling switch exhaustively over these values;
// adding an action means extending those switches.
type Action string

const (
	ActionDeactivate         Action = "deactivate"
	ActionRemovePaidRoles    Action = "remove_paid_roles"
	ActionDowngradeLicense   Action = "downgrade_license"
	ActionReviewAndDowngrade Action = "review_and_downgrade"
)

// Actions lists every defined action.
func Actions() []Action {
	return []Action{ActionDeactivate, ActionRemovePaidRoles, ActionDowngradeLicense, ActionReviewAndDowngrade}
}

// Valid reports whether a is one of the defined actions.
func (a Action) Valid() bool {
	switch a {
	case ActionDeactivate, ActionRemovePaidRoles, ActionDowngradeLicense, ActionReviewAndDowngrade:
		return true
	}
	return false
}

// UserRecord is one immutable account snapshot supplied by the directory sync.
type UserRecord struct {
	SysID            string   `json:"sys_id"`
	UserName         string   `json:"user_name"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	Department       string   `json:"department"`
	LicenseType      string   `json:"license_type"`
	Active           bool     `json:"active"`
	LastLogin        string   `json:"last_login"`
	TransactionCount int      `json:"transaction_count"`
	Roles            []string `json:"roles"`
	LicenseCost      float64  `json:"license_cost"`
}

// ScoreSet holds the derived per-user scores. Recomputed on every report run,
// never persisted on its own.
type ScoreSet struct {
	PrivilegeRisk   int `json:"privilege_risk"`
	EfficiencyScore int `json:"efficiency_score"`
	DaysInactive    int `json:"days_inactive"`
}

// Categories holds the independent boolean classifications for one user.
type Categories struct {
	NeverLoggedIn  bool
	Stale          bool
	Active         bool
	Inactive90Plus bool
	Warning        bool
	WastedLicense  bool
	Underutilized  bool
	Overlicensed   bool
	Duplicate      bool
	Integration    bool
}

// Decision is one recommended remediation action for one user.
type Decision struct {
	UserSysID     string  `json:"user_sys_id"`
	UserName      string  `json:"user_name"`
	Email         string  `json:"email"`
	Action        Action  `json:"action"`
	ConfidencePct int     `json:"confidence_pct"`
	MonthlySaving float64 `json:"monthly_saving"`
	Reason        string  `json:"reason"`
	DaysInactive  int     `json:"days_inactive"`
	TxCount       int     `json:"tx_count"`
	LastLogin     string  `json:"last_login"`
}

// Summary holds the population counts for a report.
type Summary struct {
	TotalUsers          int `json:"total_users"`
	ActiveUsers         int `json:"active_users"`
	InactiveUsers       int `json:"inactive_users"`
	WastedLicenses      int `json:"wasted_licenses"`
	UnderutilizedUsers  int `json:"underutilized_users"`
	OverlicensedUsers   int `json:"overlicensed_users"`
	IntegrationAccounts int `json:"integration_accounts"`
	DuplicateUsers      int `json:"duplicate_users"`
}

// Financials aggregates recoverable savings by cause.
type Financials struct {
	CurrentMonthlyCost       float64 `json:"current_monthly_cost"`
	MonthlySavingsPotential  float64 `json:"monthly_savings_potential"`
	AnnualSavingsPotential   float64 `json:"annual_savings_potential"`
	RecoverableFromInactive  float64 `json:"recoverable_from_inactive"`
	RecoverableFromWasted    float64 `json:"recoverable_from_wasted"`
	RecoverableFromOverlic   float64 `json:"recoverable_from_overlic"`
	RecoverableFromUnderutil float64 `json:"recoverable_from_underutil"`
	OptimizedMonthlyCost     float64 `json:"optimized_monthly_cost"`
}

// RiskyUser is one entry in the top-risky listing.
type RiskyUser struct {
	UserSysID     string   `json:"user_sys_id"`
	UserName      string   `json:"user_name"`
	PrivilegeRisk int      `json:"privilege_risk"`
	Roles         []string `json:"roles"`
	Reasons       []string `json:"reasons"`
}

// DepartmentStat is the per-department cost/waste rollup.
type DepartmentStat struct {
	Count      int     `json:"count"`
	Cost       float64 `json:"cost"`
	Waste      float64 `json:"waste"`
	WasteRatio float64 `json:"waste_ratio"`
}

// DuplicateUser is one email shared by two or more accounts.
type DuplicateUser struct {
	Email        string `json:"email"`
	AccountCount int    `json:"account_count"`
}

// Automation holds the confidence-band tallies.
type Automation struct {
	PendingApprovals int      `json:"pending_approvals"`
	AutoEligible     int      `json:"auto_eligible"`
	ManualReview     int      `json:"manual_review"`
	ActionsAvailable []string `json:"actions_available"`
}

// AuditEntry is one row of the last-login audit.
type AuditEntry struct {
	UserSysID    string `json:"user_sys_id"`
	UserName     string `json:"user_name"`
	Email        string `json:"email"`
	LastLogin    string `json:"last_login"`
	DaysInactive int    `json:"days_inactive"`
}

// LastLoginAudit partitions the snapshot by login recency.
type LastLoginAudit struct {
	Total         int          `json:"total"`
	NeverLoggedIn []AuditEntry `json:"never_logged_in"`
	StaleUsers    []AuditEntry `json:"stale_users"`
	ActiveUsers   []AuditEntry `json:"active_users"`
}

// Report is the immutable decision report generated from one snapshot.
type Report struct {
	Summary             Summary                   `json:"summary"`
	Financials          Financials                `json:"financials"`
	RiskScore           int                       `json:"risk_score"`
	Decisions           []Decision                `json:"decisions"`
	TopRiskyUsers       []RiskyUser               `json:"top_risky_users"`
	DepartmentBreakdown map[string]DepartmentStat `json:"department_breakdown"`
	DuplicateUsers      []DuplicateUser           `json:"duplicate_users"`
	Automation          Automation                `json:"automation"`
	LastLoginAudit      LastLoginAudit            `json:"last_login_audit"`
	InputWarnings       int                       `json:"input_warnings"`
	AIInsights          string                    `json:"ai_insights,omitempty"`
	GeneratedAt         time.Time                 `json:"generated_at"`
}

// FindDecision returns the decision for a user, if any.
func (r *Report) FindDecision(userSysID string) (Decision, bool) {
	for _, d := range r.Decisions {
		if d.UserSysID == userSysID {
			return d, true
		}
	}
	return Decision{}, false
}
