package engine

// Params carries the tunable knobs for report evaluation. The confidence
// curve and role weights are deployment configuration; classification
// thresholds and automation bands are fixed constants.
type Params struct {
	// CostTable maps license tier to monthly cost. Nil falls back to the
	// built-in table.
	CostTable map[string]float64

	// RoleWeights overrides the base privilege-risk weight per role.
	RoleWeights map[string]float64

	// Deactivate confidence curve: min(Saturation, Base + Slope*daysInactive).
	ConfBase       float64
	ConfSlope      float64
	ConfSaturation float64

	// Fixed confidences for the wasted-license and underutilized rules.
	// Underutilized is clamped below the approval band no matter the setting.
	ConfWasted    float64
	ConfUnderutil float64

	// MinDeptSize is the minimum licensed headcount before a department
	// median is trusted for the underutilized signal.
	MinDeptSize int

	// MaxWorkers bounds the per-user evaluation fan-out.
	MaxWorkers int
}

// DefaultParams returns the standard tuning.
func DefaultParams() Params {
	return Params{
		ConfBase:       62,
		ConfSlope:      0.2,
		ConfSaturation: 98,
		ConfWasted:     88,
		ConfUnderutil:  65,
		MinDeptSize:    4,
		MaxWorkers:     8,
	}
}

func (p Params) normalized() Params {
	out := p
	if out.CostTable == nil {
		out.CostTable = defaultCostTable
	}
	if out.ConfBase <= 0 {
		out.ConfBase = 62
	}
	if out.ConfSlope <= 0 {
		out.ConfSlope = 0.2
	}
	if out.ConfSaturation <= 0 || out.ConfSaturation > 100 {
		out.ConfSaturation = 98
	}
	if out.ConfWasted <= 0 || out.ConfWasted > 100 {
		out.ConfWasted = 88
	}
	if out.ConfUnderutil <= 0 {
		out.ConfUnderutil = 65
	}
	if out.MinDeptSize <= 0 {
		out.MinDeptSize = 4
	}
	if out.MaxWorkers <= 0 {
		out.MaxWorkers = 8
	}
	return out
}
