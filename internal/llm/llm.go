package llm

import (
	"context"
	"fmt"
)

// Client abstracts narrative providers that turn report aggregates into
// a short executive summary.
type Client interface {
	SummarizeReport(ctx context.Context, input SummaryInput) (string, error)
}

// SummaryInput carries the aggregates a provider needs to write the
// insights paragraph. It deliberately excludes user names and sys_ids.
type SummaryInput struct {
	TotalUsers      int
	ActiveUsers     int
	InactiveUsers   int
	DecisionCount   int
	AutoEligible    int
	PendingApproval int
	ManualReview    int
	MonthlySavings  float64
	AnnualSavings   float64
	WasteRatio      float64
	RiskScore       float64
	ActionCounts    map[string]int
}

// PlaceholderClient renders a deterministic summary from the aggregates.
// It is the default provider so reports always carry an insights section.
type PlaceholderClient struct{}

// SummarizeReport formats the aggregates into plain prose without calling
// any external service.
func (PlaceholderClient) SummarizeReport(ctx context.Context, input SummaryInput) (string, error) {
	_ = ctx
	if input.TotalUsers == 0 {
		return "No licensed users were evaluated in this run.", nil
	}
	summary := fmt.Sprintf(
		"Reviewed %d users (%d inactive) and produced %d license decisions worth $%.2f/month ($%.2f/year). %d decisions qualify for automated execution, %d need approval and %d require manual review. Overall license risk score: %.0f/100.",
		input.TotalUsers,
		input.InactiveUsers,
		input.DecisionCount,
		input.MonthlySavings,
		input.AnnualSavings,
		input.AutoEligible,
		input.PendingApproval,
		input.ManualReview,
		input.RiskScore,
	)
	return summary, nil
}

var _ Client = (*PlaceholderClient)(nil)
