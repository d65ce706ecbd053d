package costs

import (
	"context"
	"testing"
)

func TestEffectiveOverlaysDefaults(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	base, err := svc.Effective(ctx)
	if err != nil {
		t.Fatalf("Effective: %v", err)
	}
	if base["itil"] != 100 || base["requester"] != 20 {
		t.Fatalf("defaults missing: itil=%v requester=%v", base["itil"], base["requester"])
	}

	if err := svc.SetOverride(ctx, "ITIL", 110); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if err := svc.SetOverride(ctx, "custom_tier", 45); err != nil {
		t.Fatalf("SetOverride custom: %v", err)
	}

	table, err := svc.Effective(ctx)
	if err != nil {
		t.Fatalf("Effective: %v", err)
	}
	if table["itil"] != 110 {
		t.Fatalf("override did not win: itil=%v", table["itil"])
	}
	if table["custom_tier"] != 45 {
		t.Fatalf("new tier not added: %v", table["custom_tier"])
	}
	if table["admin"] != 150 {
		t.Fatalf("untouched default changed: admin=%v", table["admin"])
	}
}

func TestSetOverrideValidation(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	if err := svc.SetOverride(ctx, "  ", 10); err == nil {
		t.Fatalf("blank license accepted")
	}
	if err := svc.SetOverride(ctx, "itil", -5); err == nil {
		t.Fatalf("negative cost accepted")
	}
}

func TestEffectiveDoesNotMutateDefaults(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	if err := svc.SetOverride(ctx, "itil", 1); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if _, err := svc.Effective(ctx); err != nil {
		t.Fatalf("Effective: %v", err)
	}

	fresh := NewService()
	table, err := fresh.Effective(ctx)
	if err != nil {
		t.Fatalf("Effective: %v", err)
	}
	if table["itil"] != 100 {
		t.Fatalf("built-in table mutated: itil=%v", table["itil"])
	}
}
