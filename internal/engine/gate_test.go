package engine

import "testing"

func TestBandBoundaries(t *testing.T) {
	cases := []struct {
		conf int
		want string
	}{
		{conf: 0, want: BandManualReview},
		{conf: 79, want: BandManualReview},
		{conf: 80, want: BandPendingApprovals},
		{conf: 94, want: BandPendingApprovals},
		{conf: 95, want: BandAutoEligible},
		{conf: 100, want: BandAutoEligible},
	}

	for _, tc := range cases {
		if got := Band(tc.conf); got != tc.want {
			t.Fatalf("Band(%d) = %q, want %q", tc.conf, got, tc.want)
		}
	}
}

func TestBulkEligible(t *testing.T) {
	if BulkEligible(79) {
		t.Fatalf("confidence 79 must stay manual")
	}
	if !BulkEligible(80) {
		t.Fatalf("confidence 80 must be bulk eligible")
	}
	if !BulkEligible(95) {
		t.Fatalf("confidence 95 must be bulk eligible")
	}
}

func TestActionSetIsClosed(t *testing.T) {
	all := Actions()
	if len(all) != 4 {
		t.Fatalf("actions = %d, want 4", len(all))
	}
	for _, a := range all {
		if !a.Valid() {
			t.Fatalf("listed action %q reports invalid", a)
		}
	}
	if Action("delete_user").Valid() {
		t.Fatalf("unknown action reported valid")
	}
}
