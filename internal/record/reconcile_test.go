package record

import "testing"

func TestReconcileCoversAllInputs(t *testing.T) {
	cases := []struct {
		name       string
		in         ReconcileInput
		want       PathChoice
		wantReason bool
	}{
		{"primary clean", ReconcileInput{PrimaryOK: true, FallbackOK: true}, ChoosePrimary, false},
		{"primary only", ReconcileInput{PrimaryOK: true}, ChoosePrimary, false},
		{"audio gap with fallback", ReconcileInput{PrimaryOK: true, FallbackOK: true, AudioRequiredButMissingFromPrimary: true}, ChooseFallback, true},
		{"audio gap without fallback", ReconcileInput{PrimaryOK: true, AudioRequiredButMissingFromPrimary: true}, ChoosePrimary, true},
		{"fallback only", ReconcileInput{FallbackOK: true}, ChooseFallback, true},
		{"fallback only with audio gap", ReconcileInput{FallbackOK: true, AudioRequiredButMissingFromPrimary: true}, ChooseFallback, true},
		{"nothing", ReconcileInput{}, ChooseNone, false},
		{"nothing despite audio flag", ReconcileInput{AudioRequiredButMissingFromPrimary: true}, ChooseNone, false},
	}
	for _, tc := range cases {
		got := Reconcile(tc.in)
		if got.Use != tc.want {
			t.Errorf("%s: Use = %q, want %q", tc.name, got.Use, tc.want)
		}
		if (got.Reason != "") != tc.wantReason {
			t.Errorf("%s: Reason = %q, wantReason=%v", tc.name, got.Reason, tc.wantReason)
		}
	}
}

func TestReconcileIsPure(t *testing.T) {
	in := ReconcileInput{PrimaryOK: true, FallbackOK: true, AudioRequiredButMissingFromPrimary: true}
	first := Reconcile(in)
	for i := 0; i < 3; i++ {
		if got := Reconcile(in); got != first {
			t.Fatalf("call %d differed: %+v vs %+v", i, got, first)
		}
	}
}
