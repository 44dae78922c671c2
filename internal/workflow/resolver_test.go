package workflow

import "testing"

func TestResolveClassifiesVerifyResponses(t *testing.T) {
	cases := []struct {
		name string
		res  VerifyResult
		want VerdictKind
	}{
		{"plain success", VerifyResult{Success: true}, VerdictNeedsProfile},
		{"not eligible", VerifyResult{Success: false, Message: MsgNotEligible}, VerdictNotEligible},
		{"failure without message", VerifyResult{Success: false}, VerdictNotEligible},
		{"expired eligibility", VerifyResult{Success: true, Message: MsgEligibilityExpired}, VerdictExpired},
		{"expired case insensitive", VerifyResult{Success: true, Message: "ELIGIBILITY EXPIRED"}, VerdictExpired},
		{
			"already eligible",
			VerifyResult{Success: true, CustomerID: "c1", MaxEligibilityAmount: 50000, TenureDays: 30},
			VerdictAlreadyEligible,
		},
		{"customer id without amount", VerifyResult{Success: true, CustomerID: "c1"}, VerdictNeedsProfile},
		{"amount without customer id", VerifyResult{Success: true, MaxEligibilityAmount: 50000}, VerdictNeedsProfile},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.res)
			if got.Kind != tc.want {
				t.Fatalf("Resolve(%+v) = %s, want %s", tc.res, got.Kind, tc.want)
			}
		})
	}
}

func TestResolveCarriesEligibilityTerms(t *testing.T) {
	v := Resolve(VerifyResult{Success: true, CustomerID: "c1", MaxEligibilityAmount: 50000, TenureDays: 30})
	if v.CustomerID != "c1" || v.Amount != 50000 || v.TenureDays != 30 {
		t.Fatalf("expected eligibility terms to survive classification, got %+v", v)
	}
}

func TestResolveDefaultsNotEligibleMessage(t *testing.T) {
	v := Resolve(VerifyResult{Success: false})
	if v.Message != MsgNotEligible {
		t.Fatalf("expected default message %q, got %q", MsgNotEligible, v.Message)
	}
}
