package domain

import (
	"testing"
)

func TestRangeStatusIsValid(t *testing.T) {
	valid := []RangeStatus{
		RangeOptimal, RangeNormal, RangeLow, RangeHigh,
		RangeCriticalLow, RangeCriticalHigh, RangeUnknown,
	}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("expected %s to be valid", s)
		}
	}

	if RangeStatus("ELEVATED").IsValid() {
		t.Error("expected ELEVATED to be invalid")
	}
	if RangeUnknown.IsClassified() {
		t.Error("UNKNOWN must not count as classified")
	}
	if !RangeHigh.IsClassified() {
		t.Error("HIGH must count as classified")
	}
}

func TestGateTierIsValid(t *testing.T) {
	for _, tier := range []GateTier{TierBlock, TierCaution, TierFlag} {
		if !tier.IsValid() {
			t.Errorf("expected tier %d to be valid", tier)
		}
	}
	if GateTier(0).IsValid() || GateTier(4).IsValid() {
		t.Error("tiers outside 1..3 must be invalid")
	}
}

func TestLineForSex(t *testing.T) {
	tests := []struct {
		sex  Sex
		want ProductLine
	}{
		{SexMale, LineMale},
		{SexFemale, LineFemale},
	}
	for _, tt := range tests {
		if got := LineForSex(tt.sex); got != tt.want {
			t.Errorf("LineForSex(%s) = %s, want %s", tt.sex, got, tt.want)
		}
	}
}

func TestUserContextLine(t *testing.T) {
	u := UserContext{Sex: SexFemale}
	if u.Line() != LineFemale {
		t.Errorf("expected default line FEMALE, got %s", u.Line())
	}

	u = UserContext{Sex: SexFemale, ProductLine: LineMale}
	if u.Line() != LineMale {
		t.Errorf("explicit product line must win, got %s", u.Line())
	}
}

func TestGovernanceStatusIsValid(t *testing.T) {
	for _, s := range []GovernanceStatus{StatusActive, StatusBlocked, StatusPending, StatusSuspended} {
		if !s.IsValid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if GovernanceStatus("DELETED").IsValid() {
		t.Error("rows are never deleted; DELETED must be invalid")
	}
}

func TestIntentValidate(t *testing.T) {
	tests := []struct {
		name    string
		intent  Intent
		wantErr bool
	}{
		{"valid", Intent{Code: "INTENT_SLEEP", Priority: 1, Source: IntentFromGoal}, false},
		{"zero priority", Intent{Code: "INTENT_SLEEP", Priority: 0, Source: IntentFromGoal}, true},
		{"missing code", Intent{Priority: 1, Source: IntentFromGoal}, true},
		{"bad source", Intent{Code: "X", Priority: 1, Source: IntentSource("ad")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.intent.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
