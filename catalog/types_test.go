package catalog

import (
	"testing"
	"time"
)

func TestTimeInfoOpen_ZeroWindowAlwaysOpen(t *testing.T) {
	var info TimeInfo
	if !info.Open(time.Unix(0, 0)) || !info.Open(time.Unix(1<<40, 0)) {
		t.Error("zero window should be open at any instant")
	}
}

func TestTimeInfoOpen_Bounds(t *testing.T) {
	info := NewTimeInfo(1000, 2000, 0, 0)

	cases := []struct {
		at   int64
		open bool
	}{
		{999, false},
		{1000, true},
		{1500, true},
		{2000, true},
		{2001, false},
	}
	for _, tc := range cases {
		if got := info.Open(time.Unix(tc.at, 0)); got != tc.open {
			t.Errorf("Open(%d) = %v, want %v", tc.at, got, tc.open)
		}
	}
}

func TestTimeInfoOpen_Interval(t *testing.T) {
	// GIVEN: A window starting at t=1000, open 100s, closed 50s, repeating
	info := NewTimeInfo(1000, 0, 100, 50)

	cases := []struct {
		at   int64
		open bool
	}{
		{1000, true},  // first cycle opens
		{1099, true},  // last open second of first cycle
		{1100, false}, // delay begins
		{1149, false}, // last closed second
		{1150, true},  // second cycle opens
		{1249, true},
		{1250, false},
	}
	for _, tc := range cases {
		if got := info.Open(time.Unix(tc.at, 0)); got != tc.open {
			t.Errorf("Open(%d) = %v, want %v", tc.at, got, tc.open)
		}
	}
}

func TestTimeInfoOpen_IntervalRespectsEnd(t *testing.T) {
	info := NewTimeInfo(1000, 1200, 100, 50)
	if info.Open(time.Unix(1150, 0)) != true {
		t.Error("second cycle before end should be open")
	}
	if info.Open(time.Unix(1201, 0)) {
		t.Error("window past End must be closed even mid-cycle")
	}
}

func TestScopeTags(t *testing.T) {
	scoped := ScopeTags([]string{"sale", "featured"}, "app1")
	want := []string{"sale_app1", "featured_app1"}
	for i := range want {
		if scoped[i] != want[i] {
			t.Errorf("scoped[%d] = %q, want %q", i, scoped[i], want[i])
		}
	}

	// No appID: tags pass through untouched.
	plain := ScopeTags([]string{"sale"}, "")
	if plain[0] != "sale" {
		t.Errorf("unscoped tag = %q, want %q", plain[0], "sale")
	}
}

func TestPatchApply_OnlySetFieldsChange(t *testing.T) {
	offer := Offer{
		ID:          "o1",
		Name:        "Starter Pack",
		Description: "old",
		Tags:        []string{"a"},
		Properties:  "{}",
	}

	name := "Mega Pack"
	updated := Patch{Name: &name}.Apply(offer)

	if updated.Name != "Mega Pack" {
		t.Errorf("Name = %q, want %q", updated.Name, "Mega Pack")
	}
	if updated.Description != "old" || len(updated.Tags) != 1 || updated.Properties != "{}" {
		t.Error("fields outside the patch must not change")
	}
}

func TestPatchIsZero(t *testing.T) {
	if !(Patch{}).IsZero() {
		t.Error("empty patch should be zero")
	}
	s := "x"
	if (Patch{Name: &s}).IsZero() {
		t.Error("patch with a field set should not be zero")
	}
}

func TestAddOfferValidate(t *testing.T) {
	valid := AddOffer{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	if err := (AddOffer{ItemIDs: []string{"i1"}}).Validate(); err == nil {
		t.Error("missing appIds should be rejected")
	}
	if err := (AddOffer{AppIDs: []string{"app1"}}).Validate(); err == nil {
		t.Error("missing itemIds should be rejected")
	}
}

func TestValidateProperties(t *testing.T) {
	if err := ValidateProperties(`{"level": 5}`); err != nil {
		t.Errorf("valid JSON rejected: %v", err)
	}
	if err := ValidateProperties(`{broken`); err == nil {
		t.Error("malformed JSON should be rejected")
	}
}
