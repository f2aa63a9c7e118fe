package alerts

import (
	"testing"
	"time"

	"hazard-alerts/internal/events"
)

var t0 = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

func TestActivationTime(t *testing.T) {
	expiration := t0.Add(60 * time.Minute)

	tests := []struct {
		name      string
		criterion Criterion
		now       time.Time
		want      time.Time
	}{
		{
			name:      "percent 90 of one hour",
			criterion: Criterion{Units: UnitsPercent, Threshold: 90},
			now:       t0,
			want:      t0.Add(54 * time.Minute),
		},
		{
			name:      "percent 0 is immediate",
			criterion: Criterion{Units: UnitsPercent, Threshold: 0},
			now:       t0,
			want:      t0,
		},
		{
			name:      "percent 100 is expiration",
			criterion: Criterion{Units: UnitsPercent, Threshold: 100},
			now:       t0,
			want:      expiration,
		},
		{
			name:      "percent relative to later now",
			criterion: Criterion{Units: UnitsPercent, Threshold: 50},
			now:       t0.Add(20 * time.Minute),
			want:      t0.Add(40 * time.Minute),
		},
		{
			name:      "fixed offset 15 minutes",
			criterion: Criterion{Units: UnitsFixedOffset, Threshold: float64((15 * time.Minute).Milliseconds())},
			now:       t0,
			want:      t0.Add(45 * time.Minute),
		},
		{
			name:      "fixed offset ignores now",
			criterion: Criterion{Units: UnitsFixedOffset, Threshold: float64((15 * time.Minute).Milliseconds())},
			now:       t0.Add(50 * time.Minute),
			want:      t0.Add(45 * time.Minute),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ActivationTime(tt.criterion, expiration, tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("ActivationTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeactivationTime(t *testing.T) {
	expiration := t0.Add(time.Hour)
	if got := DeactivationTime(expiration, 0); !got.Equal(expiration) {
		t.Errorf("DeactivationTime(delay=0) = %v, want %v", got, expiration)
	}
	if got := DeactivationTime(expiration, 10*time.Minute); !got.Equal(expiration.Add(10 * time.Minute)) {
		t.Errorf("DeactivationTime(delay=10m) = %v, want %v", got, expiration.Add(10*time.Minute))
	}
}

func TestBuildAlerts(t *testing.T) {
	event := &events.HazardEvent{
		EventID:        "ev-1",
		Status:         events.StatusIssued,
		Phenomenon:     "FF",
		Significance:   "W",
		ExpirationTime: t0.Add(time.Hour),
		EndTime:        t0.Add(90 * time.Minute),
	}
	c := Criterion{
		Name:           "ninety",
		Units:          UnitsPercent,
		Threshold:      90,
		Manifestations: []Manifestation{ManifestationConsole, ManifestationSpatial, ManifestationPopup},
		Color:          "#ff0000",
	}
	activation := t0.Add(54 * time.Minute)
	deactivation := t0.Add(time.Hour)

	got := BuildAlerts(c, event, activation, deactivation)
	if len(got) != 3 {
		t.Fatalf("BuildAlerts() returned %d alerts, want 3", len(got))
	}

	wantKinds := []Kind{KindConsoleTimer, KindSpatialTimer, KindPopup}
	for i, a := range got {
		if a.Kind != wantKinds[i] {
			t.Errorf("alert %d kind = %s, want %s", i, a.Kind, wantKinds[i])
		}
		if a.EventID != "ev-1" || a.Criterion.Name != "ninety" {
			t.Errorf("alert %d identity = %s/%s", i, a.EventID, a.Criterion.Name)
		}
		if !a.ActivationTime.Equal(activation) || !a.DeactivationTime.Equal(deactivation) {
			t.Errorf("alert %d times = %v/%v", i, a.ActivationTime, a.DeactivationTime)
		}
		if !a.HazardExpiration.Equal(event.ExpirationTime) || !a.HazardEnd.Equal(event.EndTime) {
			t.Errorf("alert %d hazard times = %v/%v", i, a.HazardExpiration, a.HazardEnd)
		}
		if a.State != StateScheduled {
			t.Errorf("alert %d state = %s, want SCHEDULED", i, a.State)
		}
	}
}

func TestBuildAlerts_SkipsUnknownManifestation(t *testing.T) {
	event := &events.HazardEvent{EventID: "ev-1"}
	c := Criterion{Name: "odd", Manifestations: []Manifestation{"SIREN", ManifestationPopup}}
	got := BuildAlerts(c, event, t0, t0)
	if len(got) != 1 || got[0].Kind != KindPopup {
		t.Errorf("BuildAlerts() = %+v, want one popup alert", got)
	}
}

func TestCriterion_Validate(t *testing.T) {
	tests := []struct {
		name      string
		criterion Criterion
		wantErr   bool
	}{
		{
			name:      "valid percent",
			criterion: Criterion{Name: "c", Units: UnitsPercent, Threshold: 90, Manifestations: []Manifestation{ManifestationConsole}},
		},
		{
			name:      "valid offset",
			criterion: Criterion{Name: "c", Units: UnitsFixedOffset, Threshold: 900000, Manifestations: []Manifestation{ManifestationSpatial}},
		},
		{
			name:      "empty name",
			criterion: Criterion{Units: UnitsPercent, Threshold: 90, Manifestations: []Manifestation{ManifestationConsole}},
			wantErr:   true,
		},
		{
			name:      "percent above 100",
			criterion: Criterion{Name: "c", Units: UnitsPercent, Threshold: 120, Manifestations: []Manifestation{ManifestationConsole}},
			wantErr:   true,
		},
		{
			name:      "negative offset",
			criterion: Criterion{Name: "c", Units: UnitsFixedOffset, Threshold: -1, Manifestations: []Manifestation{ManifestationConsole}},
			wantErr:   true,
		},
		{
			name:      "unknown units",
			criterion: Criterion{Name: "c", Units: "HOURS", Threshold: 1, Manifestations: []Manifestation{ManifestationConsole}},
			wantErr:   true,
		},
		{
			name:      "no manifestations",
			criterion: Criterion{Name: "c", Units: UnitsPercent, Threshold: 90},
			wantErr:   true,
		},
		{
			name:      "unknown manifestation",
			criterion: Criterion{Name: "c", Units: UnitsPercent, Threshold: 90, Manifestations: []Manifestation{"SIREN"}},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.criterion.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAlert_IdentityAndTiming(t *testing.T) {
	a := Alert{
		EventID:          "ev-1",
		Criterion:        Criterion{Name: "c"},
		Kind:             KindConsoleTimer,
		ActivationTime:   t0.Add(10 * time.Minute),
		DeactivationTime: t0.Add(time.Hour),
	}
	b := a
	b.ActivationTime = t0.Add(20 * time.Minute)
	b.State = StateActive
	if !a.Same(b) {
		t.Error("Same() = false for alerts differing only in timing and state")
	}
	if a.Key() != b.Key() {
		t.Errorf("Key() mismatch: %q vs %q", a.Key(), b.Key())
	}

	c := a
	c.Kind = KindSpatialTimer
	if a.Same(c) {
		t.Error("Same() = true for alerts of different kinds")
	}

	if a.ReadyToActivate(t0) {
		t.Error("ReadyToActivate(t0) = true, want false")
	}
	if !a.ReadyToActivate(t0.Add(10 * time.Minute)) {
		t.Error("ReadyToActivate(activation) = false, want true")
	}
	if a.Stale(t0.Add(time.Hour)) {
		t.Error("Stale(deactivation) = true, want false")
	}
	if !a.Stale(t0.Add(time.Hour + time.Second)) {
		t.Error("Stale(after deactivation) = false, want true")
	}
}

func TestImmediateCriterion(t *testing.T) {
	if err := Immediate.Validate(); err != nil {
		t.Fatalf("Immediate.Validate() error = %v", err)
	}
	expiration := t0.Add(time.Hour)
	if got := ActivationTime(Immediate, expiration, t0); !got.Equal(t0) {
		t.Errorf("ActivationTime(Immediate) = %v, want %v", got, t0)
	}
}
