package timeutil

import (
	"testing"
	"time"
)

func TestParseStart(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	got, err := ParseStart("2026-09-01", "13:30", loc)
	if err != nil {
		t.Fatalf("ParseStart: %v", err)
	}
	want := time.Date(2026, 9, 1, 13, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("ParseStart = %v, want %v", got, want)
	}

	if _, err := ParseStart("2026-13-01", "13:30", loc); err == nil {
		t.Fatal("expected error for invalid date")
	}
}

func TestConvertZone(t *testing.T) {
	t.Parallel()
	date, clock, err := ConvertZone("2026-09-01", "13:30", "UTC", "Europe/Berlin")
	if err != nil {
		t.Fatalf("ConvertZone: %v", err)
	}
	if date != "2026-09-01" || clock != "15:30" {
		t.Fatalf("ConvertZone = %s %s, want 2026-09-01 15:30", date, clock)
	}

	date, clock, err = ConvertZone("2026-09-01", "13:30", "UTC", "UTC")
	if err != nil || date != "2026-09-01" || clock != "13:30" {
		t.Fatalf("same-zone passthrough broken: %s %s %v", date, clock, err)
	}

	// Conversion can roll the date over.
	date, clock, err = ConvertZone("2026-09-01", "20:30", "UTC", "Asia/Tokyo")
	if err != nil {
		t.Fatalf("ConvertZone: %v", err)
	}
	if date != "2026-09-02" || clock != "05:30" {
		t.Fatalf("ConvertZone = %s %s, want 2026-09-02 05:30", date, clock)
	}
}

func TestConvertZoneBadZoneKeepsInput(t *testing.T) {
	t.Parallel()
	date, clock, err := ConvertZone("2026-09-01", "13:30", "UTC", "Mars/Olympus")
	if err == nil {
		t.Fatal("expected error for unknown zone")
	}
	if date != "2026-09-01" || clock != "13:30" {
		t.Fatalf("input not preserved on error: %s %s", date, clock)
	}
}

func TestZonePicker(t *testing.T) {
	t.Parallel()
	r, ok := RegionByKey("europe")
	if !ok || len(r.Zones) == 0 {
		t.Fatal("europe region missing")
	}
	if _, ok := RegionByKey("atlantis"); ok {
		t.Fatal("unknown region accepted")
	}
	if !KnownZone("Europe/Berlin") {
		t.Fatal("Europe/Berlin should be in the picker")
	}
	if KnownZone("Mars/Olympus") {
		t.Fatal("unknown zone accepted")
	}
	if got := ZoneLabel("Asia/Tokyo"); got == "Asia/Tokyo" {
		t.Fatal("curated zone should have a label")
	}
	if got := ZoneLabel("Antarctica/Troll"); got != "Antarctica/Troll" {
		t.Fatalf("uncurated zone label = %q, want passthrough", got)
	}

	// Every curated zone must load.
	for _, r := range Regions {
		for _, z := range r.Zones {
			if _, err := time.LoadLocation(z.ID); err != nil {
				t.Fatalf("zone %s does not load: %v", z.ID, err)
			}
		}
	}
}
