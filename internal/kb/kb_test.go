package kb

import "testing"

func TestLoadSeed(t *testing.T) {
	b, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if b.Len() == 0 {
		t.Fatalf("expected seed entries")
	}
	e := b.Lookup(110, 0)
	if e.Severity != "High" || e.CanRun || len(e.SOP) == 0 {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestLookupUnknown(t *testing.T) {
	b, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	e := b.Lookup(999999, 31)
	if e.Title != "Unknown" || e.Severity != "Low" || !e.CanRun || e.SOP == nil || len(e.SOP) != 0 {
		t.Fatalf("unexpected default entry: %+v", e)
	}

	var nilBase *Base
	if nilBase.Lookup(1, 1).Title != "Unknown" {
		t.Fatalf("expected nil base to return default")
	}
}

func TestParseFirstEntryWins(t *testing.T) {
	b, err := Parse([]byte(`[
		{"spn": 1, "fmi": 2, "title": "first", "severity": "High"},
		{"spn": 1, "fmi": 2, "title": "second", "severity": "Low"},
		{"title": "no key"}
	]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if b.Len() != 1 || b.Lookup(1, 2).Title != "first" {
		t.Fatalf("expected first entry to win")
	}
	if b.Lookup(1, 2).SOP == nil {
		t.Fatalf("expected empty sop slice instead of nil")
	}
	if _, err := Parse([]byte(`{`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
