package geoip

import "testing"

func TestOpen_EmptyPathDisablesLookup(t *testing.T) {
	l := Open("")
	loc := l.Lookup("203.0.113.7")
	if loc.Country != "" || loc.City != "" {
		t.Errorf("lookup without database = %+v, want zero", loc)
	}
	if err := l.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestOpen_MissingFileDisablesLookup(t *testing.T) {
	l := Open("/nonexistent/GeoLite2-City.mmdb")
	if loc := l.Lookup("203.0.113.7"); loc != (Location{}) {
		t.Errorf("lookup with missing database = %+v, want zero", loc)
	}
}

func TestLookup_InvalidIP(t *testing.T) {
	l := Open("")
	if loc := l.Lookup("not-an-ip"); loc != (Location{}) {
		t.Errorf("lookup of invalid IP = %+v, want zero", loc)
	}
}

func TestLookup_NilLocator(t *testing.T) {
	var l *Locator
	if loc := l.Lookup("203.0.113.7"); loc != (Location{}) {
		t.Errorf("nil locator lookup = %+v, want zero", loc)
	}
}
