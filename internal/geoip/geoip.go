package geoip

import (
	"log/slog"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Locator resolves client IPs to coarse locations for view analytics.
// With no database configured every lookup returns the zero Location.
type Locator struct {
	db *maxminddb.Reader
}

type Location struct {
	Country string
	City    string
}

type mmRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

func Open(dbPath string) *Locator {
	if dbPath == "" {
		return &Locator{}
	}
	db, err := maxminddb.Open(dbPath)
	if err != nil {
		slog.Warn("geoip: failed to open database, geolocation disabled", "path", dbPath, "error", err)
		return &Locator{}
	}
	slog.Info("geoip: loaded database", "path", dbPath)
	return &Locator{db: db}
}

func (l *Locator) Lookup(ipStr string) Location {
	if l == nil || l.db == nil || ipStr == "" {
		return Location{}
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Location{}
	}
	var rec mmRecord
	if err := l.db.Lookup(ip, &rec); err != nil {
		return Location{}
	}
	return Location{Country: rec.Country.ISOCode, City: rec.City.Names["en"]}
}

func (l *Locator) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}
