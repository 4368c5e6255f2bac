// Package geo enriches peer log events with GeoIP country data when a
// MaxMind database is configured.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/sirupsen/logrus"
)

// Resolver looks up the country for peer addresses. Safe for concurrent use;
// geoip2.Reader allows concurrent lookups.
type Resolver struct {
	db *geoip2.Reader
}

// Open loads a GeoLite2/GeoIP2 country or city database.
func Open(path string) (*Resolver, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	return &Resolver{db: db}, nil
}

// Close releases the database.
func (r *Resolver) Close() error {
	return r.db.Close()
}

// Fields implements tarpit.PeerInfo. Unresolvable peers get no extra fields;
// a tarpit must never fail a connection over log decoration.
func (r *Resolver) Fields(peer net.Addr) logrus.Fields {
	host, _, err := net.SplitHostPort(peer.String())
	if err != nil {
		host = peer.String()
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	country, err := r.db.Country(ip)
	if err != nil || country.Country.IsoCode == "" {
		return nil
	}
	return logrus.Fields{"country": country.Country.IsoCode}
}
