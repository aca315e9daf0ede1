package datakey

import (
	"strings"
)

// Namespace key parts for the three stored data families.
const (
	ticksPart       = "ticks"
	barsPart        = "bars"
	instrumentsPart = "instruments"
	wildcard        = "*"
)

// Provider builds fully qualified storage keys and wildcard patterns for
// tick, bar and instrument data. Keys are lower-cased and colon-delimited.
// Venue and symbol semantics are not validated, callers are trusted.
type Provider struct {
	namespace string
	venue     string
}

// NewProvider creates a key provider for the given namespace and venue.
// Namespace may be empty, in which case keys carry no namespace prefix.
func NewProvider(namespace, venue string) *Provider {
	return &Provider{namespace: namespace, venue: venue}
}

// TickKey returns the storage key for one day of tick data of a symbol.
func (p *Provider) TickKey(symbol string, date DateKey) string {
	return p.join(ticksPart, p.venue, symbol, date.String())
}

// TickPattern returns the wildcard pattern matching every stored day of
// tick data of a symbol.
func (p *Provider) TickPattern(symbol string) string {
	return p.join(ticksPart, p.venue, symbol, wildcard)
}

// BarKey returns the storage key for one day of bar data of one
// aggregation stream.
func (p *Provider) BarKey(symbol, specification string, date DateKey) string {
	return p.join(barsPart, p.venue, symbol, specification, date.String())
}

// BarPattern returns the wildcard pattern matching every stored day of
// bar data of one aggregation stream.
func (p *Provider) BarPattern(symbol, specification string) string {
	return p.join(barsPart, p.venue, symbol, specification, wildcard)
}

// InstrumentKey returns the storage key for the instrument definition of a symbol.
func (p *Provider) InstrumentKey(symbol string) string {
	return p.join(instrumentsPart, symbol)
}

func (p *Provider) join(parts ...string) string {
	if p.namespace != "" {
		parts = append([]string{p.namespace}, parts...)
	}
	return strings.ToLower(strings.Join(parts, ":"))
}
