// Package matching resolves external billing customers to local clients.
//
// Matching runs an ordered list of strategies and keeps the first hit, so the
// result is deterministic and never ambiguous. There is no scoring.
package matching

import (
	"errors"
	"strings"
)

// ErrNoMatchFound is returned when no strategy resolved the customer.
var ErrNoMatchFound = errors.New("no_match_found")

// minContained is the shortest name accepted on the contained side of a
// substring match.
const minContained = 3

// ExternalCustomer is the billing platform's view of a customer.
type ExternalCustomer struct {
	ID             int64
	Reference      string
	Name           string
	RegistryNumber string
	VATNumber      string
	Emails         []string
}

// LocalClient is the firm's view of a client, reduced to the matching keys.
type LocalClient struct {
	ID             uint
	Name           string
	Cabinet        string
	RegistryNumber string
	ExternalRef    string
}

// StrategyFunc returns the matched client or nil.
type StrategyFunc func(c ExternalCustomer, clients []LocalClient) *LocalClient

// Strategy is a named matching step.
type Strategy struct {
	Name string
	Func StrategyFunc
}

const (
	StrategyExternalRef      = "external_ref"
	StrategyRegistryNumber   = "registry_number"
	StrategyNameExact        = "name_exact"
	StrategyNameCoreExact    = "name_core_exact"
	StrategyNameContains     = "name_contains"
	StrategyNameCoreContains = "name_core_contains"
)

// DefaultStrategies returns the matching chain in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{StrategyExternalRef, ByExternalRef},
		{StrategyRegistryNumber, ByRegistryNumber},
		{StrategyNameExact, byName(NormalizeName, equal)},
		{StrategyNameCoreExact, byName(CoreName, equal)},
		{StrategyNameContains, byName(NormalizeName, containsEither)},
		{StrategyNameCoreContains, byName(CoreName, containsEither)},
	}
}

// Result is a successful match.
type Result struct {
	Client   LocalClient
	Strategy string
}

// Matcher applies strategies in order, first success wins.
type Matcher struct {
	Strategies []Strategy
}

// New returns a Matcher with the default chain.
func New() *Matcher { return &Matcher{Strategies: DefaultStrategies()} }

// Match resolves customer against clients.
func (m *Matcher) Match(customer ExternalCustomer, clients []LocalClient) (Result, error) {
	for _, s := range m.Strategies {
		if hit := s.Func(customer, clients); hit != nil {
			return Result{Client: *hit, Strategy: s.Name}, nil
		}
	}
	return Result{}, ErrNoMatchFound
}

// Match runs the default chain.
func Match(customer ExternalCustomer, clients []LocalClient) (Result, error) {
	return New().Match(customer, clients)
}

// ByExternalRef matches the stable external reference stored on the client.
func ByExternalRef(c ExternalCustomer, clients []LocalClient) *LocalClient {
	ref := strings.TrimSpace(c.Reference)
	if ref == "" {
		return nil
	}
	for i := range clients {
		if strings.EqualFold(strings.TrimSpace(clients[i].ExternalRef), ref) {
			return &clients[i]
		}
	}
	return nil
}

// ByRegistryNumber matches on SIREN. One SIREN is one legal entity, so the
// key is trusted as universal; anything but a 9-digit SIREN on the customer
// skips the strategy.
func ByRegistryNumber(c ExternalCustomer, clients []LocalClient) *LocalClient {
	siren, err := RegistryNumber(c.RegistryNumber)
	if err != nil {
		return nil
	}
	for i := range clients {
		if own, err := LocalRegistryNumber(clients[i].RegistryNumber); err == nil && own == siren {
			return &clients[i]
		}
	}
	return nil
}

func byName(normalize func(string) string, cmp func(a, b string) bool) StrategyFunc {
	return func(c ExternalCustomer, clients []LocalClient) *LocalClient {
		name := normalize(c.Name)
		if name == "" {
			return nil
		}
		for i := range clients {
			other := normalize(clients[i].Name)
			if other != "" && cmp(name, other) {
				return &clients[i]
			}
		}
		return nil
	}
}

func equal(a, b string) bool { return a == b }

func containsEither(a, b string) bool {
	if len(b) >= minContained && strings.Contains(a, b) {
		return true
	}
	return len(a) >= minContained && strings.Contains(b, a)
}
