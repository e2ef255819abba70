package matching

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryNumber(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"123456789", "123456789", false},
		{"123 456 789", "123456789", false},
		{"123.456.789", "123456789", false},
		{"12345678900011", "", true},
		{"12345678", "", true},
		{"FR123456789", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := RegistryNumber(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrAmbiguousRegistryNumber)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalRegistryNumber(t *testing.T) {
	got, err := LocalRegistryNumber("123 456 789 00011")
	require.NoError(t, err)
	assert.Equal(t, "123456789", got)
	got, err = LocalRegistryNumber("123456789")
	require.NoError(t, err)
	assert.Equal(t, "123456789", got)
	_, err = LocalRegistryNumber("1234567890")
	assert.ErrorIs(t, err, ErrAmbiguousRegistryNumber)
}

func TestMatch_SiretOnlyOnLocalSide(t *testing.T) {
	clients := []LocalClient{
		{ID: 1, Name: "Dupont", RegistryNumber: "98765432100017"},
		{ID: 2, Name: "Martin", RegistryNumber: "123456789"},
	}
	res, err := Match(ExternalCustomer{Name: "Autre", RegistryNumber: "987654321"}, clients)
	require.NoError(t, err)
	assert.Equal(t, uint(1), res.Client.ID)
	assert.Equal(t, StrategyRegistryNumber, res.Strategy)

	// A customer SIRET is not a valid key and falls through to names.
	res, err = Match(ExternalCustomer{Name: "Martin", RegistryNumber: "12345678900011"}, clients)
	require.NoError(t, err)
	assert.Equal(t, uint(2), res.Client.ID)
	assert.Equal(t, StrategyNameExact, res.Strategy)
}

func TestNormalizeAndCoreName(t *testing.T) {
	assert.Equal(t, "boulangeriedupont", NormalizeName("Boulangerie  DUPONT"))
	assert.Equal(t, "cafedelagare", NormalizeName("Café de la Gare!"))
	assert.Equal(t, "dupont", CoreName("SARL Dupont"))
	assert.Equal(t, "dupont", CoreName("Dupont Holding SAS"))
	assert.Equal(t, "martinfreres", CoreName("Martin Frères France"))
	assert.Equal(t, "sarl", CoreName("SARL"))
}

func TestMatch_StrategyChain(t *testing.T) {
	clients := []LocalClient{
		{ID: 1, Name: "Boulangerie Dupont", RegistryNumber: "111111111"},
		{ID: 2, Name: "Garage Martin SARL", RegistryNumber: "222222222"},
		{ID: 3, Name: "Cabinet Leroy", ExternalRef: "ref-3"},
		{ID: 4, Name: "Transports Petit et Fils"},
	}
	tests := []struct {
		name     string
		customer ExternalCustomer
		wantID   uint
		strategy string
	}{
		{"external ref", ExternalCustomer{Reference: "REF-3", Name: "Whatever"}, 3, StrategyExternalRef},
		{"registry number", ExternalCustomer{Name: "Other name", RegistryNumber: "222 222 222"}, 2, StrategyRegistryNumber},
		{"exact name", ExternalCustomer{Name: "BOULANGERIE DUPONT"}, 1, StrategyNameExact},
		{"core name", ExternalCustomer{Name: "Garage Martin"}, 2, StrategyNameCoreExact},
		{"contains", ExternalCustomer{Name: "Transports Petit"}, 4, StrategyNameContains},
		{"core contains", ExternalCustomer{Name: "SAS Leroy Conseil"}, 3, StrategyNameCoreContains},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Match(tt.customer, clients)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, res.Client.ID)
			assert.Equal(t, tt.strategy, res.Strategy)
		})
	}
}

func TestMatch_RegistryNumberBeatsName(t *testing.T) {
	clients := []LocalClient{
		{ID: 1, Name: "Dupont"},
		{ID: 2, Name: "Société sans rapport", RegistryNumber: "987654321"},
	}
	res, err := Match(ExternalCustomer{Name: "Dupont", RegistryNumber: "987654321"}, clients)
	require.NoError(t, err)
	assert.Equal(t, uint(2), res.Client.ID)
	assert.Equal(t, StrategyRegistryNumber, res.Strategy)
}

func TestMatch_MalformedRegistryFallsBackToName(t *testing.T) {
	clients := []LocalClient{
		{ID: 1, Name: "Dupont", RegistryNumber: "12345"},
		{ID: 2, Name: "Dupont Immobilier"},
	}
	res, err := Match(ExternalCustomer{Name: "Dupont Immobilier", RegistryNumber: "12345"}, clients)
	require.NoError(t, err)
	assert.Equal(t, uint(2), res.Client.ID)
	assert.Equal(t, StrategyNameExact, res.Strategy)
}

func TestMatch_NoMatch(t *testing.T) {
	_, err := Match(ExternalCustomer{Name: "Inconnu"}, []LocalClient{{ID: 1, Name: "Dupont"}})
	assert.True(t, errors.Is(err, ErrNoMatchFound))

	_, err = Match(ExternalCustomer{Name: "!!"}, []LocalClient{{ID: 1, Name: "Dupont"}})
	assert.ErrorIs(t, err, ErrNoMatchFound)
}

func TestMatch_ShortNamesDoNotContain(t *testing.T) {
	_, err := Match(ExternalCustomer{Name: "AB"}, []LocalClient{{ID: 1, Name: "Abeille SARL"}})
	assert.ErrorIs(t, err, ErrNoMatchFound)
}

func TestMatcher_FirstHitWins(t *testing.T) {
	clients := []LocalClient{{ID: 1, Name: "Alpha"}, {ID: 2, Name: "Alpha"}}
	res, err := Match(ExternalCustomer{Name: "alpha"}, clients)
	require.NoError(t, err)
	assert.Equal(t, uint(1), res.Client.ID)

	m := &Matcher{Strategies: []Strategy{{Name: "never", Func: func(ExternalCustomer, []LocalClient) *LocalClient { return nil }}}}
	_, err = m.Match(ExternalCustomer{Name: "alpha"}, clients)
	assert.ErrorIs(t, err, ErrNoMatchFound)
}
