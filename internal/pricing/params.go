package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-honoraires/internal/fees"
	"github.com/diewo77/go-honoraires/internal/validation"
)

// Mode selects how an increase value is applied.
type Mode string

const (
	ModePercentage Mode = "percentage"
	ModeAmount     Mode = "amount"
)

// AxisParams configures the increase of one axe.
type AxisParams struct {
	Active        bool
	Mode          Mode
	Value         decimal.Decimal
	UseGlobalRate bool
}

// Parameters is a full simulation setting. The accessory axe never carries
// its own entry: it follows the bulletin axe.
type Parameters struct {
	GlobalRate decimal.Decimal
	Axes       map[fees.Axe]AxisParams
}

// ZeroParameters leaves every price untouched.
func ZeroParameters() Parameters {
	return Parameters{Axes: map[fees.Axe]AxisParams{}}
}

// Effective resolves the mode and value that apply to axe. ok is false when
// the axe is inactive.
func (p Parameters) Effective(axe fees.Axe) (mode Mode, value decimal.Decimal, ok bool) {
	if axe.FollowsBulletin() {
		axe = fees.SocialBulletin
	}
	ap, found := p.Axes[axe]
	if !found || !ap.Active {
		return "", decimal.Zero, false
	}
	if ap.UseGlobalRate {
		return ModePercentage, p.GlobalRate, true
	}
	if ap.Mode == "" {
		return ModePercentage, ap.Value, true
	}
	return ap.Mode, ap.Value, true
}

// ParametersFile is the YAML/JSON shape of Parameters.
type ParametersFile struct {
	GlobalRate float64                   `yaml:"global_rate" json:"global_rate"`
	Axes       map[string]AxisParamsFile `yaml:"axes" json:"axes"`
}

type AxisParamsFile struct {
	Active        bool    `yaml:"active" json:"active"`
	Mode          string  `yaml:"mode" json:"mode"`
	Value         float64 `yaml:"value" json:"value"`
	UseGlobalRate bool    `yaml:"use_global_rate" json:"use_global_rate"`
}

// Validate reports field violations keyed like "axes.bilan.mode".
func (f ParametersFile) Validate() validation.Violations {
	v := validation.Violations{}
	validation.RangeFloat("global_rate", f.GlobalRate, -100, 1000, v)
	for name, ap := range f.Axes {
		key := "axes." + name
		axe := fees.ParseAxe(name)
		if !axe.Valid() {
			v[key] = "unknown_axe"
			continue
		}
		if axe.FollowsBulletin() {
			v[key] = "follows_bulletin"
			continue
		}
		if ap.Mode != "" {
			validation.OneOf(key+".mode", ap.Mode, []string{string(ModePercentage), string(ModeAmount)}, v)
		}
		if ap.Mode != string(ModeAmount) {
			validation.RangeFloat(key+".value", ap.Value, -100, 1000, v)
		}
	}
	return v
}

// Parameters validates f and converts it.
func (f ParametersFile) Parameters() (Parameters, error) {
	if v := f.Validate(); !v.Empty() {
		return Parameters{}, fmt.Errorf("invalid parameters: %w", v)
	}
	p := Parameters{
		GlobalRate: decimal.NewFromFloat(f.GlobalRate),
		Axes:       make(map[fees.Axe]AxisParams, len(f.Axes)),
	}
	for name, ap := range f.Axes {
		mode := Mode(ap.Mode)
		if mode == "" {
			mode = ModePercentage
		}
		p.Axes[fees.ParseAxe(name)] = AxisParams{
			Active:        ap.Active,
			Mode:          mode,
			Value:         decimal.NewFromFloat(ap.Value),
			UseGlobalRate: ap.UseGlobalRate,
		}
	}
	return p, nil
}
