package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-honoraires/internal/fees"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), append([]any{"want %s got %s", want, got.String()}, msgAndArgs...)...)
}

func classified(clientID uint, name string, axe fees.Axe, label, qty, unit string) fees.ClassifiedLine {
	q, u := d(qty), d(unit)
	return fees.ClassifiedLine{
		Line: fees.Line{
			Label:              label,
			Quantity:           q,
			UnitPrice:          u,
			AmountHT:           q.Mul(u),
			SubscriptionStatus: fees.StatusInProgress,
			Frequency:          fees.FrequencyMonthly,
			Interval:           1,
			ClientID:           clientID,
			ClientName:         name,
			Cabinet:            "alpha",
		},
		Axe: axe,
	}
}

func percent(axes map[fees.Axe]string) Parameters {
	p := ZeroParameters()
	for axe, v := range axes {
		p.Axes[axe] = AxisParams{Active: true, Mode: ModePercentage, Value: d(v)}
	}
	return p
}

func TestRoundHalfTen(t *testing.T) {
	tests := []struct{ in, want string }{
		{"12", "10"}, {"13", "15"}, {"17", "15"}, {"18", "20"},
		{"10", "10"}, {"220", "220"}, {"229", "230"}, {"12.6", "15"},
		{"9.876", "9.88"}, {"5", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assertDec(t, tt.want, RoundHalfTen(d(tt.in)))
		})
	}
}

func TestRoundHalfCent(t *testing.T) {
	tests := []struct{ in, want string }{
		{"15.862", "15.85"}, {"15.821", "15.80"}, {"15.889", "15.90"},
		{"2.10", "2.10"}, {"2.13", "2.15"}, {"2.18", "2.20"}, {"0.02", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assertDec(t, tt.want, RoundHalfCent(d(tt.in)))
		})
	}
}

func TestRoundBusiness(t *testing.T) {
	assertDec(t, "15", RoundBusiness(fees.Bilan, d("13.2")))
	assertDec(t, "13.20", RoundBusiness(fees.PL, d("13.2")))
	assertDec(t, "13.20", RoundBusiness(fees.SocialBulletin, d("13.2")))
	assertDec(t, "13.21", RoundBusiness(fees.SocialForfait, d("13.213")))
}

func TestCoefficient(t *testing.T) {
	assertDec(t, "12", Coefficient(fees.FrequencyMonthly, 1))
	assertDec(t, "4", Coefficient(fees.FrequencyMonthly, 3))
	assertDec(t, "0.5", Coefficient(fees.FrequencyYearly, 2))
	assertDec(t, "1", Coefficient(fees.FrequencyYearly, 0))
}

func TestComputeLine_ComptaAlreadyRounded(t *testing.T) {
	l := classified(1, "Dupont", fees.ComptaMensuelle, "Mission comptable mensuelle", "1", "200")
	r := ComputeLine(l, percent(map[fees.Axe]string{fees.ComptaMensuelle: "10"}), LineOptions{})
	assertDec(t, "220", r.NewAmount)
	assertDec(t, "220", r.NewUnitPrice)
	assertDec(t, "20", r.Delta)
	assertDec(t, "10", r.DeltaPct)
}

func TestComputeLine_ComptaRoundedToFive(t *testing.T) {
	l := classified(1, "Dupont", fees.ComptaMensuelle, "Mission comptable mensuelle", "1", "190")
	r := ComputeLine(l, percent(map[fees.Axe]string{fees.ComptaMensuelle: "3"}), LineOptions{})
	// 195.70 rounds to the units digit 6 -> 195
	assertDec(t, "195", r.NewUnitPrice)
	assertDec(t, "5", r.Delta)
}

func TestComputeLine_Bulletin(t *testing.T) {
	l := classified(1, "Dupont", fees.SocialBulletin, "Bulletin de salaire", "50", "2.00")
	r := ComputeLine(l, percent(map[fees.Axe]string{fees.SocialBulletin: "5"}), LineOptions{})
	assertDec(t, "2.10", r.NewUnitPrice)
	assertDec(t, "105.00", r.NewAmount)
	assertDec(t, "5.00", r.Delta)
}

func TestComputeLine_AmountMode(t *testing.T) {
	p := ZeroParameters()
	p.Axes[fees.SocialBulletin] = AxisParams{Active: true, Mode: ModeAmount, Value: d("1.5")}
	p.Axes[fees.Bilan] = AxisParams{Active: true, Mode: ModeAmount, Value: d("100")}

	b := ComputeLine(classified(1, "A", fees.SocialBulletin, "Bulletin", "10", "20"), p, LineOptions{})
	assertDec(t, "21.50", b.NewUnitPrice)
	assertDec(t, "215", b.NewAmount)

	bl := ComputeLine(classified(1, "A", fees.Bilan, "Bilan", "2", "600"), p, LineOptions{})
	// 1300 / 2 = 650
	assertDec(t, "650", bl.NewUnitPrice)
	assertDec(t, "100", bl.Delta)
}

func TestComputeLine_InactiveAndUnclassified(t *testing.T) {
	p := percent(map[fees.Axe]string{fees.Bilan: "10"})
	r := ComputeLine(classified(1, "A", fees.Support, "Logiciel", "1", "33"), p, LineOptions{})
	assert.True(t, r.Delta.IsZero())
	r = ComputeLine(classified(1, "A", fees.Unclassified, "Divers", "1", "33"), p, LineOptions{})
	assert.True(t, r.Delta.IsZero())
	assertDec(t, "33", r.NewAmount)
}

func TestComputeLine_GlobalRate(t *testing.T) {
	p := ZeroParameters()
	p.GlobalRate = d("10")
	p.Axes[fees.PL] = AxisParams{Active: true, Mode: ModeAmount, Value: d("500"), UseGlobalRate: true}
	r := ComputeLine(classified(1, "A", fees.PL, "Reporting P&L", "1", "100"), p, LineOptions{})
	assertDec(t, "110", r.NewAmount)
	assert.Equal(t, ModePercentage, r.Mode)
}

func TestComputeLine_AccessoryFollowsBulletin(t *testing.T) {
	p := percent(map[fees.Axe]string{fees.SocialBulletin: "10"})
	exit := classified(1, "A", fees.AccessoiresSocial, "Sortie salarié", "1", "30")
	ref := d("0.50")
	r := ComputeLine(exit, p, LineOptions{BulletinUnitDelta: &ref})
	assert.Equal(t, int64(2), r.Multiplier)
	assertDec(t, "31.00", r.NewUnitPrice)

	zero := decimal.Zero
	r = ComputeLine(exit, p, LineOptions{BulletinUnitDelta: &zero})
	assert.True(t, r.Delta.IsZero())

	// Without reference the bulletin rate applies to the accessory's own price.
	vault := classified(1, "A", fees.AccessoiresSocial, "Coffre-fort", "4", "2")
	r = ComputeLine(vault, p, LineOptions{})
	assertDec(t, "2.20", r.NewUnitPrice)
	assertDec(t, "8.80", r.NewAmount)

	// A standalone exit without reference takes the rate once.
	r = ComputeLine(classified(1, "A", fees.AccessoiresSocial, "Sortie de salarié", "1", "20"), p, LineOptions{})
	assert.Equal(t, int64(2), r.Multiplier)
	assertDec(t, "22", r.NewUnitPrice)
	assertDec(t, "10", r.DeltaPct)

	// In amount mode the bulletin delta is known and the multiplier holds.
	pa := ZeroParameters()
	pa.Axes[fees.SocialBulletin] = AxisParams{Active: true, Mode: ModeAmount, Value: d("1.5")}
	r = ComputeLine(classified(1, "A", fees.AccessoiresSocial, "Sortie de salarié", "1", "20"), pa, LineOptions{})
	assertDec(t, "23", r.NewUnitPrice)

	// Accessory parameters of their own are ignored.
	p.Axes[fees.AccessoiresSocial] = AxisParams{Active: true, Mode: ModeAmount, Value: d("99")}
	delete(p.Axes, fees.SocialBulletin)
	r = ComputeLine(vault, p, LineOptions{})
	assert.True(t, r.Delta.IsZero())
}

func TestComputeLine_RealQuantity(t *testing.T) {
	l := classified(1, "A", fees.SocialBulletin, "Bulletin", "10", "20")
	rq := d("12")
	r := ComputeLine(l, percent(map[fees.Axe]string{fees.SocialBulletin: "10"}), LineOptions{RealQuantity: &rq})
	require.True(t, r.HasReal)
	assertDec(t, "240", r.RealOldAmount)
	assertDec(t, "264", r.RealNewAmount)
	assertDec(t, "24", r.RealDelta)
	oldAmount, newAmount := r.Reported()
	assertDec(t, "240", oldAmount)
	assertDec(t, "264", newAmount)

	// Real quantities only concern variable axes.
	f := classified(1, "A", fees.SocialForfait, "Forfait social", "1", "150")
	r = ComputeLine(f, ZeroParameters(), LineOptions{RealQuantity: &rq})
	assert.False(t, r.HasReal)
}

func sampleLines() []fees.ClassifiedLine {
	return []fees.ClassifiedLine{
		classified(2, "Zeta", fees.ComptaMensuelle, "Mission comptable", "1", "200"),
		classified(1, "Alpha", fees.SocialBulletin, "Bulletin de salaire", "10", "20"),
		classified(1, "Alpha", fees.AccessoiresSocial, "Sortie", "1", "30"),
		classified(1, "Alpha", fees.AccessoiresSocial, "Entrée", "1", "30"),
		classified(1, "Alpha", fees.Unclassified, "Divers", "1", "10"),
	}
}

func TestComputeGlobal(t *testing.T) {
	p := percent(map[fees.Axe]string{fees.SocialBulletin: "10", fees.ComptaMensuelle: "10"})
	res := ComputeGlobal(sampleLines(), p, nil, nil)
	require.Len(t, res, 2)
	assert.Equal(t, "Alpha", res[0].ClientName)
	assert.Equal(t, "Zeta", res[1].ClientName)

	alpha := res[0]
	// bulletin 20 -> 22: +2/unit; exit +4, entry +2
	assertDec(t, "34", alpha.Lines[1].NewUnitPrice)
	assertDec(t, "32", alpha.Lines[2].NewUnitPrice)
	// per month: 20 + 4 + 2 = 26, annualized x12 = 312
	assertDec(t, "312", alpha.Total.Delta)
	assertDec(t, "240", alpha.ByAxis[fees.SocialBulletin].Delta)
	assertDec(t, "72", alpha.ByAxis[fees.AccessoiresSocial].Delta)
	_, hasUnclassified := alpha.ByAxis[fees.Unclassified]
	assert.False(t, hasUnclassified)

	assertDec(t, "240", res[1].Total.Delta)
}

func TestComputeGlobal_AccessoryZeroWhenBulletinInactive(t *testing.T) {
	p := percent(map[fees.Axe]string{fees.ComptaMensuelle: "10"})
	res := ComputeGlobal(sampleLines(), p, nil, nil)
	for _, lr := range res[0].Lines {
		if lr.Line.Axe == fees.AccessoiresSocial {
			assert.True(t, lr.Delta.IsZero())
		}
	}
}

func TestComputeGlobal_Exclusion(t *testing.T) {
	p := percent(map[fees.Axe]string{fees.SocialBulletin: "10", fees.ComptaMensuelle: "10"})
	usage := map[uint]MonthlyUsage{1: {Bulletins: d("15"), Exits: d("1")}}
	res := ComputeGlobal(sampleLines(), p, map[uint]bool{1: true}, usage)
	assert.True(t, res[0].Excluded)
	assert.True(t, res[0].Total.Delta.IsZero())
	assert.False(t, res[1].Total.Delta.IsZero())
}

func TestComputeGlobal_Idempotent(t *testing.T) {
	p := percent(map[fees.Axe]string{fees.SocialBulletin: "7", fees.ComptaMensuelle: "4"})
	usage := map[uint]MonthlyUsage{1: {Bulletins: d("12.5"), Entries: d("0.5"), Exits: d("0.25")}}
	a := ComputeGlobal(sampleLines(), p, nil, usage)
	b := ComputeGlobal(sampleLines(), p, nil, usage)
	assert.Equal(t, a, b)
}

func TestComputeGlobal_UsesRealQuantities(t *testing.T) {
	p := percent(map[fees.Axe]string{fees.SocialBulletin: "10"})
	usage := map[uint]MonthlyUsage{1: {Bulletins: d("15")}}
	res := ComputeGlobal(sampleLines(), p, nil, usage)
	// 15 payslips * 2 delta * 12 months
	assertDec(t, "360", res[0].ByAxis[fees.SocialBulletin].Delta)
	assertDec(t, "3600", res[0].ByAxis[fees.SocialBulletin].Old)
}

func TestRealQuantity(t *testing.T) {
	u := MonthlyUsage{Bulletins: d("10"), Entries: d("1"), Exits: d("2")}
	q := classified(1, "A", fees.SocialBulletin, "Bulletin", "1", "20")
	q.Frequency, q.Interval = fees.FrequencyMonthly, 3
	got, ok := RealQuantity(q, u)
	require.True(t, ok)
	assertDec(t, "30", got)

	mv := classified(1, "A", fees.AccessoiresSocial, "Entrée/Sortie", "1", "20")
	got, ok = RealQuantity(mv, u)
	require.True(t, ok)
	assertDec(t, "3", got)

	_, ok = RealQuantity(classified(1, "A", fees.AccessoiresSocial, "Coffre-fort", "1", "2"), u)
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	p := percent(map[fees.Axe]string{fees.SocialBulletin: "10", fees.ComptaMensuelle: "10"})
	lines := append(sampleLines(), classified(3, "Beta", fees.ComptaMensuelle, "Mission comptable", "1", "100"))
	lines[len(lines)-1].Cabinet = "beta"
	res := ComputeGlobal(lines, p, map[uint]bool{2: true}, nil)
	s := Summarize(res)
	assert.Equal(t, 2, s.Clients)
	assert.Equal(t, 1, s.Excluded)
	// alpha 312 + beta 120
	assertDec(t, "432", s.Global.Delta)
	assertDec(t, "312", s.ByCohort["alpha"].Delta)
	assertDec(t, "120", s.ByCohort["beta"].Delta)
	assertDec(t, "120", s.ByAxis[fees.ComptaMensuelle].Delta)
	assertDec(t, "10", s.ByAxis[fees.ComptaMensuelle].DeltaPct)

	empty := Summarize(nil)
	assert.True(t, empty.Global.DeltaPct.IsZero())
}

func TestParametersFile(t *testing.T) {
	f := ParametersFile{
		GlobalRate: 3,
		Axes: map[string]AxisParamsFile{
			"bilan":           {Active: true, Mode: "amount", Value: 50},
			"social_bulletin": {Active: true, UseGlobalRate: true},
		},
	}
	p, err := f.Parameters()
	require.NoError(t, err)
	mode, value, ok := p.Effective(fees.AccessoiresSocial)
	require.True(t, ok)
	assert.Equal(t, ModePercentage, mode)
	assertDec(t, "3", value)

	bad := ParametersFile{Axes: map[string]AxisParamsFile{
		"accessoires_social": {Active: true},
		"nope":               {Active: true},
		"pl":                 {Active: true, Mode: "double"},
	}}
	v := bad.Validate()
	assert.Equal(t, "follows_bulletin", v["axes.accessoires_social"])
	assert.Equal(t, "unknown_axe", v["axes.nope"])
	assert.Equal(t, "invalid_value", v["axes.pl.mode"])
	_, err = bad.Parameters()
	assert.Error(t, err)
}
