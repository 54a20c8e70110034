package inventory

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/diag"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/sampler"
)

func testChecker(t *testing.T) (*Checker, *diag.Recorder) {
	t.Helper()
	cfg := config.Default(config.VariantNID)
	rec := diag.NewRecorder(nil, slog.LevelDebug)
	return NewChecker(cfg, slog.New(rec)), rec
}

func normal(sym float64) ParamInput {
	return ParamInput{Dist: "normal", Sym: Num(sym)}
}

func key(p string) Key { return Key{Process: p, Compound: "CO2", Resource: "Total"} }

func TestValueJSON(t *testing.T) {
	var row struct {
		A, B, C, D, E Value
	}
	require.NoError(t, json.Unmarshal([]byte(`{"A": 1.5, "B": "NO", "C": null, "D": "2.5", "E": ""}`), &row))
	assert.Equal(t, Num(1.5), row.A)
	assert.Equal(t, Note("NO"), row.B)
	assert.True(t, row.C.Missing())
	assert.Equal(t, Num(2.5), row.D)
	assert.True(t, row.E.Missing())

	b, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"A": 1.5, "B": "NO", "C": null, "D": 2.5, "E": null}`, string(b))

	var v Value
	assert.Error(t, json.Unmarshal([]byte(`{}`), &v))
}

func TestStatus(t *testing.T) {
	st, ok := ParseStatus(" no ")
	assert.True(t, ok)
	assert.Equal(t, StatusNO, st)
	_, ok = ParseStatus("XX")
	assert.False(t, ok)
	assert.True(t, StatusES.Reported())
	assert.False(t, StatusMI.Reported())
}

func TestPrepareSymmetric(t *testing.T) {
	c, _ := testChecker(t)
	u := c.prepareParam(RY, key("1A1"), AD, ParamInput{Dist: "normal", Sym: Num(10), Corr: "korreliert"})
	assert.Equal(t, sampler.KindNormal, u.Kind)
	assert.Equal(t, StatusES, u.Status)
	assert.InDelta(t, 0.1/1.96, u.Lower, 1e-12)
	assert.Equal(t, u.Lower, u.Upper)
	assert.True(t, u.Correlated)
	assert.True(t, u.Numeric())
}

func TestPrepareStatuses(t *testing.T) {
	c, rec := testChecker(t)
	u := c.prepareParam(RY, key("1A1"), EF, ParamInput{Dist: "gamma", Sym: Note("NE")})
	assert.Equal(t, StatusNE, u.Status)
	assert.False(t, u.Numeric())

	u = c.prepareParam(RY, key("1A1"), EF, ParamInput{Dist: "lognormal", Lower: Num(10)})
	assert.Equal(t, StatusMI, u.Status)
	assert.Equal(t, 1, rec.Count("uncertainty missing for given distribution"))

	u = c.prepareParam(RY, key("1A1"), EF, ParamInput{Lower: Note("IE"), Upper: Note("IE")})
	assert.Equal(t, StatusIE, u.Status)

	u = c.prepareParam(RY, key("1A1"), EF, ParamInput{Dist: "fractile", Lower: Num(5), Upper: Num(5)})
	assert.Equal(t, StatusES, u.Status)
	assert.False(t, u.Numeric())

	c.prepareParam(RY, key("1A1"), EF, ParamInput{Dist: "weibull", Sym: Num(5)})
	assert.Equal(t, 1, rec.Count("uncertainty given without a recognised distribution"))

	c.prepareParam(RY, key("1A1"), EF, ParamInput{Dist: "normal", Sym: Num(0)})
	assert.Equal(t, 1, rec.Count("uncertainty value <= 0"))
}

func TestTriangularRepair(t *testing.T) {
	tests := []struct {
		name     string
		lo, hi   float64
		kind     sampler.Kind
		low, upp float64
		repaired bool
	}{
		{"valid", 10, 20, sampler.KindTriangular, 0.1, 0.2, false},
		{"upper dominates", 5, 50, sampler.KindGamma, 0.5, 0.5, true},
		{"lower dominates", 50, 5, sampler.KindNormal, 0.5, 0.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := testChecker(t)
			u := c.prepareParam(BY, key("1A1"), AD, ParamInput{Dist: "triangle", Lower: Num(tt.lo), Upper: Num(tt.hi)})
			assert.Equal(t, tt.kind, u.Kind)
			assert.InDelta(t, tt.low, u.Lower, 1e-12)
			assert.InDelta(t, tt.upp, u.Upper, 1e-12)
			if tt.repaired {
				require.Equal(t, 1, rec.Count(MsgTriangularRepaired))
				e := rec.Entries()[0]
				assert.Equal(t, "WARN", e.Level)
				assert.Equal(t, BY, e.Attrs["year"])
				assert.Equal(t, key("1A1"), e.Attrs["key"])
				assert.NotEmpty(t, e.Attrs["solution"])
			} else {
				assert.Zero(t, rec.Count(MsgTriangularRepaired))
			}
		})
	}
}

func numeric(kind sampler.Kind) Uncertainty {
	return Uncertainty{Kind: kind, Status: StatusES, Lower: 0.05, Upper: 0.05}
}

func TestComplete(t *testing.T) {
	n := numeric(sampler.KindNormal)
	var none Uncertainty
	tests := []struct {
		name     string
		in       [3]Uncertainty
		complete bool
		numeric  [3]bool
	}{
		{"all three", [3]Uncertainty{n, n, n}, true, [3]bool{true, true, false}},
		{"ad ef", [3]Uncertainty{n, n, none}, true, [3]bool{true, true, false}},
		{"ad em", [3]Uncertainty{n, none, n}, true, [3]bool{false, false, true}},
		{"ef em", [3]Uncertainty{none, n, n}, true, [3]bool{false, false, true}},
		{"em", [3]Uncertainty{none, none, n}, true, [3]bool{false, false, true}},
		{"ad only", [3]Uncertainty{n, none, none}, false, [3]bool{true, false, false}},
		{"ef only", [3]Uncertainty{none, n, none}, false, [3]bool{false, true, false}},
		{"nothing", [3]Uncertainty{}, false, [3]bool{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testChecker(t)
			out := c.Complete(RY, key("x"), YearUncertainty{Param: tt.in})
			assert.Equal(t, tt.complete, out.Complete)
			for _, p := range Params {
				assert.Equal(t, tt.numeric[p], out.Param[p].Numeric(), p.String())
			}
		})
	}
}

func TestFallback(t *testing.T) {
	c, rec := testChecker(t)
	ry := YearUncertainty{Param: [3]Uncertainty{
		{Kind: sampler.KindNormal, Status: StatusES, Lower: 0.1, Upper: 0.1, Correlated: true},
		{Kind: sampler.KindTriangular, Status: StatusES, Lower: 0.1, Upper: 0.2},
		{Kind: sampler.KindGamma, Status: StatusES, Lower: 0.3, Upper: 0.3},
	}}
	by := YearUncertainty{Param: [3]Uncertainty{
		{Kind: sampler.KindNone, Status: StatusES, Lower: 0.1, Upper: 0.1},
		{Kind: sampler.KindTriangular, Status: StatusES, Lower: 0, Upper: 0.4, Correlated: true},
		{Kind: sampler.KindGamma, Status: StatusMI},
	}}
	out := c.Fallback(key("x"), by, ry)
	assert.Equal(t, sampler.KindNormal, out.Param[AD].Kind)
	assert.True(t, out.Param[AD].Correlated)
	assert.Equal(t, 0.1, out.Param[EF].Lower)
	assert.Equal(t, 0.4, out.Param[EF].Upper)
	assert.False(t, out.Param[EF].Correlated)
	assert.Equal(t, StatusES, out.Param[EM].Status)
	assert.Equal(t, 0.3, out.Param[EM].Upper)
	assert.Equal(t, 3, rec.Count(MsgFallback))
}

func TestCheckCorrelation(t *testing.T) {
	c, rec := testChecker(t)
	same := Uncertainty{Kind: sampler.KindNormal, Status: StatusES, Lower: 0.1, Upper: 0.1, Correlated: true}
	other := same
	other.Lower, other.Upper = 0.2, 0.2
	by := YearUncertainty{Param: [3]Uncertainty{same, same, {}}}
	ry := YearUncertainty{Param: [3]Uncertainty{same, other, {}}}
	by, ry = c.CheckCorrelation(key("x"), by, ry)
	assert.True(t, by.Param[AD].Correlated)
	assert.True(t, ry.Param[AD].Correlated)
	assert.False(t, by.Param[EF].Correlated)
	assert.False(t, ry.Param[EF].Correlated)
	assert.Equal(t, 1, rec.Count(MsgCorrelationDropped))
}

func TestCheckEmissions(t *testing.T) {
	c, rec := testChecker(t)
	out := c.CheckEmissions(BY, []EmissionRecord{
		{Key: key("a"), Value: Num(3)},
		{Key: key("b"), Value: Num(0)},
		{Key: key("c"), Value: Note("NO")},
		{Key: key("d"), Value: Note("n/a")},
		{Key: key("e")},
	})
	require.Len(t, out, 5)
	assert.Equal(t, StatusES, out[0].Status)
	assert.Equal(t, 3.0, out[0].Amount)
	assert.Equal(t, StatusES, out[1].Status)
	assert.Equal(t, StatusNO, out[2].Status)
	assert.Equal(t, StatusMI, out[3].Status)
	assert.Equal(t, StatusMI, out[4].Status)
	assert.Equal(t, 1, rec.Count(MsgEmissionZero))
	assert.Equal(t, 1, rec.Count(MsgEmissionNotationKey))
	assert.Equal(t, 2, rec.Count(MsgEmissionUnknown))
}

func TestCheckEmissionsUnitFactor(t *testing.T) {
	c := NewChecker(config.Default(config.VariantIIR), diag.Discard())
	out := c.CheckEmissions(RY, []EmissionRecord{{Key: key("a"), Value: Num(0.25)}})
	assert.Equal(t, 250.0, out[0].Amount)
}

func adef(k Key) UncertaintyRecord {
	return UncertaintyRecord{Key: k, AD: normal(10), EF: normal(15)}
}

func TestBuild(t *testing.T) {
	c, _ := testChecker(t)
	inv, err := c.Build(Records{
		EmissionsBY:   []EmissionRecord{{key("a"), Num(10)}, {key("b"), Num(20)}, {key("c"), Note("NO")}},
		EmissionsRY:   []EmissionRecord{{key("a"), Num(12)}, {key("b"), Num(18)}, {key("c"), Note("NO")}},
		UncertaintyRY: []UncertaintyRecord{adef(key("a")), adef(key("b")), adef(key("c"))},
	})
	require.NoError(t, err)
	require.Len(t, inv.Categories, 3)
	assert.Equal(t, 30.0, inv.Totals.BY)
	assert.Equal(t, 30.0, inv.Totals.RY)
	assert.Equal(t, 0.0, inv.Totals.Trend())

	a := inv.Categories[0]
	assert.InDelta(t, 2.0/30*100, a.Trend, 1e-12)
	assert.Equal(t, [3]Status{StatusES, StatusES, StatusES}, a.Status)
	assert.True(t, a.Uncertainty[BY].Complete)
	assert.Equal(t, a.Uncertainty[RY], a.Uncertainty[BY])

	cNO := inv.Categories[2]
	assert.Equal(t, StatusNO, cNO.Status[Trend])
	assert.True(t, cNO.Reported(BY))
	assert.False(t, cNO.Estimated(BY))
	assert.True(t, a.Estimated(RY))
}

func TestBuildUnmatchedEmission(t *testing.T) {
	c, rec := testChecker(t)
	_, err := c.Build(Records{
		EmissionsBY:   []EmissionRecord{{key("a"), Num(10)}, {key("only-by"), Num(5)}},
		EmissionsRY:   []EmissionRecord{{key("a"), Num(12)}},
		UncertaintyRY: []UncertaintyRecord{adef(key("a"))},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnmatched))
	var ke *KeyError
	require.True(t, errors.As(err, &ke))
	assert.Equal(t, []Key{key("only-by")}, ke.Keys)
	assert.Equal(t, 1, rec.Count(ErrUnmatched.Error()))
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		recs Records
		want error
	}{
		{
			"duplicate",
			Records{
				EmissionsBY:   []EmissionRecord{{key("a"), Num(1)}, {key("a"), Num(1)}},
				EmissionsRY:   []EmissionRecord{{key("a"), Num(1)}},
				UncertaintyRY: []UncertaintyRecord{adef(key("a"))},
			},
			ErrDuplicateKey,
		},
		{
			"uncertainty missing",
			Records{
				EmissionsBY: []EmissionRecord{{key("a"), Num(1)}},
				EmissionsRY: []EmissionRecord{{key("a"), Num(1)}},
			},
			ErrUnmatched,
		},
		{
			"uncertainty BY unmatched",
			Records{
				EmissionsBY:   []EmissionRecord{{key("a"), Num(1)}},
				EmissionsRY:   []EmissionRecord{{key("a"), Num(1)}},
				UncertaintyBY: []UncertaintyRecord{adef(key("b"))},
				UncertaintyRY: []UncertaintyRecord{adef(key("a"))},
			},
			ErrUnmatched,
		},
		{
			"incomplete with emission",
			Records{
				EmissionsBY:   []EmissionRecord{{key("a"), Num(1)}},
				EmissionsRY:   []EmissionRecord{{key("a"), Num(1)}},
				UncertaintyRY: []UncertaintyRecord{{Key: key("a"), AD: normal(5)}},
			},
			ErrIncomplete,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testChecker(t)
			_, err := c.Build(tt.recs)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestBuildIncompleteZeroEmissionIsNotFatal(t *testing.T) {
	c, rec := testChecker(t)
	inv, err := c.Build(Records{
		EmissionsBY:   []EmissionRecord{{key("a"), Note("NO")}},
		EmissionsRY:   []EmissionRecord{{key("a"), Note("NO")}},
		UncertaintyRY: []UncertaintyRecord{{Key: key("a")}},
	})
	require.NoError(t, err)
	assert.False(t, inv.Categories[0].Uncertainty[RY].Complete)
	assert.Equal(t, 2, rec.Count(MsgIncomplete))
}

func TestBuildBaseYearFallback(t *testing.T) {
	c, _ := testChecker(t)
	inv, err := c.Build(Records{
		EmissionsBY:   []EmissionRecord{{key("a"), Num(1)}},
		EmissionsRY:   []EmissionRecord{{key("a"), Num(2)}},
		UncertaintyBY: []UncertaintyRecord{{Key: key("a"), EM: ParamInput{Dist: "normal"}}},
		UncertaintyRY: []UncertaintyRecord{{Key: key("a"), EM: ParamInput{Dist: "normal", Sym: Num(20), Corr: "correlated"}}},
	})
	require.NoError(t, err)
	cat := inv.Categories[0]
	assert.True(t, cat.Uncertainty[BY].Direct())
	assert.True(t, cat.Uncertainty[BY].Param[EM].Correlated)
	assert.True(t, cat.Uncertainty[RY].Param[EM].Correlated)
}

func TestResourceDefault(t *testing.T) {
	c, _ := testChecker(t)
	blank := []EmissionRecord{{Key: Key{Process: "a", Compound: "CO2"}}}
	assert.Equal(t, "Total", c.ResourceDefault(blank))
	mixed := append(blank, EmissionRecord{Key: Key{Process: "b", Compound: "CO2", Resource: "Coal"}})
	assert.Equal(t, "All resources", c.ResourceDefault(mixed))

	r := FillResources("All resources", Records{EmissionsRY: []EmissionRecord{{Key: Key{Process: "a", Resource: "MI"}}}})
	assert.Equal(t, "All resources", r.EmissionsRY[0].Resource)
	assert.Nil(t, r.UncertaintyBY)
}

func TestSelectFuelBasis(t *testing.T) {
	rows := func(codes ...string) []EmissionRecord {
		var out []EmissionRecord
		for _, c := range codes {
			out = append(out, EmissionRecord{Key: key(c), Value: Num(1)})
		}
		return out
	}
	cfg := config.Default(config.VariantIIR)
	c := NewChecker(cfg, diag.Discard())

	r, err := c.SelectFuelBasis(Records{EmissionsRY: rows("1A3bi", "1A3bi(fu)", "2A1"), UncertaintyRY: []UncertaintyRecord{adef(key("1A3bi(fu)"))}})
	require.NoError(t, err)
	assert.Len(t, r.EmissionsRY, 2)
	assert.Empty(t, r.UncertaintyRY)

	_, err = c.SelectFuelBasis(Records{EmissionsRY: rows("1A3bi(fu)")})
	assert.True(t, errors.Is(err, ErrFuelBasis))

	cfg.UseFuelUsed = true
	c = NewChecker(cfg, diag.Discard())
	_, err = c.SelectFuelBasis(Records{EmissionsRY: rows("1A3bi", "1A3bii", "1A3bi(fu)")})
	assert.True(t, errors.Is(err, ErrFuelBasis))

	r, err = c.SelectFuelBasis(Records{EmissionsRY: rows("1A3bi", "1A3bi(fu)")})
	require.NoError(t, err)
	require.Len(t, r.EmissionsRY, 1)
	assert.Equal(t, "1A3bi(fu)", r.EmissionsRY[0].Process)
}
