package publish

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/engine"
)

// Manifest lists the objects written for one run.
type Manifest struct {
	RunID   string `json:"run_id"`
	Driver  Driver `json:"driver"`
	Objects []Info `json:"objects"`
}

var csvHeader = []string{
	"process", "compound", "resource", "depth", "import", "quantity", "status", "value",
	"analytic_u_lower_pct", "analytic_u_upper_pct", "analytic_u_mean_pct",
	"mc_mean", "mc_ci_low", "mc_ci_high", "mc_u_lower_pct", "mc_u_upper_pct", "mc_u_mean_pct",
	"corr",
}

// Prefix is the key prefix of a run's objects.
func Prefix(runID string) string { return "runs/" + runID + "/" }

// Publish writes result.json and rows.csv under runs/<id>/.
func Publish(ctx context.Context, store Store, res *engine.Result) (Manifest, error) {
	if res.RunID == "" {
		return Manifest{}, fmt.Errorf("result has no run id")
	}
	m := Manifest{RunID: res.RunID, Driver: store.Driver()}

	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return m, fmt.Errorf("encode result: %w", err)
	}
	info, err := store.Put(ctx, Prefix(res.RunID)+"result.json", bytes.NewReader(body), "application/json")
	if err != nil {
		return m, err
	}
	m.Objects = append(m.Objects, info)

	rows, err := RowsCSV(res)
	if err != nil {
		return m, err
	}
	info, err = store.Put(ctx, Prefix(res.RunID)+"rows.csv", bytes.NewReader(rows), "text/csv")
	if err != nil {
		return m, err
	}
	m.Objects = append(m.Objects, info)
	return m, nil
}

// RowsCSV renders the flattened result table.
func RowsCSV(res *engine.Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, r := range res.Records() {
		rec := []string{
			r.Key.Process, r.Key.Compound, r.Key.Resource,
			strconv.Itoa(r.Depth), strconv.FormatBool(r.Import), r.Quantity.String(), string(r.Status), f(r.Value),
			f(r.Analytic.Lower), f(r.Analytic.Upper), f(r.Analytic.Mean),
			f(r.MCMean), f(r.MCInterval.Low), f(r.MCInterval.High), f(r.MC.Lower), f(r.MC.Upper), f(r.MC.Mean),
			f(r.Corr),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
