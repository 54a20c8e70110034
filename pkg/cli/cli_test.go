package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/engine"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/taxonomy"
)

func writeInput(t *testing.T, dir string, in engine.Input) string {
	t.Helper()
	data, err := json.Marshal(in)
	require.NoError(t, err)
	path := filepath.Join(dir, "input.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func sampleInput() engine.Input {
	k := func(p string) inventory.Key { return inventory.Key{Process: p, Compound: "NH3"} }
	u := func(p string) inventory.UncertaintyRecord {
		return inventory.UncertaintyRecord{
			Key: k(p),
			AD:  inventory.ParamInput{Dist: "normal", Sym: inventory.Num(5)},
			EF:  inventory.ParamInput{Dist: "normal", Sym: inventory.Num(50)},
		}
	}
	return engine.Input{
		Taxonomy: taxonomy.Input{Process: taxonomy.Spec{Edges: []taxonomy.Edge{
			{Child: "3B", Parent: "3", Depth: 2},
			{Child: "3D", Parent: "3", Depth: 2},
			{Child: "3", Parent: "Total", Depth: 1},
		}}},
		Records: inventory.Records{
			EmissionsBY:   []inventory.EmissionRecord{{Key: k("3B"), Value: inventory.Num(300)}, {Key: k("3D"), Value: inventory.Num(200)}},
			EmissionsRY:   []inventory.EmissionRecord{{Key: k("3B"), Value: inventory.Num(250)}, {Key: k("3D"), Value: inventory.Num(210)}},
			UncertaintyRY: []inventory.UncertaintyRecord{u("3B"), u("3D")},
		},
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, sampleInput())
	cfgPath := filepath.Join(dir, "euq.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`variant: iir
simulations: 400
seed: 11
totals:
  process: Total
publish:
  driver: fs
  root: `+filepath.Join(dir, "blobs")+`
`), 0o644))
	dbPath := filepath.Join(dir, "euq.sqlite")
	outPath := filepath.Join(dir, "result.json")

	out, err := execute(t, "run", input, "--config", cfgPath, "--db", dbPath, "--out", outPath, "--publish")
	require.NoError(t, err)
	assert.Contains(t, out, "seed 11")
	assert.Contains(t, out, "simulations 400")
	assert.Contains(t, out, "trend")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var res engine.Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, uint64(11), res.Seed)
	assert.FileExists(t, filepath.Join(dir, "blobs", "runs", res.RunID, "rows.csv"))

	out, err = execute(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, res.RunID)
	assert.Contains(t, out, "done")
}

func TestRunCommandStdout(t *testing.T) {
	input := writeInput(t, t.TempDir(), sampleInput())
	out, err := execute(t, "run", input, "-n", "100", "--seed", "1", "--total-process", "Total", "-o", "-")
	require.NoError(t, err)
	var res engine.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 100, res.Simulations)
}

func TestRunCommandStoresFailure(t *testing.T) {
	dir := t.TempDir()
	in := sampleInput()
	in.Records.UncertaintyRY = in.Records.UncertaintyRY[:1]
	input := writeInput(t, dir, in)
	dbPath := filepath.Join(dir, "euq.sqlite")

	_, err := execute(t, "run", input, "-n", "100", "--total-process", "Total", "--db", dbPath)
	require.Error(t, err)

	out, err := execute(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "failed")
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, sampleInput())
	out, err := execute(t, "validate", input, "--total-process", "Total")
	require.NoError(t, err)
	assert.Contains(t, out, "ok:")

	_, err = execute(t, "check", input)
	assert.ErrorIs(t, err, taxonomy.ErrNoTotal)

	_, err = execute(t, "validate", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "config", "--variant", "nid")
	require.NoError(t, err)
	assert.Contains(t, out, "variant: nid")
	assert.Contains(t, out, "CRT Total incl. LULUCF")

	out, err = execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "variant: iir")

	_, err = execute(t, "config", "--variant", "ets")
	assert.Error(t, err)
}
