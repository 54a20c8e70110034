package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/engine"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/taxonomy"
)

// Writes a synthetic air pollutant inventory for the iir defaults: five
// sectors with two subsectors of three leaves each, six pollutants.
func main() {
	out := os.Getenv("EUQ_SEED_OUT")
	if out == "" {
		out = "./data/inventory.json"
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}

	rng := rand.New(rand.NewPCG(42, 0))
	const total = "NFR Total"
	compounds := []string{"NOx", "NMVOC", "SOx", "NH3", "PM2.5", "PM10"}

	var in engine.Input
	for _, c := range compounds {
		in.Taxonomy.Compound.Edges = append(in.Taxonomy.Compound.Edges, taxonomy.Edge{Child: c, Parent: "Total", Depth: 1})
	}
	var leaves []string
	for s := 1; s <= 5; s++ {
		sector := fmt.Sprint(s)
		in.Taxonomy.Process.Edges = append(in.Taxonomy.Process.Edges, taxonomy.Edge{Child: sector, Parent: total, Depth: 1})
		for j := 0; j < 2; j++ {
			sub := fmt.Sprintf("%d%c", s, 'A'+j)
			in.Taxonomy.Process.Edges = append(in.Taxonomy.Process.Edges, taxonomy.Edge{Child: sub, Parent: sector, Depth: 2})
			for k := 1; k <= 3; k++ {
				leaf := fmt.Sprintf("%s%d", sub, k)
				in.Taxonomy.Process.Edges = append(in.Taxonomy.Process.Edges, taxonomy.Edge{Child: leaf, Parent: sub, Depth: 3})
				leaves = append(leaves, leaf)
			}
		}
	}

	n := 0
	for _, leaf := range leaves {
		for _, c := range compounds {
			key := inventory.Key{Process: leaf, Compound: c}
			// emission heavy-tail, a few categories not occurring
			by := 1 + rng.ExpFloat64()*50
			ry := by * (0.6 + 0.6*rng.Float64())
			byVal, ryVal := inventory.Num(by), inventory.Num(ry)
			if rng.IntN(20) == 0 {
				byVal, ryVal = inventory.Note("NO"), inventory.Note("NO")
			}
			in.Records.EmissionsBY = append(in.Records.EmissionsBY, inventory.EmissionRecord{Key: key, Value: byVal})
			in.Records.EmissionsRY = append(in.Records.EmissionsRY, inventory.EmissionRecord{Key: key, Value: ryVal})
			in.Records.UncertaintyRY = append(in.Records.UncertaintyRY, inventory.UncertaintyRecord{
				Key: key,
				AD:  inventory.ParamInput{Dist: "normal", Sym: inventory.Num(float64(2 + rng.IntN(15)))},
				EF:  efInput(rng),
			})
			n++
		}
	}

	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		log.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		log.Fatalf("write: %v", err)
	}
	fmt.Printf("Seed done: %d categories written to %s\n", n, out)
}

func efInput(rng *rand.Rand) inventory.ParamInput {
	var p inventory.ParamInput
	switch rng.IntN(5) {
	case 0:
		p = inventory.ParamInput{Dist: "normal", Sym: inventory.Num(float64(10 + rng.IntN(40)))}
	case 1:
		lo := float64(20 + rng.IntN(30))
		p = inventory.ParamInput{Dist: "lognormal", Lower: inventory.Num(lo), Upper: inventory.Num(lo * (1.5 + rng.Float64()))}
	case 2:
		lo := float64(10 + rng.IntN(30))
		p = inventory.ParamInput{Dist: "triangular", Lower: inventory.Num(lo), Upper: inventory.Num(lo + float64(rng.IntN(40)))}
	case 3:
		p = inventory.ParamInput{Dist: "uniform", Sym: inventory.Num(float64(10 + rng.IntN(30)))}
	default:
		p = inventory.ParamInput{Dist: "gamma", Sym: inventory.Num(float64(30 + rng.IntN(70)))}
	}
	if rng.IntN(3) == 0 {
		p.Corr = "correlated"
	}
	return p
}
