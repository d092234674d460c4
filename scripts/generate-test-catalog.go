//go:build ignore

// Package main generates a synthetic product catalog for benchmarking.
// Usage: go run scripts/generate-test-catalog.go -products 10000 -output testdata/bench/catalog.jsonl
//
// Output is one JSON product per line, matching the search.Product shape,
// with generated part numbers and parts-catalog descriptions.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numProducts = flag.Int("products", 10000, "Number of products to generate")
	outputPath  = flag.String("output", "testdata/bench/catalog.jsonl", "Output file")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// Word pools for generating realistic catalog entries
var (
	components = []string{
		"bearing", "pump", "valve", "seal", "gasket",
		"filter", "belt", "hose", "coupling", "bushing",
		"gear", "shaft", "spring", "clamp", "fitting",
		"sensor", "relay", "switch", "solenoid", "actuator",
		"cylinder", "piston", "impeller", "rotor", "stator",
	}
	variants = []string{
		"radial ball", "tapered roller", "hydraulic", "pneumatic",
		"stainless steel", "brass", "cast iron", "high-pressure",
		"heavy-duty", "self-aligning", "double-row", "sealed",
		"flanged", "threaded", "quick-release", "spring-loaded",
	}
	brands = []string{
		"Koyo", "SKF", "Timken", "Parker", "Bosch",
		"Gates", "Danfoss", "Festo", "Omron", "Eaton",
	}
	prefixes = []string{
		"RAD", "HYP", "MIL", "TRB", "SOL", "FLT", "CPL", "BSH",
	}
)

type product struct {
	ID            string  `json:"id"`
	PartNumber    string  `json:"part_number"`
	MfrPartNumber string  `json:"mfr_part_number,omitempty"`
	Description   string  `json:"description"`
	Brand         string  `json:"brand,omitempty"`
	Price         float64 `json:"price,omitempty"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*outputPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(*outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	fmt.Printf("Generating %d products in %s...\n", *numProducts, *outputPath)

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := 0; i < *numProducts; i++ {
		if err := enc.Encode(generateProduct(rng, i)); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing product %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error flushing output: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d products successfully.\n", *numProducts)
}

func randomWord(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func generateProduct(rng *rand.Rand, index int) product {
	component := randomWord(rng, components)
	variant := randomWord(rng, variants)
	brand := randomWord(rng, brands)
	prefix := randomWord(rng, prefixes)

	serial := 1000 + rng.Intn(9000)
	part := fmt.Sprintf("%s-%d", prefix, serial)

	p := product{
		ID:          fmt.Sprintf("p%d", index+1),
		PartNumber:  part,
		Description: fmt.Sprintf("%s %s", variant, component),
		Brand:       brand,
		Price:       float64(rng.Intn(50000)) / 100,
	}

	// Roughly a third of entries carry a distinct manufacturer number.
	if rng.Intn(3) == 0 {
		p.MfrPartNumber = fmt.Sprintf("%s%d-%s",
			strings.ToUpper(brand[:1]), serial, randomWord(rng, []string{"EU", "US", "JP"}))
	}

	return p
}
