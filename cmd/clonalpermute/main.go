// clonalpermute tests association between clonotype cluster membership and
// a cell-level covariate with a stratified permutation test, writing a tidy
// result table and optional histogram views of the null distribution.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"

	"github.com/immunotools/clonal/frame"
	"github.com/immunotools/clonal/permute"
)

func main() {
	var (
		inputFile   string
		labelKey    string
		covariate   string
		stratify    string
		target      string
		nPerm       int
		seed        int64
		alternative string
		fractions   bool
		outFile     string
		pngPrefix   string
		showHist    bool
	)

	flag.StringVar(&inputFile, "input", "", "Path to the cell-level table (CSV or TSV) with label, covariate, and stratification columns.")
	flag.StringVar(&labelKey, "label", "cluster", "Column name of the cluster label that is permuted.")
	flag.StringVar(&covariate, "covariate", "", "Column name of the covariate tested for association.")
	flag.StringVar(&stratify, "stratify", "", "Optional comma-separated column names defining permutation blocks.")
	flag.StringVar(&target, "target", "", "Cluster label whose occupancy is the test statistic. Defaults to the most frequent label.")
	flag.IntVar(&nPerm, "nperm", 1000, "Number of permutations.")
	flag.Int64Var(&seed, "seed", 1, "Random seed.")
	flag.StringVar(&alternative, "alternative", "two.sided", "Extremeness policy: two.sided, greater, or less.")
	flag.BoolVar(&fractions, "fractions", false, "Use per-level occupancy fractions instead of counts.")
	flag.StringVar(&outFile, "out", "", "Optional output path for the tidy result table (TSV).")
	flag.StringVar(&pngPrefix, "png", "", "Optional path prefix for per-term PNG histograms.")
	flag.BoolVar(&showHist, "hist", false, "Print a text histogram of each null distribution.")
	flag.Parse()

	if inputFile == "" {
		log.Fatalln("Please provide -input")
	}
	if covariate == "" {
		log.Fatalln("Please provide -covariate")
	}

	if err := runAll(inputFile, labelKey, covariate, stratify, target, alternative, nPerm, seed, fractions, outFile, pngPrefix, showHist); err != nil {
		log.Fatalln(err)
	}
}

func runAll(inputFile, labelKey, covariate, stratify, target, alternative string, nPerm int, seed int64, fractions bool, outFile, pngPrefix string, showHist bool) error {
	fr, err := readFrame(inputFile)
	if err != nil {
		return err
	}
	log.Println("Read", fr.Len(), "cells from", inputFile)

	alt, err := parseAlternative(alternative)
	if err != nil {
		return err
	}

	if target == "" {
		target = modalLevel(fr, labelKey)
		log.Println("Testing occupancy of the most frequent cluster:", target)
	}

	levels := fr.Levels(covariate)
	statistic := permute.LevelCounts(target, covariate, levels)
	if fractions {
		statistic = permute.LevelFractions(target, covariate, levels)
	}

	var stratifyKeys []string
	if stratify != "" {
		stratifyKeys = strings.Split(stratify, ",")
	}

	results, err := permute.Run(rand.New(rand.NewSource(seed)), fr, statistic, permute.Config{
		LabelKey:      labelKey,
		CovariateKeys: []string{covariate},
		StratifyKeys:  stratifyKeys,
		NPerm:         nPerm,
		Alternative:   alt,
	})
	if err != nil {
		return err
	}

	fmt.Print(results)

	if showHist {
		if err := results.PrintHistograms(os.Stdout); err != nil {
			return err
		}
	}

	if outFile != "" {
		if err := writeTidy(outFile, results); err != nil {
			return err
		}
		log.Println("Wrote", results.Len(), "results to", outFile)
	}

	if pngPrefix != "" {
		for i, test := range results.Tests {
			name := fmt.Sprintf("%s_%02d.png", pngPrefix, i+1)
			f, err := os.Create(name)
			if err != nil {
				return pfx.Err(err)
			}
			if err := test.RenderPNG(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return pfx.Err(err)
			}
		}
	}

	return nil
}

// readFrame loads a delimited file into a frame, keeping every column as a
// categorical string column.
func readFrame(path string) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.LazyQuotes = true
	if strings.HasSuffix(path, ".tsv") || strings.HasSuffix(path, ".txt") {
		cr.Comma = '\t'
	}

	entries, err := cr.ReadAll()
	if err != nil {
		return nil, pfx.Err(err)
	}
	if len(entries) < 2 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}

	header := entries[0]
	cols := make([][]string, len(header))
	for _, row := range entries[1:] {
		for i := range header {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			cols[i] = append(cols[i], v)
		}
	}

	fr := frame.New()
	for i, name := range header {
		if err := fr.AddColumn(name, cols[i]); err != nil {
			return nil, err
		}
	}

	return fr, nil
}

func parseAlternative(s string) (permute.Alternative, error) {
	switch s {
	case "two.sided", "":
		return permute.TwoSided, nil
	case "greater":
		return permute.Greater, nil
	case "less":
		return permute.Less, nil
	}

	return permute.TwoSided, fmt.Errorf("unknown -alternative %q", s)
}

func modalLevel(fr *frame.Frame, key string) string {
	col, ok := fr.Column(key)
	if !ok {
		return ""
	}

	counts := make(map[string]int)
	best := ""
	for _, v := range col {
		if frame.Missing(v) {
			continue
		}
		counts[v]++
		if best == "" || counts[v] > counts[best] || (counts[v] == counts[best] && v < best) {
			best = v
		}
	}

	return best
}

func writeTidy(path string, results *permute.TestList) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	rows := results.Tidy()

	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		w := csv.NewWriter(out)
		w.Comma = '\t'
		return gocsv.NewSafeCSVWriter(w)
	})

	if err := gocsv.Marshal(&rows, f); err != nil {
		return pfx.Err(err)
	}

	return nil
}
