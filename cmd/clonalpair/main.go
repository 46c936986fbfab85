// clonalpair enumerates per-cell chain pairings of clonotype clusters,
// flags expanded combinations, and optionally tests a chosen cluster pair
// for co-occurrence enrichment with Fisher's exact test.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"

	"github.com/immunotools/clonal/contig"
	"github.com/immunotools/clonal/pairing"
)

func main() {
	var (
		contigFile string
		cellFile   string
		chains     string
		threshold  int
		tokenA     string
		tokenB     string
		outCombos  string
		outTable   string
	)

	flag.StringVar(&contigFile, "contigs", "", "Path to a clustered per-contig table (output of clonalcluster).")
	flag.StringVar(&cellFile, "cells", "", "Optional path to a per-cell covariate table.")
	flag.StringVar(&chains, "chains", "TRA,TRB", "Comma-separated chains to pair, in output order.")
	flag.IntVar(&threshold, "threshold", 2, "Minimum cell count for a combination to be flagged as expanded.")
	flag.StringVar(&tokenA, "tokena", "", "Optional chain:cluster token for enrichment testing (e.g. TRA:3). Requires -tokenb.")
	flag.StringVar(&tokenB, "tokenb", "", "Second chain:cluster token for enrichment testing.")
	flag.StringVar(&outCombos, "outcombos", "", "Optional output path for the per-cell combination table.")
	flag.StringVar(&outTable, "outtable", "pairings.csv", "Output path for the combination frequency table.")
	flag.Parse()

	if contigFile == "" {
		log.Fatalln("Please provide -contigs")
	}
	if (tokenA == "") != (tokenB == "") {
		log.Fatalln("-tokena and -tokenb must be provided together")
	}

	if err := runAll(contigFile, cellFile, chains, tokenA, tokenB, threshold, outCombos, outTable); err != nil {
		log.Fatalln(err)
	}
}

func runAll(contigFile, cellFile, chains, tokenA, tokenB string, threshold int, outCombos, outTable string) error {
	contigs, err := contig.ReadContigs(contigFile)
	if err != nil {
		return err
	}

	var cells []contig.Cell
	if cellFile != "" {
		if cells, err = contig.ReadCells(cellFile); err != nil {
			return err
		}
	}

	bundle := contig.New(contigs, cells)
	bundle.Sync()
	log.Println("Pairing", len(bundle.Cells), "cells from", contigFile)

	combos, table, err := pairing.Combos(bundle, strings.Split(chains, ","), threshold)
	if err != nil {
		return err
	}

	expanded := 0
	for _, row := range table {
		if row.Expanded {
			expanded++
		}
	}
	log.Println(len(table), "distinct combinations,", expanded, "expanded at threshold", threshold)

	if err := writeCSV(outTable, &table); err != nil {
		return err
	}

	if outCombos != "" {
		if err := writeCSV(outCombos, &combos); err != nil {
			return err
		}
	}

	if tokenA != "" {
		e, err := pairing.FisherEnrichment(combos, tokenA, tokenB)
		if err != nil {
			return err
		}
		fmt.Printf("%s with %s: both=%d, %s only=%d, %s only=%d, neither=%d, two-sided p=%.4g\n",
			e.TokenA, e.TokenB, e.Both, e.TokenA, e.AOnly, e.TokenB, e.BOnly, e.Neither, e.PValue)
	}

	return nil
}

func writeCSV(path string, rows interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	if err := gocsv.Marshal(rows, f); err != nil {
		return pfx.Err(err)
	}

	return nil
}
