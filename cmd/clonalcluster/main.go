// clonalcluster clusters receptor contigs into putative clonotypes: it
// filters a per-contig table, runs CD-HIT on the chosen sequence column,
// optionally re-splits the coarse clusters by edit distance, designates
// medoid representatives, and writes the annotated contig and clonotype
// tables.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"

	"github.com/immunotools/clonal/cdhit"
	"github.com/immunotools/clonal/contig"
	"github.com/immunotools/clonal/fineclust"
)

func main() {
	var (
		contigFile     string
		cellFile       string
		chain          string
		seqType        string
		identity       float64
		cutoff         int
		program        string
		threads        int
		productiveOnly bool
		highConfOnly   bool
		minLength      int
		outContigs     string
		outClusters    string
		outSummary     string
	)

	flag.StringVar(&contigFile, "contigs", "", "Path to the per-contig table (CSV or TSV, optionally compressed).")
	flag.StringVar(&cellFile, "cells", "", "Optional path to a per-cell covariate table. If unset, cells are derived from the contig table.")
	flag.StringVar(&chain, "chain", "", "Restrict clustering to this chain (e.g. TRB). Empty clusters all chains together.")
	flag.StringVar(&seqType, "seqtype", "aa", "Sequence column to cluster on: aa (cdr3) or nt (cdr3_nt).")
	flag.Float64Var(&identity, "identity", 0.96, "CD-HIT identity threshold.")
	flag.IntVar(&cutoff, "cutoff", -1, "Edit-distance cutoff for single-linkage re-splitting of coarse clusters. Negative disables the re-split.")
	flag.StringVar(&program, "program", "", "Override the CD-HIT binary name.")
	flag.IntVar(&threads, "threads", 0, "CD-HIT thread count (0 = CD-HIT default).")
	flag.BoolVar(&productiveOnly, "productiveonly", true, "Keep only productive contigs.")
	flag.BoolVar(&highConfOnly, "highconfonly", false, "Keep only high-confidence contigs.")
	flag.IntVar(&minLength, "minlen", 5, "Minimum CDR3 length (in the chosen sequence type).")
	flag.StringVar(&outContigs, "outcontigs", "contigs.clustered.csv", "Output path for the annotated contig table.")
	flag.StringVar(&outClusters, "outclusters", "clonotypes.csv", "Output path for the clonotype table.")
	flag.StringVar(&outSummary, "outsummary", "", "Optional output path for per-cluster distance summaries.")
	flag.Parse()

	if contigFile == "" {
		log.Fatalln("Please provide -contigs")
	}
	if seqType != "aa" && seqType != "nt" {
		log.Fatalln("-seqtype must be aa or nt")
	}

	if err := runAll(contigFile, cellFile, chain, seqType, program, identity, cutoff, threads, minLength, productiveOnly, highConfOnly, outContigs, outClusters, outSummary); err != nil {
		log.Fatalln(err)
	}
}

func runAll(contigFile, cellFile, chain, seqType, program string, identity float64, cutoff, threads, minLength int, productiveOnly, highConfOnly bool, outContigs, outClusters, outSummary string) error {
	contigs, err := contig.ReadContigs(contigFile)
	if err != nil {
		return err
	}
	log.Println("Read", len(contigs), "contigs from", contigFile)

	var cells []contig.Cell
	if cellFile != "" {
		if cells, err = contig.ReadCells(cellFile); err != nil {
			return err
		}
		log.Println("Read", len(cells), "cells from", cellFile)
	}

	bundle := contig.New(contigs, cells)

	seq := fineclust.AminoAcid
	opts := cdhit.Protein()
	if seqType == "nt" {
		seq = fineclust.Nucleotide
		opts = cdhit.Nucleotide()
	}
	opts.Identity = identity
	opts.Threads = threads
	if program != "" {
		opts.Program = program
	}

	removed := bundle.FilterContigs(func(c contig.Contig) bool {
		if productiveOnly && !c.IsProductive() {
			return false
		}
		if highConfOnly && !strings.EqualFold(c.HighConfidence, "true") {
			return false
		}
		if chain != "" && c.Chain != chain {
			return false
		}
		return len(seq(c)) >= minLength
	})
	bundle.Sync()
	log.Println("Filtered out", removed, "contigs;", len(bundle.Contigs), "remain across", len(bundle.Cells), "cells")

	seqs := make([]string, len(bundle.Contigs))
	for i, c := range bundle.Contigs {
		seqs[i] = seq(c)
	}

	ids, err := cdhit.Assign(context.Background(), opts, seqs)
	if err != nil {
		return err
	}
	assigned, err := cdhit.Merge(bundle, ids)
	if err != nil {
		return err
	}
	log.Println("CD-HIT assigned", assigned, "of", len(ids), "contigs")

	if cutoff >= 0 {
		n := fineclust.SplitClusters(bundle, seq, cutoff)
		log.Println("Single-linkage re-split at cutoff", cutoff, "produced", n, "clusters")
	}

	summaries, err := fineclust.AssignMedoids(bundle, seq)
	if err != nil {
		return err
	}

	bundle.Canonicalize()

	if err := contig.WriteContigs(outContigs, bundle.Contigs); err != nil {
		return err
	}
	if err := contig.WriteClusters(outClusters, bundle.Clusters); err != nil {
		return err
	}
	log.Println("Wrote", len(bundle.Clusters), "clonotypes to", outClusters)

	if outSummary != "" {
		f, err := os.Create(outSummary)
		if err != nil {
			return pfx.Err(err)
		}
		defer f.Close()
		if err := gocsv.Marshal(&summaries, f); err != nil {
			return pfx.Err(err)
		}
	}

	return nil
}
