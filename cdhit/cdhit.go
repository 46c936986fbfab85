// Package cdhit drives the external CD-HIT programs to cluster receptor
// sequences, and parses their .clstr output back into per-sequence cluster
// assignments. The clustering algorithm itself lives entirely in the
// external binary.
package cdhit

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/carbocation/pfx"
	"gopkg.in/guregu/null.v3"

	"github.com/immunotools/clonal/contig"
)

// Options configure one CD-HIT invocation.
type Options struct {
	// Program is the binary to run: cd-hit for amino-acid sequences,
	// cd-hit-est for nucleotide sequences.
	Program string

	// Identity is the sequence identity threshold (-c).
	Identity float64

	// WordSize is the k-mer word size (-n). CD-HIT constrains valid word
	// sizes by identity range; the presets pick compatible values.
	WordSize int

	// MinLength is the minimum sequence length (-l). Sequences at or below
	// this length are silently omitted by CD-HIT and come back unassigned.
	MinLength int

	// Threads is passed as -T; 0 lets CD-HIT use its default.
	Threads int

	// ExtraArgs are appended verbatim to the command line.
	ExtraArgs []string
}

// Protein returns options suitable for clustering CDR3 amino-acid
// sequences at high identity.
func Protein() Options {
	return Options{
		Program:   "cd-hit",
		Identity:  0.96,
		WordSize:  5,
		MinLength: 5,
	}
}

// Nucleotide returns options for clustering CDR3 nucleotide sequences.
func Nucleotide() Options {
	return Options{
		Program:   "cd-hit-est",
		Identity:  0.96,
		WordSize:  8,
		MinLength: 15,
	}
}

func (o Options) args(in, out string) []string {
	args := []string{
		"-i", in,
		"-o", out,
		"-c", strconv.FormatFloat(o.Identity, 'f', -1, 64),
		"-n", strconv.Itoa(o.WordSize),
		"-l", strconv.Itoa(o.MinLength),
		"-d", "0",
	}
	if o.Threads > 0 {
		args = append(args, "-T", strconv.Itoa(o.Threads))
	}

	return append(args, o.ExtraArgs...)
}

// Assign clusters the sequences and returns one cluster index per input
// sequence, in input order. Sequences CD-HIT omitted (for example, below
// the length cutoff) come back as -1.
func Assign(ctx context.Context, opts Options, seqs []string) ([]int, error) {
	if opts.Program == "" {
		return nil, fmt.Errorf("cdhit: no program configured")
	}
	if len(seqs) == 0 {
		return nil, fmt.Errorf("cdhit: no sequences to cluster")
	}

	dir, err := os.MkdirTemp("", "cdhit")
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "query.fasta")
	out := filepath.Join(dir, "clustered")

	if err := writeFasta(in, seqs); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, opts.Program, opts.args(in, out)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("cdhit: failed to execute %s: %v: %s", opts.Program, err, string(output))
	}

	clstr, err := os.Open(out + ".clstr")
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer clstr.Close()

	assignments, err := ParseClstr(clstr)
	if err != nil {
		return nil, err
	}

	ids := make([]int, len(seqs))
	for i := range ids {
		ids[i] = -1
	}
	for _, a := range assignments {
		i, err := seqIndex(a.SeqID)
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= len(seqs) {
			return nil, fmt.Errorf("cdhit: sequence id %q out of range", a.SeqID)
		}
		ids[i] = a.Cluster
	}

	return ids, nil
}

// Merge attaches per-contig cluster ids (as returned by Assign for the
// bundle's contigs, in order) back onto the bundle. Unassigned contigs
// (-1) keep a null cluster. Returns the number of contigs assigned; the
// caller still owns the follow-up Sync.
func Merge(b *contig.Bundle, ids []int) (int, error) {
	if len(ids) != len(b.Contigs) {
		return 0, fmt.Errorf("cdhit: %d assignments for %d contigs", len(ids), len(b.Contigs))
	}

	assigned := 0
	for i, id := range ids {
		if id < 0 {
			b.Contigs[i].Cluster = null.Int{}
			continue
		}
		b.Contigs[i].Cluster = null.IntFrom(int64(id))
		assigned++
	}

	return assigned, nil
}

// writeFasta writes the query file with positional ids, so output can be
// matched back to input regardless of sequence content.
func writeFasta(path string, seqs []string) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	for i, seq := range seqs {
		if _, err := fmt.Fprintf(f, ">s%d\n%s\n", i, seq); err != nil {
			return pfx.Err(err)
		}
	}

	return nil
}

func seqIndex(id string) (int, error) {
	if len(id) < 2 || id[0] != 's' {
		return 0, fmt.Errorf("cdhit: unexpected sequence id %q", id)
	}

	i, err := strconv.Atoi(id[1:])
	if err != nil {
		return 0, fmt.Errorf("cdhit: unexpected sequence id %q: %v", id, err)
	}

	return i, nil
}
