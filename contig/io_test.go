package contig

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const contigTable = `sample,barcode,contig_id,chain,cdr3,umis,cluster_idx
s1,bc1,c1,TRB,CASSLG,8,0
s1,bc2,c1,TRB,CASSLD,2,0
`

func checkContigTable(t *testing.T, contigs []Contig) {
	t.Helper()

	if len(contigs) != 2 {
		t.Fatalf("read %d contigs, want 2", len(contigs))
	}
	if contigs[0].CDR3 != "CASSLG" || contigs[0].Chain != "TRB" {
		t.Errorf("first contig = %+v", contigs[0])
	}
	if !contigs[0].Umis.Valid || contigs[0].Umis.Int64 != 8 {
		t.Errorf("first contig umis = %+v, want 8", contigs[0].Umis)
	}
	if !contigs[1].Cluster.Valid || contigs[1].Cluster.Int64 != 0 {
		t.Errorf("second contig cluster = %+v, want 0", contigs[1].Cluster)
	}
}

func TestReadContigsGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(contigTable)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "contigs.csv.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	contigs, err := ReadContigs(path)
	if err != nil {
		t.Fatal(err)
	}
	checkContigTable(t, contigs)
}

func TestReadContigsDetectsTabDelimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contigs.tsv")
	tsv := strings.ReplaceAll(contigTable, ",", "\t")
	if err := os.WriteFile(path, []byte(tsv), 0o644); err != nil {
		t.Fatal(err)
	}

	contigs, err := ReadContigs(path)
	if err != nil {
		t.Fatal(err)
	}
	checkContigTable(t, contigs)
}

func TestDetectCompression(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(contigTable)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	ct, err := detectCompression(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if ct != compressionGzip {
		t.Errorf("gzip stream detected as %d", ct)
	}

	ct, err = detectCompression(strings.NewReader(contigTable))
	if err != nil {
		t.Fatal(err)
	}
	if ct != compressionNone {
		t.Errorf("plain stream detected as %d", ct)
	}
}
