package contig

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"encoding/csv"
	"io"
	"os"

	"github.com/carbocation/pfx"
	"github.com/csimplestring/go-csv/detector"
	"github.com/gocarina/gocsv"
	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

type compression byte

const (
	compressionNone compression = iota
	compressionGzip
	compressionZip
	compressionXZ
	compressionZ
	compressionBZip2
)

// Byte code signatures from https://stackoverflow.com/a/19127748/199475
var compressionSigs = map[compression][]byte{
	compressionGzip:  {0x1f, 0x8b, 0x08},
	compressionZip:   {0x50, 0x4b, 0x03, 0x04},
	compressionXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	compressionZ:     {0x1f, 0x9d},
	compressionBZip2: {0x42, 0x5a, 0x68},
}

func detectCompression(r io.Reader) (compression, error) {
	buff := make([]byte, 6)
	if _, err := r.Read(buff); err != nil {
		return compressionNone, err
	}

Outer:
	for ct, sig := range compressionSigs {
		for position := range sig {
			if buff[position] != sig[position] {
				continue Outer
			}
		}
		return ct, nil
	}

	return compressionNone, nil
}

// openTable opens a contig/cell table file, transparently decompressing
// gzip, zip, xz, zlib, or bzip2 containers. Sequencing pipelines commonly
// emit gzipped CSVs.
func openTable(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	ct, err := detectCompression(f)
	if err != nil {
		f.Close()
		return nil, pfx.Err(err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, pfx.Err(err)
	}

	switch ct {
	case compressionGzip:
		return gzip.NewReader(f)
	case compressionZip:
		return &readCloserFaker{zipstream.NewReader(f)}, nil
	case compressionBZip2:
		return &readCloserFaker{bzip2.NewReader(f)}, nil
	case compressionXZ:
		reader, err := xz.NewReader(f, 0)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &readCloserFaker{reader}, nil
	case compressionZ:
		return zlib.NewReader(f)
	}

	return f, nil
}

// readCloserFaker "upgrades" readers that don't need to be closed.
type readCloserFaker struct {
	io.Reader
}

func (c *readCloserFaker) Close() error { return nil }

// determineDelimiter returns the single most likely rune delimiting the
// values in the reader, assuming a CSV-like file.
func determineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	if len(delimiters) > 0 {
		return rune(delimiters[0][0])
	}

	return ','
}

func unmarshalTable(path string, out interface{}) error {
	r, err := openTable(path)
	if err != nil {
		return err
	}
	defer r.Close()

	fileBytes, err := io.ReadAll(r)
	if err != nil {
		return pfx.Err(err)
	}

	delim := determineDelimiter(bytes.NewReader(fileBytes))

	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		cr := csv.NewReader(in)
		cr.Comma = delim
		cr.LazyQuotes = true
		return cr
	})

	if err := gocsv.UnmarshalBytes(fileBytes, out); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// ReadContigs loads a per-contig table from a possibly compressed CSV/TSV.
func ReadContigs(path string) ([]Contig, error) {
	var out []Contig
	if err := unmarshalTable(path, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// ReadCells loads a per-cell covariate table.
func ReadCells(path string) ([]Cell, error) {
	var out []Cell
	if err := unmarshalTable(path, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func marshalTable(path string, in interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	if err := gocsv.Marshal(in, f); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// WriteContigs writes the contig table as CSV.
func WriteContigs(path string, contigs []Contig) error {
	return marshalTable(path, &contigs)
}

// WriteClusters writes the clonotype table as CSV.
func WriteClusters(path string, clusters []Clonotype) error {
	return marshalTable(path, &clusters)
}
