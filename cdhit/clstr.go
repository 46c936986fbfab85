package cdhit

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Assignment is one member line of a .clstr file.
type Assignment struct {
	SeqID          string
	Cluster        int
	Representative bool

	// Identity is the percent identity to the cluster representative;
	// 100 for the representative itself.
	Identity float64
}

// ParseClstr reads CD-HIT's .clstr output. The format is a sequence of
// cluster blocks:
//
//	>Cluster 0
//	0	14aa, >s12... *
//	1	13aa, >s7... at 92.86%
//
// cd-hit-est adds a strand marker ("at +/98.00%") which is tolerated.
func ParseClstr(r io.Reader) ([]Assignment, error) {
	var out []Assignment
	cluster := -1

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ">Cluster") {
			id, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, ">Cluster")))
			if err != nil {
				return nil, fmt.Errorf("cdhit: bad cluster header %q: %v", line, err)
			}
			cluster = id
			continue
		}

		if cluster < 0 {
			return nil, fmt.Errorf("cdhit: member line %q before any cluster header", line)
		}

		a, err := parseMember(line, cluster)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func parseMember(line string, cluster int) (Assignment, error) {
	// 0	14aa, >s12... *
	start := strings.Index(line, ">")
	end := strings.Index(line, "...")
	if start < 0 || end < 0 || end < start {
		return Assignment{}, fmt.Errorf("cdhit: bad member line %q", line)
	}

	a := Assignment{
		SeqID:   line[start+1 : end],
		Cluster: cluster,
	}

	tail := strings.TrimSpace(line[end+len("..."):])
	if tail == "*" {
		a.Representative = true
		a.Identity = 100
		return a, nil
	}

	// "at 92.86%" or "at +/98.00%"
	tail = strings.TrimPrefix(tail, "at")
	tail = strings.TrimSpace(tail)
	tail = strings.TrimSuffix(tail, "%")
	if i := strings.LastIndex(tail, "/"); i >= 0 {
		tail = tail[i+1:]
	}

	identity, err := strconv.ParseFloat(tail, 64)
	if err != nil {
		return Assignment{}, fmt.Errorf("cdhit: bad identity in member line %q: %v", line, err)
	}
	a.Identity = identity

	return a, nil
}
