// Package impacts reads the optional impacts table: one detected impact per
// line with its GPS time, momentum estimate and location on the spacecraft.
package impacts

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// NA marks an absent value in the table.
const NA = "-"

// Columns is the fixed column order of the impacts file.
var Columns = []string{
	"DATE", "GPS", "P_MED", "P_CI_LO", "P_CI_HI", "FACE", "LOCAL",
	"LAT_SC", "LON_SC", "LAT_SSE", "LON_SSE", "LPF_X", "LPF_Y", "LPF_Z",
}

var ErrMalformed = errors.New("malformed impacts file")

// Impact is one row. Absent numeric values are NaN, absent text is "".
type Impact struct {
	Date   string
	GPS    float64
	PMed   float64
	PCILo  float64
	PCIHi  float64
	Face   string
	Local  string
	LatSC  float64
	LonSC  float64
	LatSSE float64
	LonSSE float64
	LPF    [3]float64
}

// List is a parsed impacts table in file order.
type List []Impact

// Parse reads whitespace-separated rows of len(Columns) fields. Blank lines
// and lines starting with '#' are skipped.
func Parse(r io.Reader) (List, error) {
	var out List
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != len(Columns) {
			return nil, fmt.Errorf("line %d: %d fields, want %d: %w", lineNo, len(fields), len(Columns), ErrMalformed)
		}
		var imp Impact
		var err error
		num := func(i int) float64 {
			if err != nil || fields[i] == NA {
				return math.NaN()
			}
			v, perr := strconv.ParseFloat(fields[i], 64)
			if perr != nil {
				err = fmt.Errorf("line %d: %s %q: %w", lineNo, Columns[i], fields[i], ErrMalformed)
			}
			return v
		}
		text := func(i int) string {
			if fields[i] == NA {
				return ""
			}
			return fields[i]
		}
		imp.Date = text(0)
		imp.GPS = num(1)
		imp.PMed, imp.PCILo, imp.PCIHi = num(2), num(3), num(4)
		imp.Face, imp.Local = text(5), text(6)
		imp.LatSC, imp.LonSC = num(7), num(8)
		imp.LatSSE, imp.LonSSE = num(9), num(10)
		imp.LPF = [3]float64{num(11), num(12), num(13)}
		if err != nil {
			return nil, err
		}
		out = append(out, imp)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read impacts: %w", err)
	}
	return out, nil
}

// Load parses the impacts file at path.
func Load(path string) (List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open impacts: %w", err)
	}
	defer f.Close()
	l, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Between returns the impacts with lo <= GPS <= hi. Rows without a GPS time
// are never included.
func (l List) Between(lo, hi float64) List {
	var out List
	for _, imp := range l {
		if imp.GPS >= lo && imp.GPS <= hi {
			out = append(out, imp)
		}
	}
	return out
}
