package chains

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
)

// chainTable is one parsed chain file. values is row-major with one entry
// per channel.
type chainTable struct {
	freqs   []float64
	values  []float64
	flagged []bool
}

// ImportWindow reads every chain file in dir and returns one sample matrix
// per channel. Any frequency row flagged by the sentinel rule in any chain
// file is dropped for every channel and chain of the window.
func ImportWindow(dir string, time int64, opts Options) (*WindowData, error) {
	if len(opts.Channels) == 0 {
		return nil, errors.New("import window: no channels configured")
	}
	files, err := ChainFiles(dir)
	if err != nil {
		return nil, err
	}
	if err := checkChainSet(dir, files, opts.ExpectedChains); err != nil {
		return nil, err
	}

	nch := len(opts.Channels)
	tables := make([]chainTable, len(files))
	var invalid []bool
	for i, f := range files {
		tbl, err := readChainFile(f.Path, nch, opts.precision(), opts.sentinel())
		if err != nil {
			return nil, fmt.Errorf("window %s: %w", dir, err)
		}
		if i == 0 {
			invalid = make([]bool, len(tbl.freqs))
		} else if !slices.Equal(tbl.freqs, tables[0].freqs) {
			return nil, fmt.Errorf("window %s: %s does not share the frequency axis of %s: %w",
				dir, f.Path, files[0].Path, ErrAxisMismatch)
		}
		for r, bad := range tbl.flagged {
			if bad {
				invalid[r] = true
			}
		}
		tables[i] = tbl
	}

	axis := tables[0].freqs
	data := &WindowData{
		Dir:      dir,
		Time:     time,
		Axis:     axis,
		Matrices: make([]Matrix, nch),
		Chains:   len(files),
	}
	for r, bad := range invalid {
		if bad {
			data.Dropped = append(data.Dropped, axis[r])
		}
	}
	kept := len(axis) - len(data.Dropped)
	for c, name := range opts.Channels {
		m := Matrix{
			Channel: name,
			Freqs:   make([]float64, 0, kept),
			Samples: make([][]float64, 0, kept),
		}
		for r, f := range axis {
			if invalid[r] {
				continue
			}
			row := make([]float64, len(tables))
			for k := range tables {
				row[k] = tables[k].values[r*nch+c]
			}
			m.Freqs = append(m.Freqs, f)
			m.Samples = append(m.Samples, row)
		}
		data.Matrices[c] = m
	}
	return data, nil
}

func readChainFile(path string, nch, precision int, sentinel float64) (chainTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return chainTable{}, fmt.Errorf("open chain file: %w", err)
	}
	defer f.Close()
	return parseChainTable(f, path, nch, precision, sentinel)
}

func parseChainTable(r io.Reader, name string, nch, precision int, sentinel float64) (chainTable, error) {
	var tbl chainTable
	reader := bufio.NewReader(r)
	lineNo := 0
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			if err := tbl.parseLine(line, name, lineNo, nch, precision, sentinel); err != nil {
				return chainTable{}, err
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return chainTable{}, fmt.Errorf("read %s: %w", name, readErr)
		}
	}
	if len(tbl.freqs) == 0 {
		return chainTable{}, fmt.Errorf("%s: no frequency rows: %w", name, ErrMalformedSample)
	}
	return tbl, nil
}

func (t *chainTable) parseLine(line []byte, name string, lineNo, nch, precision int, sentinel float64) error {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] == '#' {
		return nil
	}
	fields := bytes.Fields(trimmed)
	if len(fields) < nch+1 {
		return fmt.Errorf("%s:%d: %d columns, want frequency plus %d channels: %w",
			name, lineNo, len(fields), nch, ErrMalformedSample)
	}
	freq, err := strconv.ParseFloat(string(fields[0]), 64)
	if err != nil {
		return fmt.Errorf("%s:%d: frequency %q: %w", name, lineNo, fields[0], ErrMalformedSample)
	}
	freq = RoundFreq(freq, precision)
	if n := len(t.freqs); n > 0 && freq <= t.freqs[n-1] {
		return fmt.Errorf("%s:%d: frequency %g not above %g: %w", name, lineNo, freq, t.freqs[n-1], ErrMalformedSample)
	}
	for c := 1; c <= nch; c++ {
		v, err := strconv.ParseFloat(string(fields[c]), 64)
		if err != nil {
			return fmt.Errorf("%s:%d: column %d value %q: %w", name, lineNo, c, fields[c], ErrMalformedSample)
		}
		t.values = append(t.values, v)
	}
	t.freqs = append(t.freqs, freq)
	t.flagged = append(t.flagged, t.values[len(t.values)-nch] >= sentinel)
	return nil
}
