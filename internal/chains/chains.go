// Package chains reads the raw per-chain PSD sample files of one time window.
//
// Raw file convention: whitespace-separated text, one row per frequency bin,
// column 0 is the frequency (ascending) and columns 1..C hold one value per
// configured channel, in configuration order. Further columns are ignored.
// Each file holds one chain; file "psd.dat.N" is chain N.
//
// A row whose first data column reaches the sentinel in any chain file of a
// window drops that frequency for every channel and every chain of the window.
package chains

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// FilePrefix is the name every chain file starts with; the chain index follows it.
const FilePrefix = "psd.dat."

// DefaultSentinel is the first-column value at and above which a row is invalid.
const DefaultSentinel = 2.0

// DefaultPrecision is the number of decimals used when Options.Precision is zero.
const DefaultPrecision = 5

var (
	ErrNoChains        = errors.New("no chain files")
	ErrMissingChain    = errors.New("missing chain file")
	ErrMalformedSample = errors.New("malformed sample file")
	ErrAxisMismatch    = errors.New("frequency axis mismatch")
)

// Options controls how a window is imported.
type Options struct {
	// Channels names the data columns after the frequency column.
	Channels []string
	// Precision is the number of decimals frequencies are rounded to; zero
	// means DefaultPrecision.
	Precision int
	// Sentinel marks invalid rows; zero means DefaultSentinel.
	Sentinel float64
	// ExpectedChains, when positive, is the exact number of chain files required.
	ExpectedChains int
}

func (o Options) precision() int {
	if o.Precision <= 0 {
		return DefaultPrecision
	}
	return o.Precision
}

func (o Options) sentinel() float64 {
	if o.Sentinel == 0 {
		return DefaultSentinel
	}
	return o.Sentinel
}

// ChainFile is one chain's sample file.
type ChainFile struct {
	Index int
	Path  string
}

// Matrix holds the surviving samples of one channel in one window.
// Samples[row][chain] belongs to frequency Freqs[row].
type Matrix struct {
	Channel string
	Freqs   []float64
	Samples [][]float64
}

// Chains returns the number of chain columns.
func (m Matrix) Chains() int {
	if len(m.Samples) == 0 {
		return 0
	}
	return len(m.Samples[0])
}

// WindowData is everything imported for one time window.
type WindowData struct {
	Dir  string
	Time int64
	// Axis is the full rounded frequency axis, including dropped rows.
	Axis []float64
	// Dropped lists the frequencies removed by the sentinel rule.
	Dropped []float64
	// Matrices has one entry per channel in configuration order; all share
	// the same surviving rows.
	Matrices []Matrix
	Chains   int
}

// RoundFreq rounds f to the given number of decimals so that frequencies
// read from different files compare equal.
func RoundFreq(f float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Round(f*p) / p
}

// ChainFiles lists the chain files in dir ordered by numeric chain index, so
// psd.dat.2 sorts before psd.dat.19.
func ChainFiles(dir string) ([]ChainFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read window %s: %w", dir, err)
	}
	var files []ChainFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		suffix, ok := strings.CutPrefix(e.Name(), FilePrefix)
		if !ok || suffix == "" || strings.TrimLeft(suffix, "0123456789") != "" {
			continue
		}
		idx, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		files = append(files, ChainFile{Index: idx, Path: filepath.Join(dir, e.Name())})
	}
	slices.SortFunc(files, func(a, b ChainFile) int { return a.Index - b.Index })
	return files, nil
}

// checkChainSet requires chain indices 0..n-1 without gaps or duplicates.
func checkChainSet(dir string, files []ChainFile, expected int) error {
	if len(files) == 0 {
		return fmt.Errorf("window %s: %w", dir, ErrNoChains)
	}
	for i, f := range files {
		if f.Index != i {
			if f.Index < i {
				return fmt.Errorf("window %s: duplicate chain index %d: %w", dir, f.Index, ErrMalformedSample)
			}
			return fmt.Errorf("window %s: chain %d: %w", dir, i, ErrMissingChain)
		}
	}
	if expected > 0 && len(files) != expected {
		if len(files) < expected {
			return fmt.Errorf("window %s: chain %d of %d: %w", dir, len(files), expected, ErrMissingChain)
		}
		return fmt.Errorf("window %s: found %d chains, expected %d: %w", dir, len(files), expected, ErrMalformedSample)
	}
	return nil
}
