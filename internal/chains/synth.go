package chains

import (
	"bufio"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
)

// SyntheticRun describes a generated run used for demos and tests. Windows
// are spaced Step seconds apart starting at Start; indices listed in Skip
// are left out to create gaps.
type SyntheticRun struct {
	Mode     string
	Name     string
	Start    int64
	Step     int64
	Windows  int
	Skip     []int
	Chains   int
	Channels int
	Freqs    int
	// FreqStep is the bin spacing in Hz; bins start at FreqStep.
	FreqStep float64
	// SentinelRows maps a window index to frequency rows written with the
	// sentinel value in chain 0.
	SentinelRows map[int][]int
	Seed         uint64
}

// WindowDirName is the directory name used for a window at gps.
func WindowDirName(gps int64) string {
	return fmt.Sprintf("run_%010d", gps)
}

// WriteSyntheticRun writes the run below root as <mode>/<name>/<window>/psd.dat.N
// and returns the run directory.
func WriteSyntheticRun(root string, s SyntheticRun) (string, error) {
	if s.Windows <= 0 || s.Chains <= 0 || s.Channels <= 0 || s.Freqs <= 0 {
		return "", fmt.Errorf("synthetic run needs positive windows, chains, channels and freqs: %+v", s)
	}
	if s.Step <= 0 {
		s.Step = 1
	}
	if s.FreqStep <= 0 {
		s.FreqStep = 1e-3
	}
	if s.Mode == "" {
		s.Mode = "synth"
	}
	if s.Name == "" {
		s.Name = "run_synth"
	}
	skip := make(map[int]bool, len(s.Skip))
	for _, i := range s.Skip {
		skip[i] = true
	}

	runDir := filepath.Join(root, s.Mode, s.Name)
	r := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	for w := 0; w < s.Windows; w++ {
		if skip[w] {
			continue
		}
		dir := filepath.Join(runDir, WindowDirName(s.Start+int64(w)*s.Step))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		bad := make(map[int]bool)
		for _, row := range s.SentinelRows[w] {
			bad[row] = true
		}
		for c := 0; c < s.Chains; c++ {
			path := filepath.Join(dir, FilePrefix+strconv.Itoa(c))
			if err := writeSyntheticChain(path, s, r, w, c == 0, bad); err != nil {
				return "", err
			}
		}
	}
	return runDir, nil
}

func writeSyntheticChain(path string, s SyntheticRun, r *rand.Rand, window int, first bool, bad map[int]bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for i := 0; i < s.Freqs; i++ {
		freq := float64(i+1) * s.FreqStep
		w.WriteString(strconv.FormatFloat(freq, 'g', -1, 64))
		for ch := 0; ch < s.Channels; ch++ {
			v := syntheticValue(r, freq, ch, window)
			if first && bad[i] {
				v = DefaultSentinel
			}
			w.WriteByte(' ')
			w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syntheticValue is a smooth, slowly drifting spectrum with lognormal scatter,
// kept well below the sentinel.
func syntheticValue(r *rand.Rand, freq float64, ch, window int) float64 {
	base := 0.05 + 0.02*math.Sin(40*freq+float64(ch)) + 0.005*math.Sin(float64(window)/3)
	return base * math.Exp(0.1*r.NormFloat64())
}
