// internal/render/render.go
// Package: render
//
// Package render draws summary slices as PNG charts. Each slice is one panel
// of a grid; panels are rendered with go-chart and composed into one image
// under a figure title.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strconv"

	"github.com/montanaflynn/stats"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mwiater/psdsummary/internal/impacts"
	"github.com/mwiater/psdsummary/internal/query"
)

const (
	DefaultPanelWidth  = 480
	DefaultPanelHeight = 400
	titleHeight        = 28
	secondsPerDay      = 86400
)

var ErrNothingToDraw = errors.New("no slices to draw")

// Options sizes and labels a figure.
type Options struct {
	Title       string
	PanelWidth  int
	PanelHeight int
	// Start is the GPS time that day 0 of frequency slices refers to.
	Start int64
	// StartLabel names Start on the x axis, e.g. an ISO date.
	StartLabel string
}

func (o Options) size() (int, int) {
	w, h := o.PanelWidth, o.PanelHeight
	if w <= 0 {
		w = DefaultPanelWidth
	}
	if h <= 0 {
		h = DefaultPanelHeight
	}
	return w, h
}

// pointStyle renders points only, no connecting line.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		StrokeColor: drawing.ColorTransparent,
		DotWidth:    4,
		DotColor:    col,
	}
}

func lineStyle(col drawing.Color, alpha uint8, width float64, dashed bool) chart.Style {
	col.A = alpha
	s := chart.Style{StrokeColor: col, StrokeWidth: width}
	if dashed {
		s.StrokeDashArray = []float64{5.0, 3.0}
	}
	return s
}

// panel is one subplot: a median curve and its two credible bands.
type panel struct {
	title  string
	xName  string
	xs     []float64
	median []float64
	ci50   []query.Interval
	ci90   []query.Interval
	// marks are drawn as points along the bottom of the panel.
	marks []float64
	logX  bool
	logY  bool
	// robust clips the y range to the bulk of the 90% band.
	robust bool
}

// finite drops every point where x or y is not a finite number, and
// non-positive values on log axes.
func finite(xs, ys []float64, logX, logY bool) ([]float64, []float64) {
	var fx, fy []float64
	for i := range xs {
		x, y := xs[i], ys[i]
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		if (logX && x <= 0) || (logY && y <= 0) {
			continue
		}
		if logX {
			x = math.Log10(x)
		}
		if logY {
			y = math.Log10(y)
		}
		fx = append(fx, x)
		fy = append(fy, y)
	}
	return fx, fy
}

// continuous builds a series, widening a single point so the axis range is
// not empty.
func continuous(name string, xs, ys []float64, st chart.Style) (chart.Series, bool) {
	switch len(xs) {
	case 0:
		return nil, false
	case 1:
		return chart.ContinuousSeries{Name: name, XValues: []float64{xs[0], xs[0] + 1e-9}, YValues: []float64{ys[0], ys[0]}, Style: st}, true
	}
	return chart.ContinuousSeries{Name: name, XValues: xs, YValues: ys, Style: st}, true
}

func pick(iv []query.Interval, lo bool) []float64 {
	out := make([]float64, len(iv))
	for i, v := range iv {
		if lo {
			out[i] = v.Lo
		} else {
			out[i] = v.Hi
		}
	}
	return out
}

// robustRange follows the bulk of the data: the median of the medians,
// widened by twice the distance to the 5th and 95th percentile of the 90%
// band, floored at zero.
func robustRange(median, lo90, hi90 []float64) *chart.ContinuousRange {
	var med, lo, hi stats.Float64Data
	for i := range median {
		if !math.IsNaN(median[i]) {
			med = append(med, median[i])
		}
		if !math.IsNaN(lo90[i]) {
			lo = append(lo, lo90[i])
		}
		if !math.IsNaN(hi90[i]) {
			hi = append(hi, hi90[i])
		}
	}
	m, err1 := med.Median()
	p5, err2 := lo.Percentile(5)
	p95, err3 := hi.Percentile(95)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	top := m + 2*(p95-m)
	bottom := math.Max(m-2*(m-p5), 0)
	if !(top > bottom) {
		return nil
	}
	return &chart.ContinuousRange{Min: bottom, Max: top}
}

func pow10Formatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(math.Pow(10, f), 'g', 2, 64)
}

func (p panel) render(w, h int) (image.Image, error) {
	base := chart.ColorBlue
	var series []chart.Series
	add := func(name string, ys []float64, st chart.Style) {
		fx, fy := finite(p.xs, ys, p.logX, p.logY)
		if s, ok := continuous(name, fx, fy, st); ok {
			series = append(series, s)
		}
	}
	add("90% lo", pick(p.ci90, true), lineStyle(base, 90, 1, true))
	add("90% hi", pick(p.ci90, false), lineStyle(base, 90, 1, true))
	add("50% lo", pick(p.ci50, true), lineStyle(base, 170, 1, false))
	add("50% hi", pick(p.ci50, false), lineStyle(base, 170, 1, false))
	add("median", p.median, lineStyle(base, 255, 2, false))
	if len(series) == 0 {
		return nil, fmt.Errorf("%s: %w", p.title, ErrNothingToDraw)
	}

	ch := chart.Chart{
		Title:      p.title,
		Width:      w,
		Height:     h,
		Background: chart.Style{Padding: chart.Box{Top: 30, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{Name: p.xName},
		YAxis:      chart.YAxis{Name: "PSD"},
	}
	if p.logX {
		ch.XAxis.ValueFormatter = pow10Formatter
	}
	if p.logY {
		ch.YAxis.ValueFormatter = pow10Formatter
	}
	var yRange *chart.ContinuousRange
	if p.robust && !p.logY {
		if yRange = robustRange(p.median, pick(p.ci90, true), pick(p.ci90, false)); yRange != nil {
			ch.YAxis.Range = yRange
		}
	}

	if len(p.marks) > 0 {
		y := 0.0
		if yRange != nil {
			y = yRange.Min
		} else {
			_, fy := finite(p.xs, pick(p.ci90, true), p.logX, p.logY)
			if lo, err := stats.Min(fy); err == nil {
				y = lo
			}
		}
		ys := make([]float64, len(p.marks))
		for i := range ys {
			ys[i] = y
		}
		if s, ok := continuous("impacts", p.marks, ys, pointStyle(chart.ColorRed)); ok {
			series = append(series, s)
		}
	}
	ch.Series = series
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", p.title, err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.title, err)
	}
	return img, nil
}

// grid mirrors a square-ish subplot layout: floor(sqrt(n)) rows.
func grid(n int) (rows, cols int) {
	rows = max(int(math.Floor(math.Sqrt(float64(n)))), 1)
	cols = int(math.Ceil(float64(n) / float64(rows)))
	return rows, cols
}

func blank(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 245, G: 245, B: 245, A: 255}), image.Point{}, draw.Src)
	return img
}

// compose lays panels out on a grid under title and encodes the PNG. A panel
// that cannot be drawn is left blank.
func compose(out io.Writer, title string, panels []panel, w, h int) error {
	if len(panels) == 0 {
		return ErrNothingToDraw
	}
	rows, cols := grid(len(panels))
	canvas := image.NewRGBA(image.Rect(0, 0, cols*w, rows*h+titleHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawn := 0
	for i, p := range panels {
		img, err := p.render(w, h)
		if err != nil {
			img = blank(w, h)
		} else {
			drawn++
		}
		x, y := (i%cols)*w, (i/cols)*h+titleHeight
		draw.Draw(canvas, image.Rect(x, y, x+w, y+h), img, img.Bounds().Min, draw.Src)
	}
	if drawn == 0 {
		return ErrNothingToDraw
	}

	dr := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	tw := dr.MeasureString(title).Ceil()
	dr.Dot = fixed.Point26_6{X: fixed.I(max((cols*w-tw)/2, 4)), Y: fixed.I(titleHeight - 9)}
	dr.DrawString(title)

	return png.Encode(out, canvas)
}

// FrequencySlices draws one panel per series: median and credible bands
// against days elapsed since opts.Start. Impacts inside the run are marked
// along the bottom of every panel.
func FrequencySlices(out io.Writer, opts Options, series []query.Series, imps impacts.List) error {
	w, h := opts.size()
	xName := "Days elapsed"
	if opts.StartLabel != "" {
		xName = "Days elapsed since " + opts.StartLabel + " UTC"
	}
	panels := make([]panel, 0, len(series))
	for _, s := range series {
		xs := make([]float64, len(s.Times))
		for i, t := range s.Times {
			xs[i] = float64(t-opts.Start) / secondsPerDay
		}
		var marks []float64
		if len(s.Times) > 0 {
			for _, imp := range imps.Between(float64(s.Times[0]), float64(s.Times[len(s.Times)-1])) {
				marks = append(marks, (imp.GPS-float64(opts.Start))/secondsPerDay)
			}
		}
		panels = append(panels, panel{
			title:  strconv.FormatFloat(s.Freq*1000, 'f', 3, 64) + " mHz",
			xName:  xName,
			xs:     xs,
			median: s.Median,
			ci50:   s.CI50,
			ci90:   s.CI90,
			marks:  marks,
			robust: true,
		})
	}
	return compose(out, opts.Title, panels, w, h)
}

// TimeSlices draws one panel per spectrum on log-log axes.
func TimeSlices(out io.Writer, opts Options, spectra []query.Spectrum) error {
	w, h := opts.size()
	panels := make([]panel, 0, len(spectra))
	for _, s := range spectra {
		panels = append(panels, panel{
			title:  fmt.Sprintf("PSD at GPS time %d", s.Time),
			xName:  "Frequency (Hz)",
			xs:     s.Freqs,
			median: s.Median,
			ci50:   s.CI50,
			ci90:   s.CI90,
			logX:   true,
			logY:   true,
		})
	}
	return compose(out, opts.Title, panels, w, h)
}
