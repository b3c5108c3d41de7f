package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Series represents a named data series for plotting against its index.
type Series struct {
	Name   string
	Values []float64
}

// XYSeries is a named series of (x, y) points for log-log plots. Scatter
// series are drawn as dots, the others as connected lines.
type XYSeries struct {
	Name    string
	X       []float64
	Y       []float64
	Scatter bool
}

type seriesMinMaxRange struct {
	min float64
	max float64
}

type lineStyle struct {
	name   string
	period int
	on     int
}

type ansiColor struct {
	name string
	code string
}

const (
	defaultPlotHeight   = 10
	minPlotWidth        = 10
	axisLabelTop        = "max"
	axisLabelMid        = "mid"
	axisLabelBottom     = "min"
	axisSeparator       = " │ "
	scaleNote           = "Scaled per series; see min/max below."
	logScaleNote        = "Log-log axes shared by all series."
	logAxisLabelWidth   = 8
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var lineStyles = []lineStyle{
	{name: "solid", period: 1, on: 1},
	{name: "dashed", period: 6, on: 3},
	{name: "dotted", period: 4, on: 1},
	{name: "dashdot", period: 8, on: 3},
}

var colorPalette = []ansiColor{
	{name: "cyan", code: "\x1b[36m"},
	{name: "magenta", code: "\x1b[35m"},
	{name: "yellow", code: "\x1b[33m"},
	{name: "green", code: "\x1b[32m"},
	{name: "blue", code: "\x1b[34m"},
}

// PlotSeries renders a multi-line text plot for the provided series.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	return plotSeries(w, title, series, width, height, false)
}

// PlotSeriesWithColor renders a multi-line text plot with optional forced color output.
func PlotSeriesWithColor(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	return plotSeries(w, title, series, width, height, forceColor)
}

func plotSeries(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	series = filterSeries(series)
	if len(series) == 0 {
		return nil
	}
	height, width = plotSize(width, height, runewidth.StringWidth(axisLabelTop))

	scaled := make([]Series, 0, len(series))
	for _, s := range series {
		scaled = append(scaled, Series{
			Name:   s.Name,
			Values: resampleSeries(s.Values, width),
		})
	}

	minMax := make([]seriesMinMaxRange, 0, len(scaled))
	for _, s := range scaled {
		minVal, maxVal := seriesMinMaxSingle(s.Values)
		if math.Abs(maxVal-minVal) < 1e-9 {
			minVal--
			maxVal++
		}
		minMax = append(minMax, seriesMinMaxRange{min: minVal, max: maxVal})
	}

	seriesCells := make([][][]uint8, 0, len(scaled))
	for si, s := range scaled {
		cells := makeCells(height, width)
		style := lineStyles[si%len(lineStyles)]
		prevX, prevY := -1, -1
		for x, v := range s.Values {
			px := x * 2
			py := valueToRow(v, minMax[si].min, minMax[si].max, height*4)
			if prevX >= 0 {
				drawLine(prevX, prevY, px, py, func(dx, dy int) {
					if style.shouldPlot(dx) {
						setBrailleDot(cells, dx, dy)
					}
				})
			} else if style.shouldPlot(px) {
				setBrailleDot(cells, px, py)
			}
			prevX, prevY = px, py
		}
		seriesCells = append(seriesCells, cells)
	}

	useColor := shouldUseColor(w, forceColor)
	header := []string{scaleNote}
	for i, s := range scaled {
		header = append(header, fmt.Sprintf("%s: min=%.4g max=%.4g", s.Name, minMax[i].min, minMax[i].max))
	}
	names := make([]string, len(scaled))
	for i, s := range scaled {
		names[i] = s.Name
	}
	return writePlot(w, title, header, makeAxisLabels(height, axisLabelTop, axisLabelMid, axisLabelBottom), seriesCells, nil, names, useColor)
}

// PlotLogLog renders series on shared logarithmic axes. Points with a
// non-positive coordinate cannot be placed and are skipped.
func PlotLogLog(w io.Writer, title string, series []XYSeries, width, height int) error {
	return PlotLogLogWithColor(w, title, series, width, height, false)
}

// PlotLogLogWithColor renders a log-log plot with optional forced color output.
func PlotLogLogWithColor(w io.Writer, title string, series []XYSeries, width, height int, forceColor bool) error {
	logged := make([]XYSeries, 0, len(series))
	for _, s := range series {
		ls := logPoints(s)
		if len(ls.X) == 0 {
			continue
		}
		logged = append(logged, ls)
	}
	if len(logged) == 0 {
		return nil
	}
	height, width = plotSize(width, height, logAxisLabelWidth)

	xr := seriesMinMaxRange{min: math.Inf(1), max: math.Inf(-1)}
	yr := xr
	for _, s := range logged {
		lo, hi := seriesMinMaxSingle(s.X)
		xr.min, xr.max = math.Min(xr.min, lo), math.Max(xr.max, hi)
		lo, hi = seriesMinMaxSingle(s.Y)
		yr.min, yr.max = math.Min(yr.min, lo), math.Max(yr.max, hi)
	}
	if xr.max-xr.min < 1e-9 {
		xr.min, xr.max = xr.min-1, xr.max+1
	}
	if yr.max-yr.min < 1e-9 {
		yr.min, yr.max = yr.min-1, yr.max+1
	}

	scatter := make([]bool, len(logged))
	for si, s := range logged {
		scatter[si] = s.Scatter
	}
	styles := styleSequence(len(logged), scatter)

	seriesCells := make([][][]uint8, 0, len(logged))
	for si, s := range logged {
		cells := makeCells(height, width)
		style := styles[si]
		prevX, prevY := -1, -1
		for i := range s.X {
			px := valueToCol(s.X[i], xr.min, xr.max, width*2)
			py := valueToRow(s.Y[i], yr.min, yr.max, height*4)
			switch {
			case s.Scatter:
				setBrailleDot(cells, px, py)
			case prevX >= 0:
				drawLine(prevX, prevY, px, py, func(dx, dy int) {
					if style.shouldPlot(dx) {
						setBrailleDot(cells, dx, dy)
					}
				})
			default:
				setBrailleDot(cells, px, py)
			}
			prevX, prevY = px, py
		}
		seriesCells = append(seriesCells, cells)
	}

	useColor := shouldUseColor(w, forceColor)
	header := []string{
		logScaleNote,
		fmt.Sprintf("x: %s .. %s", formatDecade(xr.min), formatDecade(xr.max)),
	}
	labels := makeAxisLabels(height, formatDecade(yr.max), formatDecade((yr.min+yr.max)/2), formatDecade(yr.min))
	names := make([]string, len(logged))
	for i, s := range logged {
		names[i] = s.Name
	}
	return writePlot(w, title, header, labels, seriesCells, scatter, names, useColor)
}

func logPoints(s XYSeries) XYSeries {
	out := XYSeries{Name: s.Name, Scatter: s.Scatter}
	n := min(len(s.X), len(s.Y))
	for i := 0; i < n; i++ {
		if !(s.X[i] > 0) || !(s.Y[i] > 0) || math.IsInf(s.X[i], 0) || math.IsInf(s.Y[i], 0) {
			continue
		}
		out.X = append(out.X, math.Log10(s.X[i]))
		out.Y = append(out.Y, math.Log10(s.Y[i]))
	}
	return out
}

func formatDecade(exp float64) string {
	return fmt.Sprintf("%.2g", math.Pow(10, exp))
}

func plotSize(width, height, labelWidth int) (int, int) {
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = plotWidthWithLabel(terminalWidth(), labelWidth)
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}
	return height, width
}

func writePlot(w io.Writer, title string, header, axisLabels []string, seriesCells [][][]uint8, scatter []bool, names []string, useColor bool) error {
	leftAxisWidth := 0
	for _, l := range axisLabels {
		leftAxisWidth = max(leftAxisWidth, runewidth.StringWidth(l))
	}
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	for _, line := range header {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	height := len(axisLabels)
	width := 0
	if len(seriesCells) > 0 && height > 0 {
		width = len(seriesCells[0][0])
	}
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(padCell(axisLabels[y], leftAxisWidth, true))
		row.WriteString(axisSeparator)
		for x := 0; x < width; x++ {
			mask, colorIdx := composeCell(seriesCells, x, y)
			ch := brailleFromMask(mask)
			if useColor && colorIdx >= 0 {
				row.WriteString(colorPalette[colorIdx%len(colorPalette)].code)
				row.WriteRune(ch)
				row.WriteString(colorReset)
			} else {
				row.WriteRune(ch)
			}
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, renderLegend(names, scatter, useColor)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func filterSeries(series []Series) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	return plotWidthWithLabel(totalWidth, runewidth.StringWidth(axisLabelTop))
}

// LogLogWidthFor is PlotWidthFor for log-log plots, whose axis labels are wider.
func LogLogWidthFor(totalWidth int) int {
	return plotWidthWithLabel(totalWidth, logAxisLabelWidth)
}

func plotWidthWithLabel(totalWidth, labelWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - labelWidth - runewidth.StringWidth(axisSeparator)
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func makeAxisLabels(height int, top, mid, bottom string) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	labels[0] = top
	if height > 2 {
		labels[height/2] = mid
	}
	if height > 1 {
		labels[height-1] = bottom
	}
	return labels
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := 0; y < height; y++ {
		cells[y] = make([]uint8, width)
	}
	return cells
}

func composeCell(seriesCells [][][]uint8, x, y int) (uint8, int) {
	var mask uint8
	colorIdx := -1
	for i, cells := range seriesCells {
		if y < 0 || y >= len(cells) {
			continue
		}
		if x < 0 || x >= len(cells[y]) {
			continue
		}
		cellMask := cells[y][x]
		if cellMask == 0 {
			continue
		}
		if colorIdx == -1 {
			colorIdx = i
		}
		mask |= cellMask
	}
	return mask, colorIdx
}

func (ls lineStyle) shouldPlot(x int) bool {
	if ls.period <= 1 {
		return true
	}
	if x < 0 {
		x = -x
	}
	return x%ls.period < ls.on
}

func resampleSeries(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	if len(values) == width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	if len(values) > width {
		for i := 0; i < width; i++ {
			start := int(float64(i) * float64(len(values)) / float64(width))
			end := int(float64(i+1) * float64(len(values)) / float64(width))
			if end <= start {
				end = start + 1
			}
			if end > len(values) {
				end = len(values)
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
		return out
	}
	if width == 1 || len(values) == 1 {
		for i := range out {
			out[i] = values[0]
		}
		return out
	}
	for i := 0; i < width; i++ {
		pos := float64(i) * float64(len(values)-1) / float64(width-1)
		idx := int(math.Floor(pos))
		if idx >= len(values)-1 {
			out[i] = values[len(values)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = values[idx]*(1-frac) + values[idx+1]*frac
	}
	return out
}

func seriesMinMaxSingle(values []float64) (float64, float64) {
	minVal := math.Inf(1)
	maxVal := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.IsInf(minVal, 1) {
		minVal = 0
	}
	if math.IsInf(maxVal, -1) {
		maxVal = 0
	}
	return minVal, maxVal
}

func valueToRow(v, minVal, maxVal float64, height int) int {
	if height <= 1 || math.IsNaN(v) {
		return 0
	}
	pos := (v - minVal) / (maxVal - minVal)
	row := int(math.Round((1 - pos) * float64(height-1)))
	return max(0, min(row, height-1))
}

func valueToCol(v, minVal, maxVal float64, width int) int {
	if width <= 1 {
		return 0
	}
	pos := (v - minVal) / (maxVal - minVal)
	col := int(math.Round(pos * float64(width-1)))
	return max(0, min(col, width-1))
}

func renderLegend(names []string, scatter []bool, useColor bool) string {
	parts := make([]string, 0, len(names))
	marker := brailleFromMask(0x01)
	styles := styleSequence(len(names), scatter)
	for i, name := range names {
		styleName := styles[i].name
		if i < len(scatter) && scatter[i] {
			styleName = "points"
		}
		label := fmt.Sprintf("%c %s (%s)", marker, name, styleName)
		if useColor {
			label = colorPalette[i%len(colorPalette)].code + label + colorReset
		}
		parts = append(parts, label)
	}
	return "Legend: " + strings.Join(parts, "  ")
}

// styleSequence assigns line styles in order, skipping scatter series.
func styleSequence(n int, scatter []bool) []lineStyle {
	out := make([]lineStyle, n)
	next := 0
	for i := range out {
		if i < len(scatter) && scatter[i] {
			out[i] = lineStyles[0]
			continue
		}
		out[i] = lineStyles[next%len(lineStyles)]
		next++
	}
	return out
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func setBrailleDot(cells [][]uint8, x, y int) {
	if y < 0 || x < 0 {
		return
	}
	cellY := y / 4
	cellX := x / 2
	if cellY >= len(cells) || cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

func brailleDotMask(x, y int) uint8 {
	switch {
	case x == 0 && y == 0:
		return 0x01
	case x == 0 && y == 1:
		return 0x02
	case x == 0 && y == 2:
		return 0x04
	case x == 0 && y == 3:
		return 0x40
	case x == 1 && y == 0:
		return 0x08
	case x == 1 && y == 1:
		return 0x10
	case x == 1 && y == 2:
		return 0x20
	case x == 1 && y == 3:
		return 0x80
	default:
		return 0
	}
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}
