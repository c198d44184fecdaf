// Package tables finds structured tables in PDF documents from positioned
// text. Two independent strategies run over every page: a grid strategy that
// keys on aligned columns and rows (ruled, lattice-style tables) and a
// whitespace strategy that splits rows on large horizontal gaps (looser
// layouts). Candidates from both strategies are kept side by side; consumers
// see both readings of the same physical table.
package tables

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"docpipe/internal/logger"
	"docpipe/pkg/models"
)

const (
	MethodGrid       = "grid_lattice"
	MethodWhitespace = "whitespace_stream"

	// Fixed accuracy estimate for the whitespace strategy, which has no
	// intrinsic quality score.
	whitespaceAccuracy = 0.8

	xBucket      = 5.0  // column alignment bucket (points)
	yBucket      = 3.0  // row alignment bucket (points)
	rowTolerance = 3.0  // Y tolerance when grouping fragments into rows
	columnGap    = 30.0 // horizontal gap treated as a cell boundary
	joinGap      = 1.0  // fragments closer than this are glued without a space
)

// fragment is one positioned text run on a page.
type fragment struct {
	x, y, w float64
	text    string
}

// Extractor locates candidate tables in PDFs.
type Extractor struct {
	log zerolog.Logger
}

func New() *Extractor {
	return &Extractor{log: logger.WithComponent("tables")}
}

// Extract runs both strategies over all pages of the PDF at path. Candidates
// with a single row or a single column are discarded as false positives.
// Any strategy failure is logged and yields an empty contribution; table
// extraction never fails the document.
func (e *Extractor) Extract(path string) []models.TableRecord {
	pages, err := e.readPages(path)
	if err != nil {
		e.log.Warn().Err(err).Str("file", path).Msg("Table extraction failed")
		return nil
	}

	records := buildRecords(pages)
	e.log.Info().Str("file", path).Int("tables", len(records)).Msg("Table extraction completed")
	return records
}

// buildRecords runs both strategies over the pages in ascending page order:
// all grid candidates first, then all whitespace candidates. The fixed order
// keeps TableID assignment deterministic, so identical input bytes always
// produce identical result JSON.
func buildRecords(pages map[int][]fragment) []models.TableRecord {
	pageNums := make([]int, 0, len(pages))
	for num := range pages {
		pageNums = append(pageNums, num)
	}
	sort.Ints(pageNums)

	var records []models.TableRecord
	for _, num := range pageNums {
		if data, accuracy, ok := gridTable(pages[num]); ok {
			records = append(records, models.TableRecord{
				TableID:  len(records) + 1,
				Method:   MethodGrid,
				Accuracy: accuracy,
				Data:     data,
				Shape:    [2]int{len(data), len(data[0])},
				Page:     fmt.Sprintf("%d", num),
			})
		}
	}

	for _, num := range pageNums {
		if data, ok := whitespaceTable(pages[num]); ok {
			records = append(records, models.TableRecord{
				TableID:  len(records) + 1,
				Method:   MethodWhitespace,
				Accuracy: whitespaceAccuracy,
				Data:     data,
				Shape:    [2]int{len(data), len(data[0])},
				Page:     "unknown",
			})
		}
	}
	return records
}

// readPages collects positioned text per page, 1-based. The pdf library
// panics on some malformed content streams, so the recover keeps a bad page
// from failing its siblings.
func (e *Extractor) readPages(path string) (map[int][]fragment, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := make(map[int][]fragment)
	for i := 1; i <= r.NumPage(); i++ {
		frags, err := e.readPage(r, i)
		if err != nil {
			e.log.Warn().Err(err).Int("page", i).Msg("Skipping unreadable page")
			continue
		}
		if len(frags) > 0 {
			pages[i] = frags
		}
	}
	return pages, nil
}

func (e *Extractor) readPage(r *pdf.Reader, num int) (frags []fragment, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page content panic: %v", rec)
		}
	}()

	page := r.Page(num)
	if page.V.IsNull() {
		return nil, nil
	}
	for _, t := range page.Content().Text {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		frags = append(frags, fragment{x: t.X, y: t.Y, w: t.W, text: t.S})
	}
	return frags, nil
}

// gridTable detects a table from column and row alignment. Cell text snaps to
// the nearest aligned position; the returned accuracy is the fraction of
// fragments that snapped into a cell, which drops when the page is not really
// tabular.
func gridTable(frags []fragment) ([][]string, float64, bool) {
	if len(frags) < 4 {
		return nil, 0, false
	}

	xCount := make(map[int]int)
	yCount := make(map[int]int)
	for _, f := range frags {
		xCount[int(f.x/xBucket)]++
		yCount[int(f.y/yBucket)]++
	}

	var columnXs []float64
	for key, n := range xCount {
		if n >= 2 {
			columnXs = append(columnXs, float64(key)*xBucket)
		}
	}
	var rowYs []float64
	for key, n := range yCount {
		if n >= 2 {
			rowYs = append(rowYs, float64(key)*yBucket)
		}
	}
	if len(columnXs) < 2 || len(rowYs) < 2 {
		return nil, 0, false
	}

	sort.Float64s(columnXs)
	// Higher Y is higher on the page, so the top row comes first.
	sort.Sort(sort.Reverse(sort.Float64Slice(rowYs)))

	cells := make([][]string, len(rowYs))
	for r := range cells {
		cells[r] = make([]string, len(columnXs))
	}

	assigned := 0
	for _, f := range frags {
		rowIdx, colIdx := -1, -1
		for r, rowY := range rowYs {
			if math.Abs(f.y-rowY) < yBucket*2 {
				rowIdx = r
				break
			}
		}
		for c, colX := range columnXs {
			if math.Abs(f.x-colX) < xBucket*2 {
				colIdx = c
				break
			}
		}
		if rowIdx == -1 || colIdx == -1 {
			continue
		}
		if cells[rowIdx][colIdx] != "" {
			cells[rowIdx][colIdx] += " "
		}
		cells[rowIdx][colIdx] += f.text
		assigned++
	}
	if assigned == 0 {
		return nil, 0, false
	}

	return cells, float64(assigned) / float64(len(frags)), true
}

// whitespaceTable groups fragments into rows by Y proximity and splits each
// row into cells on horizontal gaps. It accepts looser layouts than the grid
// strategy but cannot report a real accuracy.
func whitespaceTable(frags []fragment) ([][]string, bool) {
	rows := groupRows(frags)
	if len(rows) < 2 {
		return nil, false
	}

	var data [][]string
	maxCols := 0
	for _, row := range rows {
		cells := splitCells(row)
		if len(cells) > maxCols {
			maxCols = len(cells)
		}
		data = append(data, cells)
	}
	if maxCols < 2 {
		return nil, false
	}

	// Pad short rows so the shape is rectangular.
	for i, row := range data {
		for len(row) < maxCols {
			row = append(row, "")
		}
		data[i] = row
	}
	return data, true
}

// groupRows buckets fragments by Y within a tolerance, top of page first.
func groupRows(frags []fragment) [][]fragment {
	type bucket struct {
		yMin, yMax float64
		frags      []fragment
	}

	var buckets []bucket
	for _, f := range frags {
		found := false
		for i := range buckets {
			if f.y >= buckets[i].yMin-rowTolerance && f.y <= buckets[i].yMax+rowTolerance {
				buckets[i].frags = append(buckets[i].frags, f)
				buckets[i].yMin = math.Min(buckets[i].yMin, f.y)
				buckets[i].yMax = math.Max(buckets[i].yMax, f.y)
				found = true
				break
			}
		}
		if !found {
			buckets = append(buckets, bucket{yMin: f.y, yMax: f.y, frags: []fragment{f}})
		}
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].yMax > buckets[j].yMax })

	rows := make([][]fragment, len(buckets))
	for i, b := range buckets {
		sort.Slice(b.frags, func(x, y int) bool { return b.frags[x].x < b.frags[y].x })
		rows[i] = b.frags
	}
	return rows
}

// splitCells breaks a sorted row into cells wherever the horizontal gap
// between fragments exceeds the column gap threshold.
func splitCells(row []fragment) []string {
	var cells []string
	var cell strings.Builder
	var prevEnd float64

	for i, f := range row {
		if i > 0 {
			gap := f.x - prevEnd
			switch {
			case gap > columnGap:
				cells = append(cells, strings.TrimSpace(cell.String()))
				cell.Reset()
			case gap > joinGap:
				cell.WriteString(" ")
			}
		}
		cell.WriteString(f.text)
		prevEnd = f.x + f.w
	}
	if cell.Len() > 0 {
		cells = append(cells, strings.TrimSpace(cell.String()))
	}
	return cells
}
