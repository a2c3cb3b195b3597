// Package spreadsheet reads the first sheet of an uploaded workbook (or a CSV
// file) into typed cells, keeping enough type information to tell a native
// date cell from a text cell that merely looks like one.
package spreadsheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported file format: expected .xlsx or .csv")

type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindBool
	KindDate
)

type Cell struct {
	Kind   Kind
	Raw    string
	Number float64
	Bool   bool
	Time   time.Time
}

// Truthy mirrors how a loosely typed sheet value reads as a flag: empty,
// false and zero are false, any other value (including any non-empty text)
// is true.
func (c Cell) Truthy() bool {
	switch c.Kind {
	case KindEmpty:
		return false
	case KindBool:
		return c.Bool
	case KindNumber:
		return c.Number != 0
	case KindDate:
		return true
	default:
		return strings.TrimSpace(c.Raw) != ""
	}
}

func (c Cell) String() string {
	if c.Kind == KindDate {
		return c.Time.Format(time.RFC3339)
	}
	return strings.TrimSpace(c.Raw)
}

type Row struct {
	// Number is the 1-based row position in the sheet.
	Number int
	Cells  []Cell
}

func (r Row) Blank() bool {
	for _, c := range r.Cells {
		if c.Kind != KindEmpty {
			return false
		}
	}
	return true
}

// DefaultUnzipRatio bounds how far a workbook may expand when unzipped,
// relative to the upload size limit.
const DefaultUnzipRatio = 20

// maxInMemoryXML matches excelize's default spill threshold for sheet XML.
const maxInMemoryXML int64 = 16 << 20

type Options struct {
	// MaxUnzipBytes caps the declared uncompressed size of a workbook.
	// Zero keeps excelize's defaults.
	MaxUnzipBytes int64
}

// OptionsForUpload derives read limits from the maximum accepted upload size.
func OptionsForUpload(maxUploadBytes int64) Options {
	if maxUploadBytes <= 0 {
		return Options{}
	}
	return Options{MaxUnzipBytes: maxUploadBytes * DefaultUnzipRatio}
}

func (o Options) excelizeOptions() excelize.Options {
	if o.MaxUnzipBytes <= 0 {
		return excelize.Options{}
	}
	xmlLimit := maxInMemoryXML
	if o.MaxUnzipBytes < xmlLimit {
		xmlLimit = o.MaxUnzipBytes
	}
	return excelize.Options{UnzipSizeLimit: o.MaxUnzipBytes, UnzipXMLSizeLimit: xmlLimit}
}

// Read parses r according to the file name's extension, sniffing the zip
// signature when the extension is unknown.
func Read(filename string, r io.Reader, opts Options) ([]Row, error) {
	br := bufio.NewReader(r)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return readXLSX(br, opts)
	case ".csv":
		return readCSV(br)
	}
	head, _ := br.Peek(4)
	if bytes.Equal(head, []byte("PK\x03\x04")) {
		return readXLSX(br, opts)
	}
	return nil, ErrUnsupportedFormat
}

func readXLSX(r io.Reader, opts Options) ([]Row, error) {
	f, err := excelize.OpenReader(r, opts.excelizeOptions())
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	rows := make([]Row, 0, len(raw))
	for i, values := range raw {
		row := Row{Number: i + 1, Cells: make([]Cell, 0, len(values))}
		for j, v := range values {
			cell, err := xlsxCell(f, sheet, j+1, i+1, v, date1904)
			if err != nil {
				return nil, err
			}
			row.Cells = append(row.Cells, cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func xlsxCell(f *excelize.File, sheet string, col, row int, raw string, date1904 bool) (Cell, error) {
	if raw == "" {
		return Cell{Kind: KindEmpty}, nil
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Cell{}, err
	}
	cellType, err := f.GetCellType(sheet, axis)
	if err != nil {
		return Cell{}, fmt.Errorf("cell %s: %w", axis, err)
	}
	switch cellType {
	case excelize.CellTypeBool:
		return Cell{Kind: KindBool, Raw: raw, Bool: raw == "1" || strings.EqualFold(raw, "true")}, nil
	case excelize.CellTypeDate:
		if t, ok := parseISODateTime(raw); ok {
			return Cell{Kind: KindDate, Raw: raw, Time: t}, nil
		}
		return Cell{Kind: KindText, Raw: raw}, nil
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeError:
		return Cell{Kind: KindText, Raw: raw}, nil
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return Cell{Kind: KindText, Raw: raw}, nil
	}
	if isDateStyled(f, sheet, axis) {
		t, err := excelize.ExcelDateToTime(n, date1904)
		if err == nil {
			return Cell{Kind: KindDate, Raw: raw, Number: n, Time: t}, nil
		}
	}
	return Cell{Kind: KindNumber, Raw: raw, Number: n}, nil
}

func isDateStyled(f *excelize.File, sheet, axis string) bool {
	styleID, err := f.GetCellStyle(sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil && *style.CustomNumFmt != "" {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	return isBuiltinDateFormat(style.NumFmt)
}

// Built-in number format ids that render dates or times (ECMA-376 18.8.30,
// plus the CJK locale ranges).
func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	}
	return false
}

func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range code {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	stripped := strings.ToLower(b.String())
	return strings.ContainsAny(stripped, "ydh") || strings.Contains(stripped, "mm")
}

func parseISODateTime(raw string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func readCSV(r *bufio.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows []Row
	for i := 1; ; i++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if i == 1 && len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
		}
		row := Row{Number: i, Cells: make([]Cell, 0, len(record))}
		for _, v := range trimTrailingEmpty(record) {
			row.Cells = append(row.Cells, csvCell(v))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// trimTrailingEmpty drops empty trailing fields so a CSV row counts columns
// the same way a sheet row does.
func trimTrailingEmpty(record []string) []string {
	end := len(record)
	for end > 0 && strings.TrimSpace(record[end-1]) == "" {
		end--
	}
	return record[:end]
}

func csvCell(v string) Cell {
	s := strings.TrimSpace(v)
	if s == "" {
		return Cell{Kind: KindEmpty, Raw: v}
	}
	if strings.EqualFold(s, "true") || strings.EqualFold(s, "false") {
		return Cell{Kind: KindBool, Raw: v, Bool: strings.EqualFold(s, "true")}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return Cell{Kind: KindNumber, Raw: v, Number: n}
	}
	return Cell{Kind: KindText, Raw: v}
}
