// Package importer turns uploaded export files into rows keyed by field name.
// It never touches the database.
package importer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEncoding  = errors.New("file is not valid UTF-8")
	ErrExtension = errors.New("unsupported file extension")
	ErrMalformed = errors.New("malformed file")
	ErrEmpty     = errors.New("file is empty")
)

// Row is one data line of an export. Line is the 1-based line where the
// record starts (CSV), the sheet row (XLSX) or the array position (JSON).
type Row struct {
	Line   int
	Fields map[string]string
}

func (r Row) Get(field string) string {
	return strings.TrimSpace(r.Fields[field])
}

// Rejection is a record dropped at parse time without failing the file.
type Rejection struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type Batch struct {
	Category Category
	Filename string
	Rows     []Row
	Rejected []Rejection
}

// Parse validates and decodes an uploaded file for the given category.
func Parse(filename string, data []byte, category Category) (*Batch, error) {
	cols := category.columns()
	if cols == nil {
		return nil, fmt.Errorf("%w: %q", ErrCategory, category)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(category.Extensions(), ext) {
		return nil, fmt.Errorf("%w %q for %s, expected one of %s",
			ErrExtension, ext, category, strings.Join(category.Extensions(), ", "))
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	var (
		records [][]string
		lines   []int
	)
	switch ext {
	case ".xlsx":
		var err error
		if records, lines, err = readXLSX(data); err != nil {
			return nil, err
		}
	default:
		if !utf8.Valid(data) {
			return nil, ErrEncoding
		}
		data = bytes.TrimPrefix(data, []byte("\ufeff"))
		if ext == ".json" {
			return parseJSON(filename, data, category, cols)
		}
		var err error
		if records, lines, err = readCSV(data); err != nil {
			return nil, err
		}
	}
	return parseTable(filename, records, lines, category, cols)
}

// parseTable maps records to rows; lines[i] is the source line of records[i].
func parseTable(filename string, records [][]string, lines []int, category Category, cols Columns) (*Batch, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	idx, err := cols.index(records[0])
	if err != nil {
		return nil, err
	}

	b := &Batch{Category: category, Filename: filename}
	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := Row{Line: lines[i+1], Fields: make(map[string]string, len(idx))}
		for field, pos := range idx {
			if pos < len(rec) {
				row.Fields[field] = rec[pos]
			}
		}
		b.accept(row, cols)
	}
	return b, nil
}

func parseJSON(filename string, data []byte, category Category, cols Columns) (*Batch, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var objects []map[string]any
	if err := dec.Decode(&objects); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array of objects: %v", ErrMalformed, err)
	}
	// null decodes into a nil slice without error.
	if objects == nil {
		return nil, fmt.Errorf("%w: expected a JSON array of objects, got null", ErrMalformed)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: unexpected content after the JSON array", ErrMalformed)
	}

	known := cols.byHeader()
	b := &Batch{Category: category, Filename: filename}
	for i, obj := range objects {
		row := Row{Line: i + 1, Fields: make(map[string]string, len(known))}
		for k, v := range obj {
			if c, ok := known[normalizeHeader(k)]; ok {
				row.Fields[c.Field] = stringify(v)
			}
		}
		b.accept(row, cols)
	}
	return b, nil
}

// accept keeps the row unless a required field is empty; tabular files have
// already had required headers checked, so this only rejects blank cells.
func (b *Batch) accept(row Row, cols Columns) {
	var missing []string
	for _, c := range cols {
		if c.Required && row.Get(c.Field) == "" {
			missing = append(missing, c.Header)
		}
	}
	if len(missing) > 0 {
		b.Rejected = append(b.Rejected, Rejection{
			Line:   row.Line,
			Reason: "missing " + strings.Join(missing, ", "),
		})
		return
	}
	b.Rows = append(b.Rows, row)
}

// readCSV returns the records with the line each one starts on. Blank lines
// and quoted line breaks are accounted for by the reader.
func readCSV(data []byte) ([][]string, []int, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var (
		records [][]string
		lines   []int
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		line, _ := r.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return records, lines, nil
}

// detectDelimiter picks ';' when the header uses it more than ','; French
// spreadsheet exports default to semicolons.
func detectDelimiter(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		return ';'
	}
	return ','
}

// readXLSX reads the first sheet. GetRows keeps empty rows in place, so the
// sheet row is the slice index plus one.
func readXLSX(data []byte) ([][]string, []int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ErrEmpty
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sheet %s: %v", ErrMalformed, sheets[0], err)
	}
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return rows, lines, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
