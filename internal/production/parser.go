// Package production reads the monthly payroll production export: one row
// per client with the number of payslips, hires and departures.
package production

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/diewo77/go-honoraires/internal/fees"
)

// ErrInvalidRow is returned for a data row with an unreadable count.
var ErrInvalidRow = errors.New("invalid production row")

// Layout locates the data in the workbook. Columns are spreadsheet letters,
// HeaderRow is 1-based; data starts on the next row.
type Layout struct {
	Sheet        string // first sheet when empty
	HeaderRow    int
	RegistryCol  string
	NameCol      string
	BulletinsCol string
	EntriesCol   string
	ExitsCol     string
}

// DefaultLayout reads columns A to E below a header on the first row.
func DefaultLayout() Layout {
	return Layout{
		HeaderRow:    1,
		RegistryCol:  "A",
		NameCol:      "B",
		BulletinsCol: "C",
		EntriesCol:   "D",
		ExitsCol:     "E",
	}
}

// Row is one client line of the export.
type Row struct {
	Line           int    `json:"line"`
	RegistryNumber string `json:"registry_number"`
	Name           string `json:"name"`
	Bulletins      int    `json:"bulletins"`
	Entries        int    `json:"entries"`
	Exits          int    `json:"exits"`
}

type columns struct {
	registry, name, bulletins, entries, exits int
}

func (l Layout) columns() (columns, error) {
	var c columns
	for _, f := range []struct {
		letter string
		dst    *int
	}{
		{l.RegistryCol, &c.registry},
		{l.NameCol, &c.name},
		{l.BulletinsCol, &c.bulletins},
		{l.EntriesCol, &c.entries},
		{l.ExitsCol, &c.exits},
	} {
		n, err := excelize.ColumnNameToNumber(f.letter)
		if err != nil {
			return columns{}, fmt.Errorf("layout column %q: %w", f.letter, err)
		}
		*f.dst = n - 1
	}
	return c, nil
}

// Parse reads the rows below the header. Blank rows are skipped and the
// first "total" row ends the data.
func Parse(r io.Reader, layout Layout) ([]Row, error) {
	if layout.HeaderRow < 1 {
		layout.HeaderRow = 1
	}
	cols, err := layout.columns()
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := layout.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var out []Row
	for i := layout.HeaderRow; i < len(rows); i++ {
		cells := rows[i]
		line := i + 1
		registry := cell(cells, cols.registry)
		name := cell(cells, cols.name)
		if registry == "" && name == "" {
			continue
		}
		if isTotalRow(registry, name) {
			break
		}

		row := Row{Line: line, RegistryNumber: registry, Name: name}
		for _, n := range []struct {
			col int
			dst *int
		}{
			{cols.bulletins, &row.Bulletins},
			{cols.entries, &row.Entries},
			{cols.exits, &row.Exits},
		} {
			v, err := count(cell(cells, n.col))
			if err != nil {
				return out, fmt.Errorf("%w: line %d: %v", ErrInvalidRow, line, err)
			}
			*n.dst = v
		}
		out = append(out, row)
	}
	return out, nil
}

func cell(cells []string, idx int) string {
	if idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}

// isTotalRow recognises the summary row closing the export. A row carrying a
// registry number is always a client, whatever its name.
func isTotalRow(registry, name string) bool {
	if strings.ContainsAny(registry, "0123456789") {
		return false
	}
	if registry != "" {
		return isTotalLabel(registry)
	}
	return isTotalLabel(name)
}

func isTotalLabel(s string) bool {
	l := strings.TrimRight(fees.NormalizeLabel(s), " :")
	switch l {
	case "total", "totaux", "total general", "sous-total", "sous total":
		return true
	}
	return false
}

// count parses a cell holding a number of documents. French decimal commas
// and thousands spaces are accepted.
func count(s string) (int, error) {
	if s == "" || s == "-" {
		return 0, nil
	}
	s = strings.NewReplacer(" ", "", "\u00a0", "", ",", ".").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative count: %q", s)
	}
	return int(math.Round(v)), nil
}
