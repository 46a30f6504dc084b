// Package export writes list tables to Excel workbooks.
package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/obrc/blacklist/src/listing"
)

// Options control workbook layout.
type Options struct {
	SheetName    string
	FreezeHeader bool
	AutoFilter   bool
	MaxColWidth  float64
}

// DefaultOptions freeze and filter the header row.
func DefaultOptions(sheet string) Options {
	return Options{SheetName: sheet, FreezeHeader: true, AutoFilter: true, MaxColWidth: 60}
}

var (
	PersonColumns = []string{"Discord ID", "Discord Name", "Nation ID", "Nation URL", "Possible Alts", "Reason", "Proof URLs", "Added By", "Date Added", "Last Modified", "Modified By"}
	OrgColumns    = []string{"Company Name", "Owner", "Personnel", "Alts", "Reason", "Proof URLs", "Added By", "Date Added", "Last Modified", "Modified By"}
)

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// PersonRows flattens people into cell rows.
func PersonRows(people []listing.Person) [][]string {
	rows := make([][]string, 0, len(people))
	for _, p := range people {
		added := p.DateAdded
		rows = append(rows, []string{
			p.DiscordID, p.DiscordName, p.NationID, p.NationURL, p.PossibleAlts,
			p.Reason, p.ProofURLs, p.AddedBy, stamp(&added), stamp(p.LastModified), p.ModifiedBy,
		})
	}
	return rows
}

// OrgRows flattens organizations into cell rows.
func OrgRows(orgs []listing.Organization) [][]string {
	rows := make([][]string, 0, len(orgs))
	for _, o := range orgs {
		added := o.DateAdded
		rows = append(rows, []string{
			o.CompanyName, o.Owner, o.Personnel, o.Alts, o.Reason,
			o.ProofURLs, o.AddedBy, stamp(&added), stamp(o.LastModified), o.ModifiedBy,
		})
	}
	return rows
}

// WriteWorkbook renders a single sheet workbook and returns its bytes.
func WriteWorkbook(opts Options, columns []string, rows [][]string) ([]byte, error) {
	if opts.SheetName == "" {
		opts.SheetName = "Sheet1"
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", opts.SheetName); err != nil {
		return nil, fmt.Errorf("export: sheet name: %w", err)
	}
	sheet := opts.SheetName

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"2C3E50"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("export: header style: %w", err)
	}

	widths := make([]float64, len(columns))
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return nil, fmt.Errorf("export: header %s: %w", cell, err)
		}
		widths[i] = float64(len(col)) + 2
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("export: apply header style: %w", err)
	}

	for r, row := range rows {
		for c, val := range row {
			if c >= len(columns) {
				break
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellStr(sheet, cell, val); err != nil {
				return nil, fmt.Errorf("export: cell %s: %w", cell, err)
			}
			if w := float64(len(val)) + 2; w > widths[c] {
				widths[c] = w
			}
		}
	}

	for i, w := range widths {
		if opts.MaxColWidth > 0 && w > opts.MaxColWidth {
			w = opts.MaxColWidth
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, name, name, w); err != nil {
			return nil, fmt.Errorf("export: width %s: %w", name, err)
		}
	}

	if opts.FreezeHeader {
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return nil, fmt.Errorf("export: freeze header: %w", err)
		}
	}
	if opts.AutoFilter && len(rows) > 0 {
		lastCell, _ := excelize.CoordinatesToCellName(len(columns), len(rows)+1)
		if err := f.AutoFilter(sheet, "A1:"+lastCell, nil); err != nil {
			return nil, fmt.Errorf("export: auto filter: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: write: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName is the download name of a list export.
func FileName(list listing.List, orgs bool, at time.Time) string {
	kind := "people"
	if orgs {
		kind = "companies"
	}
	return fmt.Sprintf("%s_%s_%s.xlsx", list, kind, at.UTC().Format("20060102_150405"))
}

// ContentType is the MIME type of the workbooks written here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ListReader loads full list tables.
type ListReader interface {
	People(ctx context.Context, list listing.List) ([]listing.Person, error)
	Organizations(ctx context.Context, list listing.List) ([]listing.Organization, error)
}

// Document is a rendered export.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
	Rows        int
}

// Render loads one list table and writes it as a workbook.
func Render(ctx context.Context, lists ListReader, list listing.List, orgs bool, at time.Time) (*Document, error) {
	var (
		columns []string
		rows    [][]string
		sheet   = list.Title()
	)
	if orgs {
		entries, err := lists.Organizations(ctx, list)
		if err != nil {
			return nil, fmt.Errorf("export: load %s: %w", listing.OrgTable(list), err)
		}
		columns, rows, sheet = OrgColumns, OrgRows(entries), "Company "+sheet
	} else {
		entries, err := lists.People(ctx, list)
		if err != nil {
			return nil, fmt.Errorf("export: load %s: %w", listing.PersonTable(list), err)
		}
		columns, rows = PersonColumns, PersonRows(entries)
	}
	data, err := WriteWorkbook(DefaultOptions(sheet), columns, rows)
	if err != nil {
		return nil, err
	}
	return &Document{
		Name:        FileName(list, orgs, at),
		ContentType: ContentType,
		Data:        data,
		Rows:        len(rows),
	}, nil
}
