package main

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// palette colors status words when stdout is a terminal.
type palette struct {
	enabled bool
}

func newPalette(w io.Writer) palette {
	file, ok := w.(*os.File)
	if !ok {
		return palette{}
	}
	fd := file.Fd()
	return palette{enabled: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)}
}

func (p palette) good(s string) string { return p.paint(s, text.FgGreen) }
func (p palette) warn(s string) string { return p.paint(s, text.FgYellow) }
func (p palette) bad(s string) string  { return p.paint(s, text.FgRed) }

func (p palette) paint(s string, color text.Color) string {
	if !p.enabled {
		return s
	}
	return color.Sprint(s)
}
