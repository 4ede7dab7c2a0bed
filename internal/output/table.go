package output

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// OutputTable prints a tab-aligned table to stderr (human mode). Empty cell
// values render as "-" so columns stay readable for sparse rows.
func OutputTable(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(os.Stderr, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if cell == "" {
				cell = "-"
			}
			cells[i] = cell
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
}

// OutputList prints items one per line to stderr with an optional prefix,
// for flat listings like swept action IDs.
func OutputList(prefix string, items []string) {
	for _, item := range items {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s%s\n", prefix, item)
			continue
		}
		fmt.Fprintln(os.Stderr, item)
	}
}
