package app

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"rankedin.shikanime.studio/internal/rankedin"
)

var (
	ok      = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	bad     = color.New(color.FgRed, color.Bold)
	heading = color.New(color.Bold)
)

var tableOrder = []string{"users", "repositories", "topics"}

// PrintDedupe writes how many duplicate rows were removed per table.
func PrintDedupe(w io.Writer, r rankedin.DedupeReport) {
	heading.Fprintln(w, "Dedupe")
	printCounts(w, r, "duplicates removed")
}

// PrintClamp writes how many rows had negative counts reset per table.
func PrintClamp(w io.Writer, r rankedin.ClampReport) {
	heading.Fprintln(w, "Clamp")
	printCounts(w, r, "rows clamped")
}

func printCounts[M ~map[string]int64](w io.Writer, counts M, what string) {
	var total int64
	for _, name := range tableOrder {
		n := counts[name]
		total += n
		c := ok
		if n > 0 {
			c = warn
		}
		c.Fprintf(w, "  %-13s %d %s\n", name, n, what)
	}
	if total == 0 {
		ok.Fprintln(w, "Nothing to do")
	}
}

// PrintValidation writes a per-table health summary and returns whether
// every table is healthy.
func PrintValidation(w io.Writer, r *rankedin.ValidationReport) bool {
	heading.Fprintln(w, "Validation")
	for _, name := range r.TableNames() {
		t := r.Tables[name]
		if t.Healthy() {
			ok.Fprintf(w, "  %-13s %d rows, healthy\n", name, t.Total)
			continue
		}
		bad.Fprintf(w, "  %-13s %d rows\n", name, t.Total)
		for _, d := range t.Duplicates {
			warn.Fprintf(w, "    duplicate %q x%d\n", d.Identity, d.Count)
		}
		if t.Negative > 0 {
			warn.Fprintf(w, "    %d rows with negative counts\n", t.Negative)
		}
		if t.Incomplete > 0 {
			warn.Fprintf(w, "    %d rows missing required fields\n", t.Incomplete)
		}
	}
	fmt.Fprintf(w, "Total repository stars: %s\n", rankedin.Humanize(r.TotalStars))
	if r.Healthy() {
		ok.Fprintln(w, "All tables healthy")
		return true
	}
	bad.Fprintln(w, "Issues found, run `rankedin maintenance dedupe` and `rankedin maintenance clamp`")
	return false
}
