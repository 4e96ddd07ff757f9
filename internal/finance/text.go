package finance

import (
	"fmt"
	"io"
	"strings"
)

const dateFormat = "2006-01-02"

// RenderText writes the statement in a plain fixed layout suitable for
// email or a terminal.
func RenderText(out io.Writer, st Statement) {
	fmt.Fprintf(out, "%s\n", st.Company)
	fmt.Fprintf(out, "Rental Statement %s through %s\n", st.From.Format(dateFormat), st.To.Format(dateFormat))
	fmt.Fprintln(out, strings.Repeat("=", 60))

	if len(st.Wells) == 0 {
		fmt.Fprintln(out, "No rental charges in this period.")
		return
	}

	for _, sec := range st.Wells {
		if sec.Lease != "" {
			fmt.Fprintf(out, "\n%s (%s)\n", sec.WellName, sec.Lease)
		} else {
			fmt.Fprintf(out, "\n%s\n", sec.WellName)
		}
		category := ""
		for _, l := range sec.Lines {
			if l.Category != category {
				category = l.Category
				fmt.Fprintf(out, "  %s\n", category)
			}
			fmt.Fprintf(out, "    %-28s %-14s %3d d x %10s = %12s\n",
				l.EquipmentName, l.Serial, l.Days, FormatCents(l.RateCents), FormatCents(l.AmountCents))
		}
		fmt.Fprintf(out, "  %-50s %12s\n", "Well subtotal", FormatCents(sec.SubtotalCents))
	}

	fmt.Fprintln(out, strings.Repeat("-", 60))
	fmt.Fprintf(out, "%-52s %12s\n", "Company total", FormatCents(st.TotalCents))
}

// FormatCents renders cents as a dollar amount, e.g. 123456 -> "$1,234.56".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	dollars := cents / 100
	rem := cents % 100
	return fmt.Sprintf("%s$%s.%02d", sign, groupThousands(dollars), rem)
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
