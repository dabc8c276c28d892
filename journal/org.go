package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatOrderOrg renders an OrderRecord as an Org-mode entry with the
// structured fields in a PROPERTIES drawer.
func FormatOrderOrg(r OrderRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** %s %s %s %.3f (%s)\n", strings.ToUpper(r.Status), r.Action, r.Symbol, r.Volume, shortID(r.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", r.ID)
	fmt.Fprintf(&b, ":TIME: %s\n", r.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":SYMBOL: %s\n", r.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", r.Side)
	fmt.Fprintf(&b, ":VOLUME: %.3f\n", r.Volume)
	fmt.Fprintf(&b, ":PRICE: %.5f\n", r.Price)
	fmt.Fprintf(&b, ":STOP_LOSS: %.5f\n", r.StopLoss)
	fmt.Fprintf(&b, ":STOP_POINTS: %d\n", r.StopPoints)
	fmt.Fprintf(&b, ":TICKET: %d\n", r.Ticket)
	fmt.Fprintf(&b, ":RETCODE: %d\n", r.Retcode)
	fmt.Fprintf(&b, ":MAGIC: %d\n", r.Magic)
	fmt.Fprintf(&b, ":COMMENT: %s\n", r.Comment)
	b.WriteString(":END:\n")
	if r.Reason != "" {
		fmt.Fprintf(&b, "%s\n", r.Reason)
	}
	return b.String()
}

// FormatOrdersOrg renders records separated by blank lines.
func FormatOrdersOrg(recs []OrderRecord) string {
	parts := make([]string, 0, len(recs))
	for _, r := range recs {
		parts = append(parts, FormatOrderOrg(r))
	}
	return strings.Join(parts, "\n")
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
