package bot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Starlight90415/O-quvbot/internal/report/domain"
)

// MaxMessageLength is the Telegram limit on the text of one message, in characters.
const MaxMessageLength = 4096

// FormatReport renders the report and splits it into messages of at most limit characters.
// Entries are never split across messages unless one entry alone exceeds limit. An empty
// report yields nil.
func FormatReport(rows []domain.StudentSummary, limit int) []string {
	if len(rows) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = MaxMessageLength
	}

	var (
		out     []string
		cur     strings.Builder
		curLen  int
		started bool
	)
	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
		}
		cur.Reset()
		curLen = 0
	}
	add := func(s string) {
		n := utf8.RuneCountInString(s)
		if curLen > 0 && curLen+n > limit {
			flush()
		}
		if n > limit {
			out = append(out, splitRunes(s, limit)...)
			return
		}
		cur.WriteString(s)
		curLen += n
	}

	for i := range rows {
		entry := formatEntry(&rows[i])
		if !started {
			entry = reportHeader + entry
			started = true
		}
		add(entry)
	}
	flush()
	return out
}

func formatEntry(s *domain.StudentSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID: %s\n", s.ID)
	fmt.Fprintf(&b, "Ism: %s\n", s.Name)
	fmt.Fprintf(&b, "Fan: %s\n", s.Subject)
	fmt.Fprintf(&b, "Davomatlar soni: %d\n", s.AttendanceCount)
	fmt.Fprintf(&b, "So'ngi to'lov: %s so'm\n", s.LastPayment)
	fmt.Fprintf(&b, "To'lov sanasi: %s\n", s.PaymentDate)
	b.WriteString(reportSeparator)
	return b.String()
}

func splitRunes(s string, limit int) []string {
	var out []string
	runes := []rune(s)
	for len(runes) > limit {
		out = append(out, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
