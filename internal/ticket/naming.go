package ticket

import (
	"strconv"
	"strings"

	"github.com/craftdesk/craftdesk/internal/models"
)

// expandName fills a channel name template. Unknown placeholders are
// left as-is so a typo in config is visible instead of silently empty.
func expandName(template string, t models.TicketType, service string, serial int, username string) string {
	if service == "" {
		service = t.String()
	}
	r := strings.NewReplacer(
		"{type}", t.String(),
		"{service}", sanitizeName(service),
		"{serial}", strconv.Itoa(serial),
		"{username}", sanitizeName(username),
	)
	return r.Replace(template)
}

// sanitizeName lowercases and strips characters chat platforms reject
// in channel names.
func sanitizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	out = strings.Trim(out, "-")
	if out == "" {
		return "ticket"
	}
	return out
}

// archivedName is the rename applied when a ticket is categorized into
// the archive. The previous name is preserved on the row for restore.
func archivedName(name string) string {
	const prefix = "closed-"
	if strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + name
}

func channelTopic(t models.TicketType) string {
	switch t {
	case models.TicketCommission:
		return "Commission ticket. Answer the questions to receive quotes from our freelancers."
	case models.TicketApplication:
		return "Application ticket. Answer the questions to apply for a position."
	case models.TicketSupport:
		return "Support ticket. Describe your issue and a manager will assist you."
	default:
		return ""
	}
}
