package batch

import (
	"fmt"
	"strings"

	"github.com/formwatch/dispatchkit/pkg/notification"
)

// severityOrder lists severities from most to least urgent for the
// breakdown summary.
var severityOrder = []notification.Severity{
	notification.SeverityCritical,
	notification.SeverityHigh,
	notification.SeverityMedium,
	notification.SeverityLow,
}

// Consolidate builds the single request delivered in place of a flushed
// batch. The subject summarizes count and severity breakdown; the body
// lists each notification with its related change id.
func Consolidate(b *Batch) notification.Request {
	if b.Size() == 1 {
		return b.Notifications[0]
	}

	counts := make(map[notification.Severity]int, 4)
	for _, req := range b.Notifications {
		counts[req.Severity]++
	}

	var breakdown []string
	maxSeverity := notification.SeverityLow
	for _, sev := range severityOrder {
		if n := counts[sev]; n > 0 {
			breakdown = append(breakdown, fmt.Sprintf("%d %s", n, sev))
			if sev.Weight() > maxSeverity.Weight() {
				maxSeverity = sev
			}
		}
	}

	subject := fmt.Sprintf("%d form change notifications (%s)", b.Size(), strings.Join(breakdown, ", "))

	var body strings.Builder
	fmt.Fprintf(&body, "The following form changes were detected:\n\n")
	for i, req := range b.Notifications {
		fmt.Fprintf(&body, "%d. [%s] %s", i+1, req.Severity, req.Subject)
		if req.RelatedChangeID != "" {
			fmt.Fprintf(&body, " (change %s)", req.RelatedChangeID)
		}
		body.WriteString("\n")
	}

	first := b.Notifications[0]
	return notification.Request{
		UserID:    b.UserID,
		Recipient: first.Recipient,
		Channel:   b.Channel,
		Severity:  maxSeverity,
		Subject:   subject,
		Body:      body.String(),
		CreatedAt: b.CreatedAt,
	}
}
