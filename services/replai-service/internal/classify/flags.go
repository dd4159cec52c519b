package classify

import (
	"strings"

	"github.com/stoik/replai/internal/models"
)

var urgentIndicators = []string{
	"urgent", "asap", "as soon as possible", "immediately", "emergency", "critical",
	"right away", "time sensitive", "time-sensitive", "deadline",
}

var bulkHeaders = []string{"list-unsubscribe", "list-id"}

// IsUrgent reports whether subject or body carries an urgency indicator.
func IsUrgent(subject, body string) bool {
	return containsAny(strings.ToLower(subject+" "+body), urgentIndicators)
}

// IsBulk reports whether a message looks like bulk mail: mailing-list
// headers, a bulk Precedence, an automated sender or an unsubscribe link.
func IsBulk(from, body string, headers map[string]string) bool {
	for name, value := range headers {
		lname := strings.ToLower(name)
		for _, h := range bulkHeaders {
			if lname == h {
				return true
			}
		}
		if lname == "precedence" {
			switch strings.ToLower(strings.TrimSpace(value)) {
			case "bulk", "list", "junk":
				return true
			}
		}
	}
	local, _ := splitAddress(strings.ToLower(senderAddress(from)))
	if containsAny(local, automatedMarkers) {
		return true
	}
	return strings.Contains(strings.ToLower(body), "unsubscribe")
}

// Classification bundles every heuristic result for one message.
type Classification struct {
	Category  models.Category
	Sentiment models.Sentiment
	Urgent    bool
	Bulk      bool
}

// Classify runs every heuristic on extracted message content.
func Classify(c models.MessageContent) Classification {
	from := c.From.Email
	return Classification{
		Category:  Categorize(c.Subject, c.PlainBody, from),
		Sentiment: Sentiment(c.Subject + " " + c.PlainBody),
		Urgent:    IsUrgent(c.Subject, c.PlainBody),
		Bulk:      IsBulk(from, c.PlainBody, c.Headers),
	}
}
