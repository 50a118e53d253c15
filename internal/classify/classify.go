// Package classify maps free-text chat turns to ticket categories.
package classify

import (
	"strings"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Intent is the classification result for one message.
type Intent struct {
	Category domain.TicketCategory
	Response string
}

// Keyword sets are evaluated in priority order; the first matching category
// wins. A message containing both "payment" and "error" is billing — the
// ordering is the tie-break policy, not an accident.
var rules = []struct {
	category domain.TicketCategory
	keywords []string
	response string
}{
	{
		category: domain.CategoryBilling,
		keywords: []string{"billing", "payment", "invoice"},
		response: "💳 Billing issue detected. Creating a ticket...",
	},
	{
		category: domain.CategoryTechnical,
		keywords: []string{"not working", "error", "bug", "issue", "crash", "fail", "problem"},
		response: "🛠️ Technical issue detected. Creating a ticket...",
	},
	{
		category: domain.CategoryPassword,
		keywords: []string{"password", "reset"},
		response: "🔐 Password issue detected. Creating a ticket...",
	},
}

const generalResponse = "Thank you! Our support team will reply shortly."

// Classify performs case-insensitive substring matching against the fixed
// keyword sets. No scoring, no combination: falls through to the
// general-inquiry category when nothing matches.
func Classify(text string) Intent {
	lowered := strings.ToLower(text)
	for _, rule := range rules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return Intent{Category: rule.category, Response: rule.response}
			}
		}
	}
	return Intent{Category: domain.CategoryGeneral, Response: generalResponse}
}
