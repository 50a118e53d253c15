package registry

import (
	"strings"

	"github.com/spec-kit/support-desk/internal/domain"
)

// FilterAll is the wildcard value matching every ticket for a dimension.
const FilterAll = "all"

// Filter is the conjunctive ticket predicate: every non-wildcard dimension
// must match. Status and priority match case-insensitively; user id is exact.
type Filter struct {
	Status   string
	Priority string
	UserID   string
}

// Matches reports whether the ticket satisfies the filter.
func (f Filter) Matches(t domain.Ticket) bool {
	if !wildcard(f.Status) && !strings.EqualFold(f.Status, string(t.Status)) {
		return false
	}
	if !wildcard(f.Priority) && !strings.EqualFold(f.Priority, string(t.Priority)) {
		return false
	}
	if !wildcard(f.UserID) && f.UserID != t.UserID {
		return false
	}
	return true
}

func wildcard(value string) bool {
	return value == "" || strings.EqualFold(value, FilterAll)
}
