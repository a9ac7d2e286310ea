// File: internal/rules/matcher.go
package rules

import (
	"sort"

	"github.com/auspex-monitoring/auspex/internal/models"
)

// Matcher selects the alert rules that apply to a status transition. Pure
// function of the rule snapshot; no storage access.
type Matcher struct{}

// NewMatcher creates a rule matcher
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match returns the enabled rules triggered by the transition from
// previousStatus to newStatus, ordered by rule id for deterministic
// downstream processing. Unknown rule types never match and never error.
func (m *Matcher) Match(candidates []*models.AlertRule, previousStatus, newStatus models.Status) []*models.AlertRule {
	var matched []*models.AlertRule
	for _, rule := range candidates {
		if !rule.Enabled {
			continue
		}
		switch rule.RuleType {
		case models.RuleTypeStatusChange:
			if previousStatus != newStatus {
				matched = append(matched, rule)
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID < matched[j].ID
	})
	return matched
}
