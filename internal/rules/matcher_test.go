// File: internal/rules/matcher_test.go
package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auspex-monitoring/auspex/internal/models"
)

func statusChangeRule(id int64, enabled bool) *models.AlertRule {
	return &models.AlertRule{
		ID:       id,
		TargetID: 1,
		Name:     "availability",
		RuleType: models.RuleTypeStatusChange,
		Severity: models.SeverityCritical,
		Enabled:  enabled,
	}
}

func TestMatchStatusChange(t *testing.T) {
	matcher := NewMatcher()
	candidates := []*models.AlertRule{statusChangeRule(1, true)}

	tests := []struct {
		name     string
		previous models.Status
		new      models.Status
		want     int
	}{
		{"up to down fires", models.StatusUp, models.StatusDown, 1},
		{"down to up fires", models.StatusDown, models.StatusUp, 1},
		{"unknown to down fires", models.StatusUnknown, models.StatusDown, 1},
		{"unknown to up fires", models.StatusUnknown, models.StatusUp, 1},
		{"steady up does not fire", models.StatusUp, models.StatusUp, 0},
		{"steady down does not fire", models.StatusDown, models.StatusDown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched := matcher.Match(candidates, tt.previous, tt.new)
			assert.Len(t, matched, tt.want)
		})
	}
}

func TestMatchSkipsDisabledRules(t *testing.T) {
	matcher := NewMatcher()
	candidates := []*models.AlertRule{
		statusChangeRule(1, false),
		statusChangeRule(2, true),
	}

	matched := matcher.Match(candidates, models.StatusUp, models.StatusDown)
	require.Len(t, matched, 1)
	assert.Equal(t, int64(2), matched[0].ID)
}

func TestMatchIgnoresUnknownRuleTypes(t *testing.T) {
	matcher := NewMatcher()
	candidates := []*models.AlertRule{
		{ID: 1, TargetID: 1, RuleType: "latency_threshold", Enabled: true},
		statusChangeRule(2, true),
	}

	matched := matcher.Match(candidates, models.StatusUp, models.StatusDown)
	require.Len(t, matched, 1)
	assert.Equal(t, int64(2), matched[0].ID)
}

func TestMatchOrderedByRuleID(t *testing.T) {
	matcher := NewMatcher()
	candidates := []*models.AlertRule{
		statusChangeRule(5, true),
		statusChangeRule(2, true),
		statusChangeRule(9, true),
	}

	matched := matcher.Match(candidates, models.StatusUp, models.StatusDown)
	require.Len(t, matched, 3)
	assert.Equal(t, int64(2), matched[0].ID)
	assert.Equal(t, int64(5), matched[1].ID)
	assert.Equal(t, int64(9), matched[2].ID)
}
