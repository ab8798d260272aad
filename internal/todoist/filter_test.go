package todoist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterString(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"raw token", Query("today"), "today"},
		{"token with operator is parenthesised", Query("today | overdue"), "(today | overdue)"},
		{"label", LabelFilter("shame"), "@shame"},
		{"label already prefixed", LabelFilter("@shame"), "@shame"},
		{"self assigned", AssignedSelf(), "!(assigned to: others & assigned)"},
		{"and", And(Query("today"), LabelFilter("work")), "(today & @work)"},
		{"or", Or(Query("overdue"), Query("today")), "(overdue | today)"},
		{"not", Not(LabelFilter("exclude")), "!(@exclude)"},
		{"double negation", Not(Not(Query("today"))), "!(!(today))"},
		{
			"daily",
			DailyFilter(),
			"((!(assigned to: others & assigned) & (overdue | today)) & !(@exclude))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.String())
			assert.Equal(t, tt.filter.String(), tt.filter.String(), "String must be idempotent")
		})
	}
}

func TestFilterOperandsNotMutated(t *testing.T) {
	a := Query("today")
	b := LabelFilter("work")

	_ = And(a, b)
	_ = Or(a, b)
	_ = Not(a)

	assert.Equal(t, "today", a.String())
	assert.Equal(t, "@work", b.String())
}

func TestFilterParenthesesBalanced(t *testing.T) {
	leaves := []Filter{Query("today"), LabelFilter("x"), AssignedSelf(), Query("p1 & p2")}
	f := leaves[0]
	for i := 0; i < 20; i++ {
		leaf := leaves[i%len(leaves)]
		switch i % 3 {
		case 0:
			f = And(f, leaf)
		case 1:
			f = Or(leaf, f)
		default:
			f = Not(f)
		}
		s := f.String()
		assert.Equal(t, strings.Count(s, "("), strings.Count(s, ")"), "unbalanced: %s", s)
		assert.NotContains(t, s, "()")
	}
}

func TestFilterIsZero(t *testing.T) {
	var f Filter
	assert.True(t, f.IsZero())
	assert.False(t, Query("today").IsZero())
}
