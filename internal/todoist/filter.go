package todoist

import "strings"

// Filter is an immutable boolean expression over Todoist filter syntax.
//
// Leaves are built from raw query tokens (Query), label names (LabelFilter) or the
// fixed "assigned to me or nobody" clause (AssignedSelf). And, Or and Not
// return new Filters; operands are never modified. Every composite operand is
// parenthesised, so String always yields text Todoist parses the way the tree
// reads, whatever the operator precedence.
//
//	f := And(Or(Query("overdue"), Query("today")), Not(LabelFilter("exclude")))
//	f.String() // "((overdue | today) & !(@exclude))"
type Filter struct {
	expr string
}

// selfAssigned matches tasks assigned to the caller or to nobody.
const selfAssigned = "!(assigned to: others & assigned)"

// Query wraps a raw Todoist filter token such as "today" or "p1".
// A token that contains an operator is parenthesised so it composes safely.
func Query(token string) Filter {
	token = strings.TrimSpace(token)
	if strings.ContainsAny(token, "&|!,") {
		return Filter{expr: "(" + token + ")"}
	}
	return Filter{expr: token}
}

// LabelFilter matches tasks carrying the named label.
func LabelFilter(name string) Filter {
	return Filter{expr: "@" + strings.TrimPrefix(strings.TrimSpace(name), "@")}
}

// AssignedSelf matches tasks the token owner is responsible for.
func AssignedSelf() Filter {
	return Filter{expr: selfAssigned}
}

// And matches tasks matching both a and b.
func And(a, b Filter) Filter {
	return Filter{expr: "(" + a.expr + " & " + b.expr + ")"}
}

// Or matches tasks matching either a or b.
func Or(a, b Filter) Filter {
	return Filter{expr: "(" + a.expr + " | " + b.expr + ")"}
}

// Not matches tasks not matching f.
func Not(f Filter) Filter {
	return Filter{expr: "!(" + f.expr + ")"}
}

// String renders the filter as Todoist query text.
func (f Filter) String() string {
	return f.expr
}

// IsZero reports whether f was never built.
func (f Filter) IsZero() bool {
	return f.expr == ""
}

// DailyFilter selects the tasks the readout shames: owned by the caller, due
// today or earlier, and not explicitly excluded.
func DailyFilter() Filter {
	return And(
		And(AssignedSelf(), Or(Query("overdue"), Query("today"))),
		Not(LabelFilter(ExcludeLabel)),
	)
}
