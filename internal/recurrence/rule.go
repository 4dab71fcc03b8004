package recurrence

import (
	"fmt"
	"strings"

	"github.com/teambition/rrule-go"
)

// ValidateRule checks that rule is a well-formed RRULE value. The engine
// treats the rule as an opaque string everywhere else (expansion is an
// external concern); validation happens once, before a write is attempted,
// so a malformed rule is surfaced as a correctable input error instead of a
// rejected write. An empty rule is valid: the event simply does not recur.
func ValidateRule(rule string) error {
	if rule == "" {
		return nil
	}

	// Accept both the bare value and the prefixed property form.
	value := strings.TrimPrefix(rule, "RRULE:")
	if _, err := rrule.StrToRRule(value); err != nil {
		return fmt.Errorf("invalid recurrence rule %q: %w", rule, err)
	}
	return nil
}
