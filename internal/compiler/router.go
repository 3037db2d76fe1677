package compiler

import (
	"strings"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

// buildRouter compiles an ordered conditions list into a routing function.
//
// Conditions are evaluated in declared order, first match wins; the reserved
// "default" key is never matched positionally; it is always the fallback.
// A condition matches when its key holds a truthy metadata value, or when
// the key appears (case-insensitively) as a substring of the last output.
// The metadata check runs before the substring check for each condition.
//
// The substring rule is known to be fragile (a key that happens to occur in
// unrelated model prose will route), but editors rely on the observable
// behavior, so it stays.
func buildRouter(conditions []domain.Condition, resolve func(string) string) RouteFunc {
	return func(state *domain.ExecutionState) string {
		output := strings.ToLower(state.CurrentOutput)

		for _, c := range conditions {
			if c.Key == domain.DefaultConditionKey || c.Key == "" {
				continue
			}
			if v, ok := state.Metadata[c.Key]; ok && domain.Truthy(v) {
				return resolve(c.Target)
			}
			if strings.Contains(output, strings.ToLower(c.Key)) {
				return resolve(c.Target)
			}
		}

		for _, c := range conditions {
			if c.Key == domain.DefaultConditionKey {
				return resolve(c.Target)
			}
		}

		// No match and no default: a silent dead end, not a failure.
		return Terminal
	}
}
