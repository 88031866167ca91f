package normalize

import (
	"regexp"
	"strings"

	"github.com/sells-group/cdr-insight/internal/model"
	"github.com/sells-group/cdr-insight/internal/tabular"
)

var nonDigitRE = regexp.MustCompile(`\D`)

// CleanPhone reduces a raw party value to its digits. Short values (service
// codes like 121 or 198) are kept with a warning rather than dropped, since
// they are legitimate contact endpoints in CDR data.
func CleanPhone(raw string) (cleaned string, warnings []string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	// Defense in depth: the parser coerces hinted columns, but a party column
	// with an unconventional header can still arrive in scientific notation.
	if fixed, changed := tabular.CoercePhoneCell(raw); changed {
		raw = fixed
		warnings = append(warnings, model.WarnScientificNotation)
	}

	digits := nonDigitRE.ReplaceAllString(raw, "")
	if digits == "" {
		return "", warnings
	}
	if len(digits) < 7 {
		warnings = append(warnings, model.WarnShortPhoneCode)
	}
	return digits, warnings
}
