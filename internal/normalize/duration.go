package normalize

import (
	"strconv"
	"strings"
)

// ParseDuration resolves a duration in seconds from the primary duration cell
// (HH:MM:SS, MM:SS, or a plain number), falling back to separate minutes and
// seconds cells when the primary value is zero or absent. fromParts reports
// that the fallback supplied the value.
func ParseDuration(primary, minutes, seconds string) (secs int, fromParts bool) {
	secs = parsePrimaryDuration(primary)
	if secs != 0 {
		return secs, false
	}

	var parts int
	var used bool
	if m, err := strconv.ParseFloat(strings.TrimSpace(minutes), 64); err == nil {
		parts += int(m) * 60
		used = true
	}
	if s, err := strconv.ParseFloat(strings.TrimSpace(seconds), 64); err == nil {
		parts += int(s)
		used = true
	}
	if used && parts != 0 {
		return parts, true
	}
	return secs, false
}

func parsePrimaryDuration(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if strings.Contains(s, ":") {
		fields := strings.Split(s, ":")
		nums := make([]int, 0, len(fields))
		for _, f := range fields {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return 0
			}
			nums = append(nums, n)
		}
		switch len(nums) {
		case 3: // HH:MM:SS
			return nums[0]*3600 + nums[1]*60 + nums[2]
		case 2: // MM:SS
			return nums[0]*60 + nums[1]
		default:
			return 0
		}
	}

	// Plain number; negatives pass through so the validator can reject them.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
