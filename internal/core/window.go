package core

import "sort"

// TimeRange is an inclusive pair of period labels. The zero value means no
// time restriction.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// IsZero reports whether the range is unset.
func (r TimeRange) IsZero() bool {
	return r.Start == "" && r.End == ""
}

// YearGranular reports whether the range endpoints are year labels.
func (r TimeRange) YearGranular() bool {
	return IsYear(r.Start) && IsYear(r.End)
}

// IsYear reports whether label looks like YYYY.
func IsYear(label string) bool {
	if len(label) != 4 {
		return false
	}
	return digits(label)
}

// IsYearMonth reports whether label looks like YYYY-MM.
func IsYearMonth(label string) bool {
	if len(label) != 7 || label[4] != '-' {
		return false
	}
	return digits(label[:4]) && digits(label[5:])
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// TruncateToYear returns the leading four characters of a period label.
func TruncateToYear(label string) string {
	if len(label) < 4 {
		return label
	}
	return label[:4]
}

// Years returns the distinct years of the given period labels in ascending order.
func Years(periods []string) []string {
	seen := make(map[string]struct{}, len(periods))
	out := make([]string, 0)
	for _, p := range periods {
		y := TruncateToYear(p)
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		out = append(out, y)
	}
	sort.Strings(out)
	return out
}

// SelectRange returns the inclusive slice of sortedPeriods between start and end.
// sortedPeriods must be deduplicated and ascending. Both endpoints must be members
// of the domain, otherwise a *DomainError is returned. Inverted endpoints select
// nothing. A single-period domain always selects its only period.
func SelectRange(sortedPeriods []string, start, end string) ([]string, error) {
	switch len(sortedPeriods) {
	case 0:
		return []string{}, nil
	case 1:
		return []string{sortedPeriods[0]}, nil
	}

	lo, ok := indexOf(sortedPeriods, start)
	if !ok {
		return nil, &DomainError{Endpoint: start}
	}
	hi, ok := indexOf(sortedPeriods, end)
	if !ok {
		return nil, &DomainError{Endpoint: end}
	}
	if lo > hi {
		return []string{}, nil
	}

	out := make([]string, hi-lo+1)
	copy(out, sortedPeriods[lo:hi+1])
	return out, nil
}

func indexOf(sorted []string, v string) (int, bool) {
	i := sort.SearchStrings(sorted, v)
	if i < len(sorted) && sorted[i] == v {
		return i, true
	}
	return -1, false
}
