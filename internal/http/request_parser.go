package http

import (
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"pmpm/internal/core"
)

const (
	maxFilterValueLength = 200
	maxFilters           = 16
)

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// RangeQuery is the time window of a dashboard request.
type RangeQuery struct {
	From string `validate:"omitempty,period"`
	To   string `validate:"omitempty,period"`
}

// TimeRange converts the query into a core range.
func (q RangeQuery) TimeRange() core.TimeRange {
	return core.TimeRange{Start: q.From, End: q.To}
}

// reservedParams are query parameters that are never filters.
var reservedParams = map[string]bool{
	"from":    true,
	"to":      true,
	"dataset": true,
}

// RequestParser validates query strings.
type RequestParser struct {
	validate *validator.Validate
}

// NewRequestParser registers the period and identifier tags.
func NewRequestParser() *RequestParser {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return core.IsYear(s) || core.IsYearMonth(s)
	})
	v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	return &RequestParser{validate: v}
}

// ParseRange reads and validates from/to.
func (p *RequestParser) ParseRange(r *http.Request) (core.TimeRange, error) {
	q := r.URL.Query()
	rq := RangeQuery{
		From: strings.TrimSpace(q.Get("from")),
		To:   strings.TrimSpace(q.Get("to")),
	}
	if err := p.validate.Struct(rq); err != nil {
		return core.TimeRange{}, validationFailed(fieldErrors(err))
	}
	if (rq.From == "") != (rq.To == "") {
		return core.TimeRange{}, validationFailed([]ValidationError{{Field: "range", Message: "from and to must be given together"}})
	}
	return rq.TimeRange(), nil
}

// ParseFilters collects every non-reserved query parameter as a dimension
// filter. Each filter takes exactly one value.
func (p *RequestParser) ParseFilters(r *http.Request) (map[string]string, error) {
	return p.parseFilters(r.URL.Query())
}

func (p *RequestParser) parseFilters(q url.Values) (map[string]string, error) {
	keys := make([]string, 0, len(q))
	for k := range q {
		if !reservedParams[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var problems []ValidationError
	if len(keys) > maxFilters {
		problems = append(problems, ValidationError{Field: "filters", Message: "too many filters"})
	}

	filters := make(map[string]string, len(keys))
	for _, k := range keys {
		if err := p.validate.Var(k, "identifier"); err != nil {
			problems = append(problems, ValidationError{Field: k, Message: "filter name must be a lowercase identifier"})
			continue
		}
		values := q[k]
		if len(values) != 1 {
			problems = append(problems, ValidationError{Field: k, Message: "filter takes a single value"})
			continue
		}
		v := strings.TrimSpace(values[0])
		if len(v) > maxFilterValueLength {
			problems = append(problems, ValidationError{Field: k, Message: "filter value too long"})
			continue
		}
		filters[k] = v
	}

	if len(problems) > 0 {
		return nil, validationFailed(problems)
	}
	return filters, nil
}

// ParseDataset validates the optional dataset parameter of invalidation.
func (p *RequestParser) ParseDataset(r *http.Request) (string, error) {
	name := strings.TrimSpace(r.URL.Query().Get("dataset"))
	if err := p.validate.Var(name, "omitempty,identifier,max=128"); err != nil {
		return "", validationFailed([]ValidationError{{Field: "dataset", Message: "dataset must be an extract name"}})
	}
	return name, nil
}

func fieldErrors(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Field: "query", Message: err.Error()}}
	}
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		msg := "invalid value"
		if fe.Tag() == "period" {
			msg = "must be YYYY or YYYY-MM"
		}
		out = append(out, ValidationError{Field: field, Message: msg})
	}
	return out
}
