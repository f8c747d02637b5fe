package crud

import (
	"net/url"
	"strconv"
	"strings"
)

// Pagination defaults applied when the caller omits or mangles the values.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Reserved parameter keys recognized by reads. Every other key is treated as
// a query-derived equality filter term.
const (
	ParamPage   = "page"
	ParamLimit  = "limit"
	ParamSort   = "sort"
	ParamFields = "fields"
)

// Params is the generic string-keyed query bag supplied to reads. Absent or
// invalid entries fall back to defined defaults instead of erroring, so a
// nil Params is always safe to use.
type Params map[string]string

// ParamsFromValues flattens URL query values into Params, keeping the first
// value of each key.
func ParamsFromValues(values url.Values) Params {
	if len(values) == 0 {
		return Params{}
	}
	params := make(Params, len(values))
	for key := range values {
		params[key] = values.Get(key)
	}
	return params
}

// Page returns the requested page number. Absent, non-numeric, zero and
// negative values normalize to DefaultPage.
func (p Params) Page() int {
	page, err := strconv.Atoi(strings.TrimSpace(p[ParamPage]))
	if err != nil || page <= 0 {
		return DefaultPage
	}
	return page
}

// Limit returns the requested page size. Absent, non-numeric, zero and
// negative values normalize to DefaultLimit.
func (p Params) Limit() int {
	limit, err := strconv.Atoi(strings.TrimSpace(p[ParamLimit]))
	if err != nil || limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// Skip returns the number of documents to skip for the requested window.
func (p Params) Skip() int {
	return (p.Page() - 1) * p.Limit()
}

// SortField is one step of a sort directive.
type SortField struct {
	Field      string
	Descending bool
}

// Sort parses the sort directive. Fields are comma separated, a leading "-"
// selects descending order (for example "-created_at,name").
func (p Params) Sort() []SortField {
	raw := strings.TrimSpace(p[ParamSort])
	if raw == "" {
		return nil
	}
	var sorts []SortField
	for _, part := range strings.Split(raw, ",") {
		field := strings.TrimSpace(part)
		if field == "" {
			continue
		}
		descending := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if field == "" {
			continue
		}
		sorts = append(sorts, SortField{Field: field, Descending: descending})
	}
	return sorts
}

// Fields parses the comma separated field-selection directive.
func (p Params) Fields() []string {
	raw := strings.TrimSpace(p[ParamFields])
	if raw == "" {
		return nil
	}
	var fields []string
	for _, part := range strings.Split(raw, ",") {
		field := strings.TrimSpace(part)
		if field == "" {
			continue
		}
		fields = append(fields, field)
	}
	return fields
}

// FilterTerms returns the non-reserved entries as equality filter terms.
// Reads merge them with the caller's explicit filter, the explicit filter
// winning on key collision.
func (p Params) FilterTerms() map[string]interface{} {
	if len(p) == 0 {
		return nil
	}
	terms := make(map[string]interface{})
	for key, value := range p {
		switch key {
		case ParamPage, ParamLimit, ParamSort, ParamFields:
			continue
		}
		terms[key] = value
	}
	if len(terms) == 0 {
		return nil
	}
	return terms
}
