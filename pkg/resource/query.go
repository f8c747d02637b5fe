package resource

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crudkit/crudkit/pkg/apperror"
	"github.com/crudkit/crudkit/pkg/crud"
	"github.com/crudkit/crudkit/pkg/server/router"
)

// restQuery is the decoded query surface shared by the read endpoints.
// populate, filter and models are transport conventions owned by this
// package; everything else stays in the generic params bag.
type restQuery struct {
	params   crud.Params
	populate []crud.Populate
	filter   crud.Filter
	models   []string
}

func readQuery(c router.Context) (restQuery, error) {
	values := c.Request().URL.Query()

	populate, err := parsePopulate(values["populate"])
	if err != nil {
		return restQuery{}, err
	}
	filter, err := parseFilter(values.Get("filter"))
	if err != nil {
		return restQuery{}, err
	}
	models := parseModels(values.Get("models"))

	delete(values, "populate")
	delete(values, "filter")
	delete(values, "models")

	return restQuery{
		params:   crud.ParamsFromValues(values),
		populate: populate,
		filter:   filter,
		models:   models,
	}, nil
}

// parsePopulate decodes the populate query convention. Each value names one
// relation chain: "author" resolves a relation, "author:name,email" selects
// fields on it, and "author.company" nests a second hop with the selection
// applying to the innermost segment. Repeat the parameter to populate
// several relations.
func parsePopulate(raw []string) ([]crud.Populate, error) {
	var specs []crud.Populate
	for _, value := range raw {
		token := strings.TrimSpace(value)
		if token == "" {
			continue
		}

		path := token
		var selected []string
		if head, tail, found := strings.Cut(token, ":"); found {
			path = strings.TrimSpace(head)
			for _, field := range strings.Split(tail, ",") {
				if field = strings.TrimSpace(field); field != "" {
					selected = append(selected, field)
				}
			}
		}

		spec, err := populateChain(path, selected)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func populateChain(path string, selected []string) (crud.Populate, error) {
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			return crud.Populate{}, errValidation("populate path %q is malformed", path)
		}
	}

	spec := crud.Populate{Path: strings.TrimSpace(segments[len(segments)-1]), Select: selected}
	for i := len(segments) - 2; i >= 0; i-- {
		nested := spec
		spec = crud.Populate{Path: strings.TrimSpace(segments[i]), Populate: &nested}
	}
	return spec, nil
}

// parseFilter decodes the filter parameter, a URL-encoded JSON object
// passed through to the store as-is.
func parseFilter(raw string) (crud.Filter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var filter crud.Filter
	if err := json.Unmarshal([]byte(raw), &filter); err != nil {
		return nil, errValidation("filter must be a JSON object")
	}
	return filter, nil
}

func parseModels(raw string) []string {
	var models []string
	for _, model := range strings.Split(raw, ",") {
		if model = strings.TrimSpace(model); model != "" {
			models = append(models, model)
		}
	}
	return models
}

// duplicateCheck derives the duplicate-check filter for a payload from the
// descriptor's unique keys. A key contributes only when the payload carries
// all of its fields; several complete keys combine under $or. Payloads
// without unique-key fields get no check and skip the existence probe.
func duplicateCheck(desc crud.Descriptor, payload crud.Document) crud.Filter {
	var candidates []crud.Filter
	for _, key := range desc.UniqueKeys {
		candidate := crud.Filter{}
		complete := len(key.Fields) > 0
		for _, field := range key.Fields {
			value, ok := payload[field]
			if !ok {
				complete = false
				break
			}
			candidate[field] = value
		}
		if complete {
			candidates = append(candidates, candidate)
		}
	}

	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return candidates[0]
	default:
		parts := make([]interface{}, 0, len(candidates))
		for _, candidate := range candidates {
			parts = append(parts, map[string]interface{}(candidate))
		}
		return crud.Filter{"$or": parts}
	}
}

func errValidation(format string, args ...interface{}) error {
	return apperror.NewValidation(fmt.Sprintf(format, args...))
}
