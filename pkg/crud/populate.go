package crud

// MaxPopulateDepth caps relation resolution at two hops. Anything nested
// deeper is ignored rather than rejected.
const MaxPopulateDepth = 2

// Populate describes one relation to resolve on read results. Path names a
// field in the descriptor's relation table, Select limits the fields of the
// related documents, and the nested spec resolves one further hop inside the
// related documents. Specs naming unknown relations resolve to absent
// sub-documents without failing the read.
type Populate struct {
	Path     string
	Select   []string
	Populate *Populate
}

// depth returns the nesting depth of the spec chain.
func (p *Populate) depth() int {
	depth := 0
	for current := p; current != nil; current = current.Populate {
		depth++
	}
	return depth
}

// collectRelated gathers the sub-documents sitting at path inside docs so a
// nested populate hop can resolve in place. Population mutates the shared
// document maps, so changes surface inside the parents.
func collectRelated(docs []Document, path string) []Document {
	var related []Document
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		switch value := doc[path].(type) {
		case Document:
			related = append(related, value)
		case map[string]interface{}:
			related = append(related, Document(value))
		case []Document:
			related = append(related, value...)
		case []interface{}:
			for _, item := range value {
				switch sub := item.(type) {
				case Document:
					related = append(related, sub)
				case map[string]interface{}:
					related = append(related, Document(sub))
				}
			}
		}
	}
	return related
}
