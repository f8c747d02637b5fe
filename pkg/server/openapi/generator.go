// Package openapi derives an OpenAPI 3 document from the model registry and
// serves it on the management listener. The document describes the discovery
// endpoints plus the full collection route set of every registered model, so
// it stays truthful without per-handler annotations.
package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/crudkit/crudkit/pkg/crud"
)

// Generator builds the OpenAPI document for a registry snapshot.
type Generator struct {
	title    string
	version  string
	registry *crud.Registry
}

// NewGenerator creates a generator. Title and version default when blank,
// the registry is required.
func NewGenerator(title, version string, registry *crud.Registry) (*Generator, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if strings.TrimSpace(title) == "" {
		title = "CRUD API"
	}
	if strings.TrimSpace(version) == "" {
		version = "0.0.0"
	}
	return &Generator{title: title, version: version, registry: registry}, nil
}

// Build assembles the document from the models currently registered. Each
// call produces a fresh value the caller may mutate.
func (g *Generator) Build() *openapi3.T {
	schemas := newSchemaSet()

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   g.title,
			Version: g.version,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: schemas.components,
		},
		Tags: openapi3.Tags{
			{Name: tagDiscovery, Description: "Model discovery and cross-model search."},
		},
	}

	g.addDiscoveryPaths(doc, schemas)
	for _, desc := range g.registry.Descriptors() {
		g.addModelPaths(doc, schemas, desc)
	}
	return doc
}

// WriteFile builds the document and writes it to path, creating parent
// directories as needed. A .yaml or .yml extension selects YAML output,
// anything else gets indented JSON matching the served document.
func (g *Generator) WriteFile(path string) error {
	outputPath := strings.TrimSpace(path)
	if outputPath == "" {
		return fmt.Errorf("output path is required")
	}

	doc := g.Build()
	if err := doc.Validate(context.Background()); err != nil {
		return fmt.Errorf("generated openapi document is invalid: %w", err)
	}
	data, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal openapi document: %w", err)
	}

	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".yaml", ".yml":
		// Round-trip through the JSON form so the YAML output carries
		// exactly what the handler serves.
		var tree map[string]interface{}
		if err := json.Unmarshal(data, &tree); err != nil {
			return fmt.Errorf("decode openapi document: %w", err)
		}
		if data, err = yaml.Marshal(tree); err != nil {
			return fmt.Errorf("encode openapi document as yaml: %w", err)
		}
	default:
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return fmt.Errorf("indent openapi document: %w", err)
		}
		data = buf.Bytes()
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("write openapi document: %w", err)
	}
	return nil
}

const tagDiscovery = "discovery"

func (g *Generator) addDiscoveryPaths(doc *openapi3.T, schemas schemaSet) {
	modelsItem := &openapi3.PathItem{}
	modelsItem.SetOperation(http.MethodGet, &openapi3.Operation{
		Tags:        []string{tagDiscovery},
		OperationID: "listModels",
		Summary:     "List registered models",
		Description: "Returns the collection name, exempt fields, relations and unique keys of every registered model.",
		Responses: buildResponses(map[int]*openapi3.Response{
			http.StatusOK: envelopeResponse("Registered models.", schemas.resultRef()),
		}),
	})
	doc.Paths.Set("/models", modelsItem)

	modelsParam := queryParam("models", "Comma separated model names to read, in response order.",
		openapi3.NewStringSchema())
	modelsParam.Value.WithRequired(true)
	searchParams := append(openapi3.Parameters{modelsParam}, windowParams()...)
	searchParams = append(searchParams, populateParam(nil))

	searchItem := &openapi3.PathItem{}
	searchItem.SetOperation(http.MethodGet, &openapi3.Operation{
		Tags:        []string{tagDiscovery},
		OperationID: "searchModels",
		Summary:     "Read several models in one request",
		Description: "Applies the same window, filter and populate to every named model. The data field holds one block per model, in the requested order.",
		Parameters:  searchParams,
		Responses: buildResponses(map[int]*openapi3.Response{
			http.StatusOK:                  envelopeResponse("One result block per requested model.", schemas.resultRef()),
			http.StatusBadRequest:          errorResponse("Unknown model or malformed query.", schemas),
			http.StatusInternalServerError: errorResponse("Store failure.", schemas),
		}),
	})
	doc.Paths.Set("/search", searchItem)
}

func (g *Generator) addModelPaths(doc *openapi3.T, schemas schemaSet, desc crud.Descriptor) {
	collection := desc.Collection
	pascal := toPascalCase(collection)
	base := "/" + collection
	bodyRef := schemas.modelRef(desc, pascal)

	doc.Tags = append(doc.Tags, &openapi3.Tag{
		Name:        collection,
		Description: modelTagDescription(desc),
	})

	createDescription := "Creates one document."
	if len(desc.UniqueKeys) > 0 {
		createDescription += " Rejected with 409 when a document already matches one of the model's unique keys."
	}

	collectionItem := &openapi3.PathItem{}
	collectionItem.SetOperation(http.MethodPost, &openapi3.Operation{
		Tags:        []string{collection},
		OperationID: "create" + pascal,
		Summary:     "Create a document",
		Description: createDescription,
		RequestBody: jsonBody("Document to insert.", bodyRef),
		Responses: buildResponses(map[int]*openapi3.Response{
			http.StatusCreated:             envelopeResponse("Created document.", schemas.resultRef()),
			http.StatusBadRequest:          errorResponse("Malformed or schema-invalid payload.", schemas),
			http.StatusConflict:            errorResponse("A matching document already exists.", schemas),
			http.StatusInternalServerError: errorResponse("Store failure.", schemas),
		}),
	})
	listParams := append(windowParams(), populateParam(desc.Relations))
	collectionItem.SetOperation(http.MethodGet, &openapi3.Operation{
		Tags:        []string{collection},
		OperationID: "list" + pascal,
		Summary:     "Read a page of documents",
		Description: "Returns a window of matching documents. A page beyond the data yields an empty array, not an error.",
		Parameters:  listParams,
		Responses: buildResponses(map[int]*openapi3.Response{
			http.StatusOK:                  envelopeResponse("Matching documents with doc_length set.", schemas.resultRef()),
			http.StatusBadRequest:          errorResponse("Malformed query.", schemas),
			http.StatusInternalServerError: errorResponse("Store failure.", schemas),
		}),
	})
	doc.Paths.Set(base, collectionItem)

	batchItem := &openapi3.PathItem{}
	batchItem.SetOperation(http.MethodPost, &openapi3.Operation{
		Tags:        []string{collection},
		OperationID: "create" + pascal + "Batch",
		Summary:     "Create several documents",
		Description: "Inserts all documents or none. Any duplicate or invalid entry rejects the whole batch.",
		RequestBody: jsonBody("Documents to insert.", arrayRef(bodyRef)),
		Responses: buildResponses(map[int]*openapi3.Response{
			http.StatusCreated:             envelopeResponse("Created documents with doc_length set.", schemas.resultRef()),
			http.StatusBadRequest:          errorResponse("Malformed or schema-invalid payload.", schemas),
			http.StatusConflict:            errorResponse("A matching document already exists.", schemas),
			http.StatusInternalServerError: errorResponse("Store failure.", schemas),
		}),
	})
	doc.Paths.Set(base+"/batch", batchItem)

	idItem := &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam()},
	}
	idItem.SetOperation(http.MethodGet, &openapi3.Operation{
		Tags:        []string{collection},
		OperationID: "get" + pascal + "ById",
		Summary:     "Read one document",
		Parameters:  openapi3.Parameters{populateParam(desc.Relations)},
		Responses: buildResponses(map[int]*openapi3.Response{
			http.StatusOK:                  envelopeResponse("The document.", schemas.resultRef()),
			http.StatusBadRequest:          errorResponse("Malformed populate specification.", schemas),
			http.StatusNotFound:            errorResponse("No document with this id.", schemas),
			http.StatusInternalServerError: errorResponse("Store failure.", schemas),
		}),
	})
	idItem.SetOperation(http.MethodPatch, &openapi3.Operation{
		Tags:        []string{collection},
		OperationID: "update" + pascal + "ById",
		Summary:     "Update one document",
		Description: "Applies a partial update and returns the stored document.",
		RequestBody: jsonBody("Fields to set.", bodyRef),
		Responses: buildResponses(map[int]*openapi3.Response{
			http.StatusOK:                  envelopeResponse("Updated document.", schemas.resultRef()),
			http.StatusBadRequest:          errorResponse("Malformed or schema-invalid payload.", schemas),
			http.StatusNotFound:            errorResponse("No document with this id.", schemas),
			http.StatusInternalServerError: errorResponse("Store failure.", schemas),
		}),
	})
	idItem.SetOperation(http.MethodDelete, &openapi3.Operation{
		Tags:        []string{collection},
		OperationID: "delete" + pascal + "ById",
		Summary:     "Delete one document",
		Responses: buildResponses(map[int]*openapi3.Response{
			http.StatusOK:                  envelopeResponse("Deletion result.", schemas.resultRef()),
			http.StatusNotFound:            errorResponse("No document with this id.", schemas),
			http.StatusInternalServerError: errorResponse("Store failure.", schemas),
		}),
	})
	doc.Paths.Set(base+"/{id}", idItem)
}

func modelTagDescription(desc crud.Descriptor) string {
	description := "Collection routes for the " + desc.Collection + " model."
	if len(desc.ExemptFields) > 0 {
		description += " Responses never carry: " + strings.Join(desc.ExemptFields, ", ") + "."
	}
	return description
}

// schemaSet holds the shared component schemas. Refs carry both the
// component pointer and the resolved value, so the built document validates
// directly and still marshals as $ref.
type schemaSet struct {
	components openapi3.Schemas
}

const (
	schemaDocument    = "Document"
	schemaResult      = "Result"
	schemaErrorResult = "ErrorResult"
	schemaModelResult = "ModelResult"
)

func newSchemaSet() schemaSet {
	document := openapi3.NewObjectSchema().WithAnyAdditionalProperties()
	document.Description = "A schemaless document. The _id field is assigned by the store on create."

	result := openapi3.NewObjectSchema().
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("success_status", openapi3.NewBoolSchema()).
		WithProperty("data", openapi3.NewSchema()).
		WithProperty("doc_length", openapi3.NewIntegerSchema())
	result.Required = []string{"message", "success_status", "data"}
	result.Description = "Uniform success envelope. doc_length is present on multi-document reads and batch writes."

	errorResult := openapi3.NewObjectSchema().
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("success_status", openapi3.NewBoolSchema()).
		WithProperty("error", openapi3.NewStringSchema().
			WithEnum("Conflict", "NotFound", "ValidationError", "InternalError")).
		WithProperty("details", openapi3.NewObjectSchema().WithAnyAdditionalProperties()).
		WithProperty("stack", openapi3.NewStringSchema())
	errorResult.Required = []string{"message", "success_status", "error"}
	errorResult.Description = "Uniform error envelope. stack is omitted in production."

	modelResult := openapi3.NewObjectSchema().
		WithProperty("model", openapi3.NewStringSchema()).
		WithProperty("docs", openapi3.NewArraySchema().WithItems(document)).
		WithProperty("doc_length", openapi3.NewIntegerSchema())
	modelResult.Description = "One block of a multi-model search response."

	return schemaSet{components: openapi3.Schemas{
		schemaDocument:    openapi3.NewSchemaRef("", document),
		schemaResult:      openapi3.NewSchemaRef("", result),
		schemaErrorResult: openapi3.NewSchemaRef("", errorResult),
		schemaModelResult: openapi3.NewSchemaRef("", modelResult),
	}}
}

func (s schemaSet) ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, s.components[name].Value)
}

func (s schemaSet) documentRef() *openapi3.SchemaRef { return s.ref(schemaDocument) }
func (s schemaSet) resultRef() *openapi3.SchemaRef   { return s.ref(schemaResult) }

// modelRef returns the request body schema for a model. A descriptor with a
// usable JSON Schema gets its own named component, everything else shares the
// generic Document schema.
func (s schemaSet) modelRef(desc crud.Descriptor, pascal string) *openapi3.SchemaRef {
	if len(desc.Schema) == 0 {
		return s.documentRef()
	}
	schema, err := decodeModelSchema(desc.Schema)
	if err != nil {
		return s.documentRef()
	}
	name := pascal
	if _, taken := s.components[name]; taken {
		name += "Model"
	}
	s.components[name] = openapi3.NewSchemaRef("", schema)
	return s.ref(name)
}

// decodeModelSchema converts a descriptor's JSON Schema into an OpenAPI
// schema. Top-level $ keywords are dropped first since OpenAPI 3.0 does not
// carry them, and the result must validate standalone.
func decodeModelSchema(raw json.RawMessage) (*openapi3.Schema, error) {
	var tree map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	for key := range tree {
		if strings.HasPrefix(key, "$") {
			delete(tree, key)
		}
	}
	cleaned, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}

	schema := &openapi3.Schema{}
	if err := schema.UnmarshalJSON(cleaned); err != nil {
		return nil, err
	}
	if err := schema.Validate(context.Background()); err != nil {
		return nil, err
	}
	return schema, nil
}

func arrayRef(items *openapi3.SchemaRef) *openapi3.SchemaRef {
	array := openapi3.NewArraySchema()
	array.Items = items
	return openapi3.NewSchemaRef("", array)
}

func buildResponses(entries map[int]*openapi3.Response) *openapi3.Responses {
	responses := openapi3.NewResponses()
	responses.Delete("default")
	for status, response := range entries {
		responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: response})
	}
	return responses
}

func envelopeResponse(description string, ref *openapi3.SchemaRef) *openapi3.Response {
	return openapi3.NewResponse().
		WithDescription(description).
		WithContent(openapi3.NewContentWithJSONSchemaRef(ref))
}

func jsonBody(description string, ref *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithDescription(description).
			WithRequired(true).
			WithContent(openapi3.NewContentWithJSONSchemaRef(ref)),
	}
}

func errorResponse(description string, schemas schemaSet) *openapi3.Response {
	return envelopeResponse(description, schemas.ref(schemaErrorResult))
}

func queryParam(name, description string, schema *openapi3.Schema) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewQueryParameter(name).
			WithDescription(description).
			WithSchema(schema),
	}
}

func windowParams() openapi3.Parameters {
	return openapi3.Parameters{
		queryParam("page", "1-based page number. Invalid values fall back to 1.",
			openapi3.NewIntegerSchema()),
		queryParam("limit", "Page size. Invalid values fall back to 10.",
			openapi3.NewIntegerSchema()),
		queryParam("filter", "JSON object matched against documents.",
			openapi3.NewStringSchema()),
	}
}

func populateParam(relations map[string]crud.Relation) *openapi3.ParameterRef {
	description := "Relation chain to resolve, repeatable. \"author\" resolves a relation, \"author:name,email\" selects fields on it, \"author.company\" nests a second hop. At most two hops resolve."
	if len(relations) > 0 {
		paths := make([]string, 0, len(relations))
		for path := range relations {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		description += " Relations: " + strings.Join(paths, ", ") + "."
	}
	schema := openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
	return queryParam("populate", description, schema)
}

func idParam() *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("id").
			WithDescription("Document id.").
			WithSchema(openapi3.NewStringSchema()),
	}
}

func toPascalCase(value string) string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	var out strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		lower := strings.ToLower(part)
		out.WriteString(strings.ToUpper(lower[:1]))
		if len(lower) > 1 {
			out.WriteString(lower[1:])
		}
	}
	return out.String()
}
