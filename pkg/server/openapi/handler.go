package openapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/crudkit/crudkit/pkg/server/router"
)

// DefaultSpecPath is where the document is served unless configured.
const DefaultSpecPath = "/openapi.json"

// Handler serves the generated OpenAPI document. The document is built,
// validated and rendered once at construction; models registered afterwards
// are not picked up.
type Handler struct {
	specPath string
	document []byte
}

// NewHandler builds the document from the generator and prepares it for
// serving. It fails when the generated document does not validate, so a bad
// registry surfaces at startup instead of returning broken docs forever.
func NewHandler(gen *Generator, specPath string) (*Handler, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	specPath = strings.TrimSpace(specPath)
	if specPath == "" {
		specPath = DefaultSpecPath
	}
	if !strings.HasPrefix(specPath, "/") {
		specPath = "/" + specPath
	}

	doc := gen.Build()
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("generated openapi document is invalid: %w", err)
	}
	document, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal openapi document: %w", err)
	}

	return &Handler{specPath: specPath, document: document}, nil
}

// SpecPath returns the path the document is registered on.
func (h *Handler) SpecPath() string {
	return h.specPath
}

// ServeSpec writes the prepared document.
func (h *Handler) ServeSpec(c router.Context) error {
	c.Response().Header().Set("Content-Type", "application/json")
	c.Response().Header().Set("Cache-Control", "public, max-age=300")
	c.Response().WriteHeader(http.StatusOK)
	_, err := c.Response().Write(h.document)
	return err
}

// RegisterRoutes registers the document route on the given router.
func (h *Handler) RegisterRoutes(r router.Router) {
	r.GET(h.specPath, h.ServeSpec)
}
