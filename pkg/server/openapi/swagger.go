package openapi

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/crudkit/crudkit/pkg/server/router"
)

// SwaggerHandler serves a Swagger UI page reading the generated document.
type SwaggerHandler struct {
	enabled  bool
	specPath string
}

// NewSwaggerHandler creates the UI handler. specPath is the URL the document
// is served on, defaulting to DefaultSpecPath.
func NewSwaggerHandler(enabled bool, specPath string) *SwaggerHandler {
	specPath = strings.TrimSpace(specPath)
	if specPath == "" {
		specPath = DefaultSpecPath
	}
	return &SwaggerHandler{
		enabled:  enabled,
		specPath: specPath,
	}
}

// ServeSwaggerUI serves the Swagger UI HTML page.
func (h *SwaggerHandler) ServeSwaggerUI(c router.Context) error {
	if !h.enabled {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "API docs are disabled",
		})
	}

	tmpl := template.Must(template.New("swagger").Parse(swaggerUITemplate))

	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)

	return tmpl.Execute(c.Response(), map[string]interface{}{
		"SpecURL": h.specPath,
	})
}

// RegisterRoutes registers the UI routes on the given router. Nothing is
// registered when the handler is disabled.
func (h *SwaggerHandler) RegisterRoutes(r router.Router) {
	if h.enabled {
		r.GET("/docs", h.ServeSwaggerUI)
		r.GET("/docs/", h.ServeSwaggerUI)
	}
}

// swaggerUITemplate renders Swagger UI from the CDN build, pointed at the
// generated document.
const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui.css">
    <style>
        html {
            box-sizing: border-box;
            overflow: -moz-scrollbars-vertical;
            overflow-y: scroll;
        }
        *, *:before, *:after {
            box-sizing: inherit;
        }
        body {
            margin: 0;
            padding: 0;
        }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui-bundle.js"></script>
    <script src="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui-standalone-preset.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: "{{.SpecURL}}",
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [
                    SwaggerUIBundle.presets.apis,
                    SwaggerUIStandalonePreset
                ],
                plugins: [
                    SwaggerUIBundle.plugins.DownloadUrl
                ],
                layout: "StandaloneLayout"
            });
        };
    </script>
</body>
</html>
`
