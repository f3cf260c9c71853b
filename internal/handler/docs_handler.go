package handler

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	"go-pharmacy-catalog/pkg/apierror"
)

const swaggerCSP = "default-src 'self'; connect-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data:"

// DocsHandler serves the OpenAPI document read at startup and a Swagger UI
// page pointing at it.
type DocsHandler struct {
	spec []byte
}

func NewDocsHandler(specPath string) *DocsHandler {
	specPath = strings.TrimSpace(specPath)
	if specPath == "" {
		return &DocsHandler{}
	}

	spec, err := os.ReadFile(specPath)
	if err != nil {
		slog.Warn("openapi document unavailable", "path", specPath, "error", err)
		return &DocsHandler{}
	}
	return &DocsHandler{spec: spec}
}

func (h *DocsHandler) OpenAPI(w http.ResponseWriter, _ *http.Request) {
	if len(h.spec) == 0 {
		writeError(w, apierror.New("NOT_FOUND", "OpenAPI document is not available", "", http.StatusNotFound))
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.spec)
}

func (h *DocsHandler) SwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Security-Policy", swaggerCSP)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(swaggerPage))
}

const swaggerPage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Pharmacy Catalog API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="docs"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: "/openapi.yaml", dom_id: "#docs", persistAuthorization: true });
  </script>
</body>
</html>`
