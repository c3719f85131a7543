package swagger

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	apicontract "github.com/tuanvumaihuynh/stock-ledger/api-contract"
)

const (
	docsPath = "/docs"
	specPath = "/docs/openapi.yml"

	uiVersion = "5.29.3"
)

var pageTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{ .Title }}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@{{ .UIVersion }}/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@{{ .UIVersion }}/swagger-ui-bundle.js" crossorigin></script>
<script>
  window.onload = () => {
    window.ui = SwaggerUIBundle({
      url: {{ .SpecPath }},
      dom_id: '#swagger-ui',
      deepLinking: true,
      tryItOutEnabled: true,
    });
  };
</script>
</body>
</html>
`))

// Register serves the Swagger UI under /docs, titled title, along with the
// embedded OpenAPI document.
func Register(r chi.Router, title string) error {
	var page bytes.Buffer
	if err := pageTemplate.Execute(&page, struct {
		Title     string
		UIVersion string
		SpecPath  string
	}{
		Title:     title,
		UIVersion: uiVersion,
		SpecPath:  specPath,
	}); err != nil {
		return err
	}
	pageBytes := page.Bytes()

	r.Get(docsPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck
		w.Write(pageBytes)
	})

	specBytes := apicontract.GetSpecBytes()
	r.Get(specPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck
		w.Write(specBytes)
	})

	return nil
}
