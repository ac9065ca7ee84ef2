package handlers

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sync"
)

//go:embed openapi.json
var openAPISpec []byte

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>{{.Title}}</title>
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <style>body { margin: 0; } redoc { display: block; height: 100vh; }</style>
  </head>
  <body>
    <redoc spec-url="{{.SpecURL}}"></redoc>
    <script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
  </body>
</html>`))

type openAPIDoc struct {
	body []byte
	etag string
}

// openAPIDocs caches the rendered document per public base URL.
var openAPIDocs sync.Map

// renderOpenAPI returns the embedded document with its servers list pointed
// at baseURL. An empty baseURL keeps the relative server.
func renderOpenAPI(baseURL string) (*openAPIDoc, error) {
	if cached, ok := openAPIDocs.Load(baseURL); ok {
		return cached.(*openAPIDoc), nil
	}
	body := openAPISpec
	if baseURL != "" {
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(openAPISpec, &doc); err != nil {
			return nil, fmt.Errorf("decode openapi document: %w", err)
		}
		servers, err := json.Marshal([]map[string]string{{"url": baseURL}})
		if err != nil {
			return nil, err
		}
		doc["servers"] = servers
		if body, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("encode openapi document: %w", err)
		}
	}
	sum := sha256.Sum256(body)
	rendered := &openAPIDoc{body: body, etag: `"` + hex.EncodeToString(sum[:8]) + `"`}
	actual, _ := openAPIDocs.LoadOrStore(baseURL, rendered)
	return actual.(*openAPIDoc), nil
}

func (a *App) OpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	baseURL := ""
	if a.Config != nil {
		baseURL = a.Config.PublicBaseURL
	}
	doc, err := renderOpenAPI(baseURL)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("ETag", doc.etag)
	w.Header().Set("Cache-Control", "public, max-age=300")
	if r.Header.Get("If-None-Match") == doc.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.body)
}

func (a *App) OpenAPIDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = docsPage.Execute(w, struct{ Title, SpecURL string }{"Video Gateway API Docs", "/v1/openapi.json"})
}
