// Package docs serves the OpenAPI description rendered by the /docs UI.
package docs

import (
	_ "embed"
	"net/http"
)

//go:embed doc.json
var doc []byte

// Handler writes the embedded OpenAPI document.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(doc)
}
