// Package graphiql serves the GraphiQL playground for local development and
// non-production stages.
package graphiql

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
)

//go:embed graphiql.html
var graphiql string

// New returns a handler serving the playground pointed at the graphql
// endpoint, optionally with a websocket url for subscriptions.
func New(endpoint string, wsEndpoint ...string) http.HandlerFunc {
	templ := template.Must(template.New("graphiql").Parse(graphiql))

	var variables struct {
		Route   string
		WSRoute string
	}
	variables.Route = endpoint
	if len(wsEndpoint) > 0 {
		variables.WSRoute = wsEndpoint[0]
	}

	return func(w http.ResponseWriter, req *http.Request) {
		var buffer bytes.Buffer
		if err := templ.Execute(&buffer, variables); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write(buffer.Bytes())
	}
}
