package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ParseRequestParams implements spec.md §6's "all endpoints accept both
// GET (query) and POST (JSON body)" contract: GET requests are read from
// the query string, POST requests from a flat JSON object body. Every
// external-API parameter (email, group, mailbox, socks5, http, match) is
// a plain string, so a map[string]string is sufficient for both shapes.
func ParseRequestParams(r *http.Request) (map[string]string, error) {
	if r.Method == http.MethodGet {
		out := make(map[string]string, len(r.URL.Query()))
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				out[key] = values[0]
			}
		}
		return out, nil
	}

	if r.Body == nil {
		return map[string]string{}, nil
	}

	var out map[string]string
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}
