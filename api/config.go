// Package api provides an HTTP API server for ingesting, managing, and
// querying corpus versions.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8091")
	ListenAddr string
}

// ErrorResponse is the JSON error body returned by failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
