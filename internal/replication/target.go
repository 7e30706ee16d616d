package replication

import "github.com/stacklok/content-replicator/internal/httpclient"

// Target is a remote installation receiving replicated content
type Target struct {
	Identifier  string
	Name        string
	Description string
	BaseURL     string
	APIKey      string
}

// DisplayName returns the name used in log lines, falling back to the identifier
func (t *Target) DisplayName() string {
	if t.Name == "" {
		return t.Identifier
	}
	return t.Name
}

// Endpoint returns the transport address of the target
func (t *Target) Endpoint() httpclient.Endpoint {
	return httpclient.Endpoint{BaseURL: t.BaseURL, APIKey: t.APIKey}
}
