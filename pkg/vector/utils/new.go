// Package vectorutils constructs vector drivers from configuration.
package vectorutils

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/inkwellco/corpus/pkg/vector"
	"github.com/inkwellco/corpus/pkg/vector/chroma"
	"github.com/inkwellco/corpus/pkg/vector/memory"
	"github.com/inkwellco/corpus/pkg/vector/qdrant"
	"github.com/inkwellco/corpus/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	// ProviderType selects the backend: memory, sqlite, chroma, or qdrant.
	ProviderType string

	// TargetURL is the server URL for remote providers.
	TargetURL string

	// DBPath is the database file path for the sqlite provider.
	DBPath string

	Logger *slog.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "memory":
		return memory.NewDriver(), nil
	case "sqlite":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath: o.DBPath,
		}, o.Logger)
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL: o.TargetURL,
		}, o.Logger)
	case "qdrant":
		host, port, err := splitHostPort(o.TargetURL)
		if err != nil {
			return nil, fmt.Errorf("parsing qdrant target: %w", err)
		}
		return qdrant.NewDriver(qdrant.Config{
			Host: host,
			Port: port,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

// splitHostPort accepts "host:port" or a URL form like "http://host:port".
func splitHostPort(target string) (string, int, error) {
	if target == "" {
		return "", 0, fmt.Errorf("target is required")
	}

	hostport := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		hostport = u.Host
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		// No port given; let the driver apply its default.
		return hostport, 0, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}

	return host, port, nil
}
