package serve

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Lucaterre/tsvlink/pkg/export"
	"github.com/Lucaterre/tsvlink/pkg/resolve"
	"github.com/Lucaterre/tsvlink/pkg/types"
)

// UnresolvedHeader names the response header carrying the number of spans
// the conversion left without an identifier.
const UnresolvedHeader = "X-Tsvlink-Unresolved"

// Converter is the conversion pipeline the server fronts. The root
// tsvlink.Converter satisfies it.
type Converter interface {
	Parse(data []byte) (*types.Document, error)
	Convert(ctx context.Context, doc *types.Document, f export.Format) ([]byte, *resolve.Summary, error)
}

// Config holds server configuration.
type Config struct {
	// Addr is the listen address. Default ":8090".
	Addr string

	// MaxBodyBytes caps accepted request bodies. Default 8 MiB.
	MaxBodyBytes int64

	// Logger receives request-scoped log entries.
	// Default is the logrus standard logger.
	Logger logrus.FieldLogger
}
