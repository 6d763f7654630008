// Package file reads a source's records from a JSON file written by an
// external scraper.
package file

import (
	"context"
	"errors"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/schedule"
)

// Adapter is a file-backed source
type Adapter struct {
	name   string
	path   string
	logger *logrus.Logger
}

// New creates a file adapter for source name reading path
func New(name, path string, logger *logrus.Logger) *Adapter {
	return &Adapter{name: name, path: path, logger: logger}
}

// Name implements ingest.Adapter
func (a *Adapter) Name() string { return a.name }

// Fetch reads the file; malformed entries are skipped and logged
func (a *Adapter) Fetch(ctx context.Context) ([]schedule.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, ingest.Unavailable(a.name, err)
	}
	if _, err := os.Stat(a.path); err != nil {
		return nil, ingest.Unavailable(a.name, err)
	}

	records, errs := schedule.ReadFile(a.path)
	if records == nil && len(errs) > 0 {
		return nil, ingest.Unavailable(a.name, errors.Join(errs...))
	}
	for _, err := range errs {
		a.logger.WithFields(logrus.Fields{"source": a.name, "path": a.path}).WithError(err).Warn("Skipped malformed entry")
	}
	return records, nil
}
