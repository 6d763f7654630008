package reconciliation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/schedule"
)

// Translator rewrites source spellings of leagues and teams to canonical ones
type Translator struct {
	names map[string]string
}

// NewTranslator builds a translator from an in-memory dictionary
func NewTranslator(names map[string]string) *Translator {
	if names == nil {
		names = map[string]string{}
	}
	return &Translator{names: names}
}

// LoadTranslator reads a JSON object of spelling → canonical spelling.
// A missing or unreadable file yields an empty translator.
func LoadTranslator(path string, logger *logrus.Logger) *Translator {
	if path == "" {
		return NewTranslator(nil)
	}
	names, err := readDictionary(path)
	if err != nil {
		entry := logger.WithField("path", path)
		if errors.Is(err, os.ErrNotExist) {
			entry.Info("No translation dictionary, names used as scraped")
		} else {
			entry.WithError(err).Warn("⚠️  Translation dictionary unreadable, names used as scraped")
		}
		return NewTranslator(nil)
	}
	logger.WithFields(logrus.Fields{"path": path, "entries": len(names)}).Debug("Loaded translation dictionary")
	return NewTranslator(names)
}

func readDictionary(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var names map[string]string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return names, nil
}

// Len is the number of dictionary entries
func (t *Translator) Len() int { return len(t.names) }

// Apply returns translated copies; lookups are exact-key
func (t *Translator) Apply(records []schedule.MatchRecord) []schedule.MatchRecord {
	out := make([]schedule.MatchRecord, len(records))
	for i, r := range records {
		cpy := r.Clone()
		cpy.League = t.lookup(cpy.League)
		cpy.Team1.Name = t.lookup(cpy.Team1.Name)
		cpy.Team2.Name = t.lookup(cpy.Team2.Name)
		out[i] = cpy
	}
	return out
}

func (t *Translator) lookup(s string) string {
	if v, ok := t.names[s]; ok {
		return v
	}
	return s
}
