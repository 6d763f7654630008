package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Decode parses a JSON array of match records.
// Entries that are not objects or fail to decode are skipped, not fatal.
func Decode(r io.Reader) ([]MatchRecord, []error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, []error{fmt.Errorf("decoding schedule array: %w", err)}
	}

	records := make([]MatchRecord, 0, len(raw))
	var errs []error
	for i, item := range raw {
		var rec MatchRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		if rec.Servers == nil {
			rec.Servers = []Server{}
		}
		records = append(records, rec)
	}
	return records, errs
}

// Encode writes records as a two-space indented JSON array.
// Non-ASCII text and HTML characters are written literally.
func Encode(w io.Writer, records []MatchRecord) error {
	if records == nil {
		records = []MatchRecord{}
	}
	out := make([]MatchRecord, len(records))
	for i, r := range records {
		if r.Servers == nil {
			r.Servers = []Server{}
		}
		out[i] = r
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ReadFile loads records from a JSON file
func ReadFile(path string) ([]MatchRecord, []error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, []error{fmt.Errorf("opening %s: %w", path, err)}
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile atomically replaces path with the encoded records
func WriteFile(path string, records []MatchRecord) error {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return fmt.Errorf("encoding schedule: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

// WriteJSON atomically replaces path with v, encoded like Encode
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return writeAtomic(path, buf.Bytes())
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
