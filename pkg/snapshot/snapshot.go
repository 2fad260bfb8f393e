// Package snapshot implements the §6 memory snapshot format: an opaque
// byte array with an offset, JSON-wrapped with
// {kind,version,offset,length,savedAtMs,savedAtIso,dataB64,startPc?}.
// The core only reads and writes this format; interpretation of the
// bytes is application-level (§6).
package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// CurrentVersion is the snapshot schema version this package writes.
const CurrentVersion = 1

// Snapshot is a single saved memory region.
type Snapshot struct {
	Kind       string  `json:"kind"`
	Version    int     `json:"version"`
	Offset     int     `json:"offset"`
	Length     int     `json:"length"`
	SavedAtMs  int64   `json:"savedAtMs"`
	SavedAtIso string  `json:"savedAtIso"`
	Data       []byte  `json:"-"`
	StartPC    *uint64 `json:"startPc,omitempty"`
}

// wireDoc is Snapshot's on-the-wire JSON shape: Data is base64-encoded
// under dataB64 rather than encoding/json's default (which would also
// base64-encode a []byte field, but under the wrong key name).
type wireDoc struct {
	Kind       string  `json:"kind"`
	Version    int     `json:"version"`
	Offset     int     `json:"offset"`
	Length     int     `json:"length"`
	SavedAtMs  int64   `json:"savedAtMs"`
	SavedAtIso string  `json:"savedAtIso"`
	DataB64    string  `json:"dataB64"`
	StartPC    *uint64 `json:"startPc,omitempty"`
}

// New builds a Snapshot over data, stamped with the given save time
// (callers supply the clock reading so this package stays pure and
// deterministic — see the BIR side's own no-wall-clock discipline).
func New(kind string, offset int, data []byte, savedAt time.Time) *Snapshot {
	return &Snapshot{
		Kind:       kind,
		Version:    CurrentVersion,
		Offset:     offset,
		Length:     len(data),
		SavedAtMs:  savedAt.UnixMilli(),
		SavedAtIso: savedAt.UTC().Format(time.RFC3339),
		Data:       data,
	}
}

// Encode writes s to w as the §6 JSON document.
func Encode(w io.Writer, s *Snapshot) error {
	doc := wireDoc{
		Kind:       s.Kind,
		Version:    s.Version,
		Offset:     s.Offset,
		Length:     s.Length,
		SavedAtMs:  s.SavedAtMs,
		SavedAtIso: s.SavedAtIso,
		DataB64:    base64.StdEncoding.EncodeToString(s.Data),
		StartPC:    s.StartPC,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Decode reads a §6 JSON snapshot document from r.
func Decode(r io.Reader) (*Snapshot, error) {
	var doc wireDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(doc.DataB64)
	if err != nil {
		return nil, fmt.Errorf("snapshot: invalid dataB64: %w", err)
	}
	if len(data) != doc.Length {
		return nil, fmt.Errorf("snapshot: length field %d does not match decoded payload %d bytes", doc.Length, len(data))
	}
	return &Snapshot{
		Kind:       doc.Kind,
		Version:    doc.Version,
		Offset:     doc.Offset,
		Length:     doc.Length,
		SavedAtMs:  doc.SavedAtMs,
		SavedAtIso: doc.SavedAtIso,
		Data:       data,
		StartPC:    doc.StartPC,
	}, nil
}

// Save writes s to path, following the teacher's save-to-a-path
// pattern (pkg/result.SaveCheckpoint) re-expressed with the §6-fixed
// JSON shape instead of gob.
func Save(path string, s *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", path, err)
	}
	defer f.Close()
	return Encode(f, s)
}

// Load reads a snapshot previously written by Save.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}
