package audit

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kalamgit143/validAIte-sub004/pkg/canonicalize"
)

var (
	// ErrEmptyRequestID is returned when a trail is exported without a request.
	ErrEmptyRequestID = errors.New("audit: request_id must not be empty")
	// ErrHeadMismatch is returned when a trail's declared head disagrees with its entries.
	ErrHeadMismatch = errors.New("audit: chain_head does not match last entry")
)

// Trail is the exported audit trail of one request. An external verifier can
// replay Verify over Entries without access to this service.
//
//nolint:govet // fieldalignment: field order mirrors the export format
type Trail struct {
	RequestID   string    `json:"request_id"`
	ExportedAt  time.Time `json:"exported_at"`
	GenesisHash string    `json:"genesis_hash"`
	ChainHead   string    `json:"chain_head"`
	EntryCount  int       `json:"entry_count"`
	Entries     []Entry   `json:"entries"`
}

// NewTrail verifies entries and wraps them for export. A broken chain is never
// exported.
func NewTrail(requestID string, entries []Entry, exportedAt time.Time) (*Trail, error) {
	if requestID == "" {
		return nil, ErrEmptyRequestID
	}
	if err := Verify(entries); err != nil {
		return nil, err
	}
	head := GenesisHash
	if len(entries) > 0 {
		head = entries[len(entries)-1].IntegrityHash
	}
	return &Trail{
		RequestID:   requestID,
		ExportedAt:  exportedAt.UTC(),
		GenesisHash: GenesisHash,
		ChainHead:   head,
		EntryCount:  len(entries),
		Entries:     entries,
	}, nil
}

// Verify checks the chain and the declared head and count.
func (t *Trail) Verify() error {
	if err := Verify(t.Entries); err != nil {
		return err
	}
	if t.EntryCount != len(t.Entries) {
		return fmt.Errorf("audit: entry_count %d but %d entries present", t.EntryCount, len(t.Entries))
	}
	head := GenesisHash
	if len(t.Entries) > 0 {
		head = t.Entries[len(t.Entries)-1].IntegrityHash
	}
	if head != t.ChainHead {
		return ErrHeadMismatch
	}
	return nil
}

// WriteTrail writes t as indented JSON.
func WriteTrail(w io.Writer, t *Trail) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// ReadTrail decodes a trail previously written by WriteTrail. It does not verify.
func ReadTrail(r io.Reader) (*Trail, error) {
	var t Trail
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("audit: failed to decode trail: %w", err)
	}
	return &t, nil
}

// BuildEvidencePack bundles a verified trail and, when present, the issued
// certificate into a zip with a manifest. It returns the archive and its
// SHA-256 checksum.
func BuildEvidencePack(t *Trail, certificateJSON []byte) ([]byte, string, error) {
	if err := t.Verify(); err != nil {
		return nil, "", err
	}

	trailJSON, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("audit: failed to marshal trail: %w", err)
	}

	manifest := map[string]any{
		"request_id":   t.RequestID,
		"generated_at": t.ExportedAt,
		"event_count":  t.EntryCount,
		"chain_head":   t.ChainHead,
		"trail_hash":   canonicalize.HashPrefix + canonicalize.HashBytes(trailJSON),
	}
	if len(certificateJSON) > 0 {
		manifest["certificate_hash"] = canonicalize.HashPrefix + canonicalize.HashBytes(certificateJSON)
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("audit: failed to marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	files := []struct {
		name string
		data []byte
	}{
		{"audit_trail.json", trailJSON},
		{"manifest.json", manifestJSON},
		{"certificate.json", certificateJSON},
		{"README.txt", []byte(fmt.Sprintf("Deployment authorization evidence pack for request %s\nChain head %s\n", t.RequestID, t.ChainHead))},
	}
	for _, f := range files {
		if len(f.data) == 0 {
			continue
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.name, Method: zip.Deflate, Modified: t.ExportedAt})
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(f.data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	zipBytes := buf.Bytes()
	return zipBytes, canonicalize.HashBytes(zipBytes), nil
}
