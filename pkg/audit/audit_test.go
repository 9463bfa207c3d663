package audit_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalamgit143/validAIte-sub004/pkg/audit"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func buildChain(t *testing.T, n int) *audit.Chain {
	t.Helper()
	var c audit.Chain
	c.SetClock(fixedClock())
	for i := 0; i < n; i++ {
		_, err := c.Append(audit.ActionStakeholderApproved, "Alice", "ai_risk_officer",
			map[string]any{"step": i, "role": "ai_risk_officer"})
		require.NoError(t, err)
	}
	return &c
}

func TestChain_AppendLinksEntries(t *testing.T) {
	c := buildChain(t, 3)
	entries := c.Entries()
	require.Len(t, entries, 3)

	assert.Equal(t, audit.GenesisHash, entries[0].PrevHash)
	for i := 1; i < len(entries); i++ {
		assert.Equal(t, entries[i-1].IntegrityHash, entries[i].PrevHash)
		assert.Equal(t, uint64(i+1), entries[i].Sequence)
	}
	assert.Equal(t, entries[2].IntegrityHash, c.Head())
	assert.True(t, strings.HasPrefix(c.Head(), "sha256:"))
	require.NoError(t, c.Verify())
}

func TestChain_EmptyChain(t *testing.T) {
	var c audit.Chain
	assert.Equal(t, audit.GenesisHash, c.Head())
	assert.NoError(t, c.Verify())
	assert.Empty(t, c.Entries())

	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(b))
}

func TestChain_AppendRequiresAction(t *testing.T) {
	var c audit.Chain
	_, err := c.Append("", "Alice", "ai_risk_officer", nil)
	assert.ErrorIs(t, err, contracts.ErrValidation)
	assert.Equal(t, 0, c.Len())
}

func TestChain_DetailsAreCopied(t *testing.T) {
	var c audit.Chain
	details := map[string]any{"comment": "ok"}
	_, err := c.Append(audit.ActionStakeholderApproved, "Alice", "ai_risk_officer", details)
	require.NoError(t, err)

	details["comment"] = "changed after append"
	require.NoError(t, c.Verify())

	got := c.Entries()
	got[0].Details["comment"] = "changed on copy"
	require.NoError(t, c.Verify())
}

func TestChain_JSONRoundTripVerifies(t *testing.T) {
	c := buildChain(t, 4)
	b, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded audit.Chain
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, 4, decoded.Len())
	assert.NoError(t, decoded.Verify())
	assert.Equal(t, c.Head(), decoded.Head())
}

func TestVerify_DetectsTampering(t *testing.T) {
	cases := []struct {
		name   string
		mutate func([]audit.Entry) []audit.Entry
		index  int
	}{
		{"edited action", func(e []audit.Entry) []audit.Entry {
			e[1].Action = audit.ActionStakeholderRejected
			return e
		}, 1},
		{"edited actor", func(e []audit.Entry) []audit.Entry {
			e[2].Actor = "Mallory"
			return e
		}, 2},
		{"edited details", func(e []audit.Entry) []audit.Entry {
			e[0].Details["step"] = 99
			return e
		}, 0},
		{"edited id", func(e []audit.Entry) []audit.Entry {
			e[2].ID = "00000000-0000-0000-0000-000000000000"
			return e
		}, 2},
		{"edited timestamp", func(e []audit.Entry) []audit.Entry {
			e[3].Timestamp = e[3].Timestamp.Add(time.Millisecond)
			return e
		}, 3},
		{"deleted entry", func(e []audit.Entry) []audit.Entry {
			return append(e[:1], e[2:]...)
		}, 1},
		{"reordered entries", func(e []audit.Entry) []audit.Entry {
			e[1], e[2] = e[2], e[1]
			return e
		}, 1},
		{"forged hash", func(e []audit.Entry) []audit.Entry {
			e[3].IntegrityHash = audit.GenesisHash
			return e
		}, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries := tc.mutate(buildChain(t, 4).Entries())
			err := audit.Verify(entries)
			require.Error(t, err)
			assert.ErrorIs(t, err, contracts.ErrIntegrity)

			var ie *contracts.IntegrityError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tc.index, ie.Index)
		})
	}
}

func TestChain_Since(t *testing.T) {
	c := buildChain(t, 3)
	assert.Len(t, c.Since(1), 2)
	assert.Empty(t, c.Since(3))
	assert.Empty(t, c.Since(10))
}

func TestWriterSink_WritesPrefixedJSON(t *testing.T) {
	var buf bytes.Buffer
	sink := audit.NewWriterSink(&buf)
	entry := buildChain(t, 1).Entries()[0]

	require.NoError(t, sink.Emit(context.Background(), "req-1", entry))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "AUDIT: "))

	var decoded struct {
		RequestID string `json:"request_id"`
		audit.Entry
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(out, "AUDIT: "))), &decoded))
	assert.Equal(t, "req-1", decoded.RequestID)
	assert.Equal(t, entry.IntegrityHash, decoded.IntegrityHash)
}

func TestTrail_ExportAndReplay(t *testing.T) {
	c := buildChain(t, 3)
	trail, err := audit.NewTrail("req-1", c.Entries(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, c.Head(), trail.ChainHead)
	assert.Equal(t, 3, trail.EntryCount)

	var buf bytes.Buffer
	require.NoError(t, audit.WriteTrail(&buf, trail))

	parsed, err := audit.ReadTrail(&buf)
	require.NoError(t, err)
	assert.NoError(t, parsed.Verify())

	parsed.ChainHead = audit.GenesisHash
	assert.ErrorIs(t, parsed.Verify(), audit.ErrHeadMismatch)
}

func TestTrail_RefusesBrokenChain(t *testing.T) {
	entries := buildChain(t, 2).Entries()
	entries[0].Actor = "Mallory"

	_, err := audit.NewTrail("req-1", entries, time.Now())
	assert.ErrorIs(t, err, contracts.ErrIntegrity)

	_, err = audit.NewTrail("", nil, time.Now())
	assert.ErrorIs(t, err, audit.ErrEmptyRequestID)
}

func TestBuildEvidencePack(t *testing.T) {
	trail, err := audit.NewTrail("req-1", buildChain(t, 2).Entries(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	cert := []byte(`{"certificate_id":"cert-1"}`)
	data, checksum, err := audit.BuildEvidencePack(trail, cert)
	require.NoError(t, err)
	assert.Len(t, checksum, 64)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		names[f.Name] = b
	}
	assert.Contains(t, names, "audit_trail.json")
	assert.Contains(t, names, "manifest.json")
	assert.Equal(t, cert, names["certificate.json"])

	var manifest map[string]any
	require.NoError(t, json.Unmarshal(names["manifest.json"], &manifest))
	assert.Equal(t, "req-1", manifest["request_id"])
	assert.Equal(t, trail.ChainHead, manifest["chain_head"])

	// Deterministic for identical input.
	again, checksum2, err := audit.BuildEvidencePack(trail, cert)
	require.NoError(t, err)
	assert.Equal(t, checksum, checksum2)
	assert.Equal(t, data, again)
}
