package evidence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// Provider fetches trust evidence for a trust matrix.
type Provider interface {
	Fetch(ctx context.Context, trustMatrixID string) (*contracts.TrustEvidence, error)
}

// StaticProvider serves evidence registered in memory.
type StaticProvider struct {
	mu   sync.RWMutex
	byID map[string]contracts.TrustEvidence
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{byID: make(map[string]contracts.TrustEvidence)}
}

// Put validates ev and registers it under its trust matrix id.
func (p *StaticProvider) Put(ev contracts.TrustEvidence) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID[ev.TrustMatrixID] = ev
	return nil
}

func (p *StaticProvider) Fetch(ctx context.Context, trustMatrixID string) (*contracts.TrustEvidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	ev, ok := p.byID[trustMatrixID]
	if !ok {
		return nil, fmt.Errorf("trust matrix %s: %w", trustMatrixID, contracts.ErrNotFound)
	}
	return &ev, nil
}

// FileProvider reads <dir>/<trust_matrix_id>.json.
type FileProvider struct {
	dir string
}

func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

func (p *FileProvider) Fetch(ctx context.Context, trustMatrixID string) (*contracts.TrustEvidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if trustMatrixID == "" || strings.ContainsAny(trustMatrixID, `/\`) || strings.Contains(trustMatrixID, "..") {
		return nil, &contracts.ValidationError{Field: "trust_matrix_id", Reason: "invalid identifier"}
	}
	data, err := os.ReadFile(filepath.Join(p.dir, trustMatrixID+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("trust matrix %s: %w", trustMatrixID, contracts.ErrNotFound)
		}
		return nil, fmt.Errorf("evidence: read failed: %w", err)
	}
	ev, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if ev.TrustMatrixID != trustMatrixID {
		return nil, &contracts.ValidationError{Field: "trust_matrix_id",
			Reason: fmt.Sprintf("file declares %s", ev.TrustMatrixID)}
	}
	return ev, nil
}
