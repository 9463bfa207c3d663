package workflow

import (
	"context"
	"fmt"

	"github.com/kalamgit143/validAIte-sub004/pkg/approval"
	"github.com/kalamgit143/validAIte-sub004/pkg/audit"
	"github.com/kalamgit143/validAIte-sub004/pkg/canonicalize"
	"github.com/kalamgit143/validAIte-sub004/pkg/certification"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
	"github.com/kalamgit143/validAIte-sub004/pkg/gate"
	"github.com/kalamgit143/validAIte-sub004/pkg/observability"
	"github.com/kalamgit143/validAIte-sub004/pkg/store"
)

// Reads go straight to the repository, which hands out copies; they never
// wait on the request lock.

// Get returns a snapshot of the request aggregate.
func (s *Service) Get(ctx context.Context, requestID string) (*store.Record, error) {
	if requestID == "" {
		return nil, &contracts.ValidationError{Field: "request_id", Reason: "required"}
	}
	rec, err := s.repo.Load(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("workflow: load %s: %w", requestID, err)
	}
	return rec, nil
}

// List returns request snapshots matching filter.
func (s *Service) List(ctx context.Context, filter store.ListFilter) ([]*store.Record, error) {
	return s.repo.List(ctx, filter)
}

// Progress summarizes stakeholder sign-off.
func (s *Service) Progress(ctx context.Context, requestID string) (approval.Progress, error) {
	rec, err := s.Get(ctx, requestID)
	if err != nil {
		return approval.Progress{}, err
	}
	return approval.ComputeProgress(rec.Approvals), nil
}

// Readiness reports whether finalize would pass and why not.
func (s *Service) Readiness(ctx context.Context, requestID string) (gate.Result, error) {
	rec, err := s.Get(ctx, requestID)
	if err != nil {
		return gate.Result{}, err
	}
	return gate.Evaluate(rec.Approvals, rec.Conditions), nil
}

// CanFinalize is Readiness reduced to its verdict.
func (s *Service) CanFinalize(ctx context.Context, requestID string) (bool, error) {
	res, err := s.Readiness(ctx, requestID)
	return res.CanFinalize, err
}

// BlockingReasons lists every unmet finalize requirement.
func (s *Service) BlockingReasons(ctx context.Context, requestID string) ([]string, error) {
	res, err := s.Readiness(ctx, requestID)
	return res.Reasons, err
}

// Decision returns the finalized decision or an ErrNotFound error.
func (s *Service) Decision(ctx context.Context, requestID string) (*contracts.AuthorizationDecision, error) {
	rec, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if rec.Decision == nil {
		return nil, fmt.Errorf("workflow: decision for %s: %w", requestID, contracts.ErrNotFound)
	}
	return rec.Decision, nil
}

// Certificate returns the verified certificate or an ErrNotFound error.
func (s *Service) Certificate(ctx context.Context, requestID string) (*contracts.AuthorizationCertificate, error) {
	rec, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if rec.Certificate == nil {
		return nil, fmt.Errorf("workflow: certificate for %s: %w", requestID, contracts.ErrNotFound)
	}
	if err := certification.Verify(rec.Certificate); err != nil {
		return nil, fmt.Errorf("workflow: certificate for %s: %w", requestID, err)
	}
	return rec.Certificate, nil
}

// CertificateToken returns a signed compact token for the request's certificate.
func (s *Service) CertificateToken(ctx context.Context, requestID string) (string, error) {
	if len(s.certKey) == 0 {
		return "", &contracts.PreconditionError{Reason: "no certificate signing key configured"}
	}
	cert, err := s.Certificate(ctx, requestID)
	if err != nil {
		return "", err
	}
	return certification.SignToken(cert, s.certKey, s.certKeyID)
}

// AuditTrail exports the request's audit chain after verifying it.
func (s *Service) AuditTrail(ctx context.Context, requestID string) (_ *audit.Trail, err error) {
	ctx, done := s.track(ctx, "audit_trail", requestID, contracts.Actor{})
	defer done(&err)

	rec, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	observability.AnnotateChain(ctx, rec.Audit.Len())
	trail, err := audit.NewTrail(requestID, rec.Audit.Entries(), s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "audit chain verification failed", "request_id", requestID, "error", err)
		return nil, fmt.Errorf("workflow: audit trail %s: %w", requestID, err)
	}
	return trail, nil
}

// EvidencePack is a zipped audit trail plus certificate.
type EvidencePack struct {
	Data     []byte
	Checksum string
	// Ref is the archive reference, empty when no archive is configured.
	Ref string
}

// EvidencePack builds, and archives when possible, the request's evidence pack.
func (s *Service) EvidencePack(ctx context.Context, requestID string) (*EvidencePack, error) {
	trail, err := s.AuditTrail(ctx, requestID)
	if err != nil {
		return nil, err
	}
	var certJSON []byte
	if cert, err := s.Certificate(ctx, requestID); err == nil {
		if certJSON, err = canonicalize.JCS(cert); err != nil {
			return nil, fmt.Errorf("workflow: canonicalize certificate: %w", err)
		}
	} else if !isNotFound(err) {
		return nil, err
	}

	data, sum, err := audit.BuildEvidencePack(trail, certJSON)
	if err != nil {
		return nil, fmt.Errorf("workflow: evidence pack %s: %w", requestID, err)
	}
	pack := &EvidencePack{Data: data, Checksum: sum}
	if s.archive != nil {
		if pack.Ref, err = s.archive.PutEvidencePack(ctx, data); err != nil {
			return nil, fmt.Errorf("workflow: archive evidence pack: %w", err)
		}
	}
	return pack, nil
}
