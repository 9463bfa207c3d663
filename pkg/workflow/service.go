// Package workflow drives an authorization request from creation through
// stakeholder sign-off to a one-shot deployment decision.
//
// Every write runs under the request's lock: load, verify the audit chain,
// mutate, append audit entries, save. Audit sinks see entries only after the
// save committed.
package workflow

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kalamgit143/validAIte-sub004/pkg/approval"
	"github.com/kalamgit143/validAIte-sub004/pkg/artifacts"
	"github.com/kalamgit143/validAIte-sub004/pkg/audit"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
	"github.com/kalamgit143/validAIte-sub004/pkg/directory"
	"github.com/kalamgit143/validAIte-sub004/pkg/evidence"
	"github.com/kalamgit143/validAIte-sub004/pkg/lock"
	"github.com/kalamgit143/validAIte-sub004/pkg/observability"
	"github.com/kalamgit143/validAIte-sub004/pkg/policy"
	"github.com/kalamgit143/validAIte-sub004/pkg/store"
)

// Service is the authorization workflow.
type Service struct {
	repo      store.Repository
	directory directory.Directory
	locker    lock.Locker
	evidence  evidence.Provider
	engine    *policy.Engine
	signers   approval.SignerFactory
	archive   *artifacts.Archive
	sinks     []audit.Sink
	obs       *observability.Provider
	logger    *slog.Logger
	clock     func() time.Time

	certKey   ed25519.PrivateKey
	certKeyID string
}

// Option configures a Service.
type Option func(*Service)

// WithLocker replaces the in-process keyed mutex, e.g. with a Redis lock.
func WithLocker(l lock.Locker) Option { return func(s *Service) { s.locker = l } }

// WithEvidenceProvider enables CreateFromProvider.
func WithEvidenceProvider(p evidence.Provider) Option { return func(s *Service) { s.evidence = p } }

// WithPolicyEngine sets the engine used for recommendations and conditions.
func WithPolicyEngine(e *policy.Engine) Option { return func(s *Service) { s.engine = e } }

// WithSigner signs every organization's approvals with signer.
func WithSigner(signer approval.Signer) Option {
	return func(s *Service) { s.signers = approval.StaticSigners(signer) }
}

// WithSignerFactory selects the approval signer per organization.
func WithSignerFactory(f approval.SignerFactory) Option {
	return func(s *Service) { s.signers = f }
}

// WithArchive archives issued certificates and exported evidence packs.
func WithArchive(a *artifacts.Archive) Option { return func(s *Service) { s.archive = a } }

// WithAuditSink adds a sink that receives every committed audit entry.
func WithAuditSink(sink audit.Sink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sink) }
}

func WithObservability(p *observability.Provider) Option { return func(s *Service) { s.obs = p } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option { return func(s *Service) { s.clock = clock } }

// WithCertificateKey enables CertificateToken.
func WithCertificateKey(key ed25519.PrivateKey, keyID string) Option {
	return func(s *Service) {
		s.certKey = key
		s.certKeyID = keyID
	}
}

// New creates a workflow service. Repository and directory are mandatory.
func New(repo store.Repository, dir directory.Directory, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("workflow: repository is required")
	}
	if dir == nil {
		return nil, errors.New("workflow: stakeholder directory is required")
	}
	s := &Service{
		repo:      repo,
		directory: dir,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "workflow")
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.signers == nil {
		s.signers = approval.StaticSigners(nil)
	}
	if s.engine == nil {
		engine, err := policy.NewEngine(s.logger)
		if err != nil {
			return nil, fmt.Errorf("workflow: policy engine: %w", err)
		}
		s.engine = engine
	}
	return s, nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// trackerFor returns a tracker signing with organizationID's signer.
func (s *Service) trackerFor(organizationID string) (*approval.Tracker, error) {
	signer, err := s.signers(organizationID)
	if err != nil {
		return nil, fmt.Errorf("workflow: signer for %s: %w", organizationID, err)
	}
	return approval.NewTracker(signer).WithClock(s.clock), nil
}

// track wraps an operation in a span and RED metrics.
func (s *Service) track(ctx context.Context, op, requestID string, actor contracts.Actor) (context.Context, func(*error)) {
	attrs := []attribute.KeyValue{}
	if requestID != "" {
		attrs = append(attrs, observability.AttrRequestID.String(requestID))
	}
	if actor.Role != "" {
		attrs = append(attrs, observability.AttrActorRole.String(actor.Role))
	}
	ctx, done := s.obs.TrackOperation(ctx, "workflow."+op, attrs...)
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		if err != nil {
			s.logger.WarnContext(ctx, "workflow operation failed",
				"op", op, "request_id", requestID, "error", err,
				"class", observability.ErrorClass(err))
		}
		done(err)
	}
}

// mutate runs fn against the current record under the request lock and saves
// the result. Audit entries fn appends are emitted to sinks after the save.
func (s *Service) mutate(ctx context.Context, requestID string, fn func(rec *store.Record) error) (*store.Record, error) {
	if requestID == "" {
		return nil, &contracts.ValidationError{Field: "request_id", Reason: "required"}
	}
	release, err := s.locker.Acquire(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("workflow: lock %s: %w", requestID, err)
	}
	defer release()

	rec, err := s.repo.Load(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("workflow: load %s: %w", requestID, err)
	}
	if err := rec.Audit.Verify(); err != nil {
		s.logger.ErrorContext(ctx, "audit chain broken; refusing mutation", "request_id", requestID, "error", err)
		return nil, fmt.Errorf("workflow: %s: %w", requestID, err)
	}
	rec.Audit.SetClock(s.clock)
	before := rec.Audit.Len()

	if err := fn(rec); err != nil {
		return nil, err
	}

	rec.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("workflow: save %s: %w", requestID, err)
	}
	s.emit(ctx, requestID, rec.Audit.Since(before))
	return rec, nil
}

func (s *Service) emit(ctx context.Context, requestID string, entries []audit.Entry) {
	for _, e := range entries {
		for _, sink := range s.sinks {
			if err := sink.Emit(ctx, requestID, e); err != nil {
				s.logger.WarnContext(ctx, "audit sink failed", "request_id", requestID, "sequence", e.Sequence, "error", err)
			}
		}
	}
}

// ensureOpen rejects writes to a finalized request.
func ensureOpen(rec *store.Record, to string) error {
	if rec.Finalized() || rec.Request.Status.Terminal() {
		return &contracts.InvalidTransitionError{Entity: "request " + rec.ID(), From: string(rec.Request.Status), To: to}
	}
	return nil
}

func requireActor(actor contracts.Actor) error {
	if actor.Name == "" {
		return &contracts.ValidationError{Field: "actor", Reason: "required"}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, contracts.ErrNotFound)
}
