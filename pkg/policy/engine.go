package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// BuiltinVersion is reported when no organization rule pack is loaded.
const BuiltinVersion = "1.0.0"

// ConditionRule adds a condition when its CEL predicate holds. Available
// variables: trust_index (int), risk_tier (string), pass_rate (double),
// failed_tests (int), archetype (string), environment (string).
type ConditionRule struct {
	ID       string                      `json:"id" yaml:"id"`
	Text     string                      `json:"text" yaml:"text"`
	Category contracts.ConditionCategory `json:"category" yaml:"category"`
	Required bool                        `json:"required" yaml:"required"`
	When     string                      `json:"when" yaml:"when"`
}

// RulePack is a versioned set of organization rules.
type RulePack struct {
	Version string          `json:"version" yaml:"version"`
	Rules   []ConditionRule `json:"rules" yaml:"rules"`
}

// Facts are the inputs rules are evaluated against.
type Facts struct {
	TrustIndex  int
	RiskTier    contracts.RiskTier
	PassRate    float64
	FailedTests int
	Archetype   string
	Environment string
}

// FactsFromRequest extracts rule inputs from a request.
func FactsFromRequest(r *contracts.AuthorizationRequest) Facts {
	return Facts{
		TrustIndex:  r.OverallTrustIndex,
		RiskTier:    r.RiskTier,
		PassRate:    r.PassRate,
		FailedTests: r.FailedTests,
		Archetype:   r.Archetype,
		Environment: r.DeploymentEnvironment,
	}
}

type compiledRule struct {
	rule ConditionRule
	prg  cel.Program
}

// Engine combines the built-in thresholds with organization rules. Organization
// rules only add conditions; they never remove or relax built-in ones.
type Engine struct {
	mu      sync.RWMutex
	env     *cel.Env
	version *semver.Version
	rules   []compiledRule
	logger  *slog.Logger
}

// NewEngine creates an engine with only the built-in policy.
func NewEngine(logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	env, err := cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("trust_index", types.IntType),
			decls.NewVariable("risk_tier", types.StringType),
			decls.NewVariable("pass_rate", types.DoubleType),
			decls.NewVariable("failed_tests", types.IntType),
			decls.NewVariable("archetype", types.StringType),
			decls.NewVariable("environment", types.StringType),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: failed to create CEL env: %w", err)
	}
	return &Engine{
		env:     env,
		version: semver.MustParse(BuiltinVersion),
		logger:  logger.With("component", "policy"),
	}, nil
}

// Load compiles pack and replaces the active rules. A pack older than the
// active one is refused. Nothing changes when any rule fails to compile.
func (e *Engine) Load(pack RulePack) error {
	v, err := semver.NewVersion(pack.Version)
	if err != nil {
		return &contracts.ValidationError{Field: "version", Reason: fmt.Sprintf("invalid semver %q: %v", pack.Version, err)}
	}

	seen := make(map[string]bool, len(pack.Rules))
	compiled := make([]compiledRule, 0, len(pack.Rules))
	for _, r := range pack.Rules {
		if r.ID == "" || r.Text == "" || r.When == "" {
			return &contracts.ValidationError{Field: "rules", Reason: fmt.Sprintf("rule %q requires id, text and when", r.ID)}
		}
		if isBuiltin(r.ID) || seen[r.ID] {
			return &contracts.ValidationError{Field: "rules", Reason: fmt.Sprintf("duplicate rule id %q", r.ID)}
		}
		seen[r.ID] = true
		if r.Category == "" {
			r.Category = contracts.CategoryCustom
		}

		ast, issues := e.env.Compile(r.When)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("policy: rule %s compilation failed: %w", r.ID, issues.Err())
		}
		if !ast.OutputType().IsExactType(types.BoolType) {
			return fmt.Errorf("policy: rule %s must evaluate to bool, got %s", r.ID, ast.OutputType())
		}
		prg, err := e.env.Program(ast)
		if err != nil {
			return fmt.Errorf("policy: rule %s program construction failed: %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{rule: r, prg: prg})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if v.LessThan(e.version) {
		return &contracts.PreconditionError{Reason: fmt.Sprintf("rule pack %s is older than active %s", v, e.version)}
	}
	e.version = v
	e.rules = compiled
	e.logger.Info("policy rule pack loaded", "version", v.String(), "rules", len(compiled))
	return nil
}

// Version returns the active policy version.
func (e *Engine) Version() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version.String()
}

// Recommend is RecommendDecision over f.
func (e *Engine) Recommend(f Facts) contracts.DeploymentDecision {
	return RecommendDecision(f.TrustIndex, f.RiskTier, f.PassRate)
}

// Conditions returns the built-in conditions followed by every matching
// organization rule. A rule evaluation error fails the whole call.
func (e *Engine) Conditions(ctx context.Context, f Facts) ([]contracts.DeploymentCondition, error) {
	out := GenerateConditions(f.TrustIndex, f.RiskTier, f.FailedTests)

	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.rules) == 0 {
		return out, nil
	}

	input := map[string]any{
		"trust_index":  int64(f.TrustIndex),
		"risk_tier":    string(f.RiskTier),
		"pass_rate":    f.PassRate,
		"failed_tests": int64(f.FailedTests),
		"archetype":    f.Archetype,
		"environment":  f.Environment,
	}
	for _, cr := range e.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		val, _, err := cr.prg.ContextEval(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("policy: rule %s evaluation failed: %w", cr.rule.ID, err)
		}
		matched, ok := val.Value().(bool)
		if !ok {
			return nil, fmt.Errorf("policy: rule %s returned non-bool %T", cr.rule.ID, val.Value())
		}
		if matched {
			out = append(out, contracts.DeploymentCondition{
				ID:       cr.rule.ID,
				Text:     cr.rule.Text,
				Category: cr.rule.Category,
				Required: cr.rule.Required,
			})
		}
	}
	return out, nil
}
