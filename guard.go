package ambient

import (
	"fmt"
	"time"
)

// GuardContext carries the inputs a guard expression evaluates against.
// Snapshot holds ambient values keyed by key name, as produced by
// Store.Snapshot, so expressions observe a detached point-in-time view.
type GuardContext struct {
	Snapshot map[string]any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	ScopeID  string
}

func (ctx GuardContext) withDefaultNow() GuardContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx GuardContext) withDefaultMaps() GuardContext {
	if ctx.Snapshot == nil {
		ctx.Snapshot = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx GuardContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx GuardContext) scopeLabel() string {
	if ctx.ScopeID != "" {
		return ctx.ScopeID
	}
	return "unknown"
}

func (ctx GuardContext) scopeBinding() map[string]any {
	if ctx.ScopeID == "" {
		return nil
	}
	return map[string]any{"id": ctx.ScopeID}
}

// Evaluator executes guard expressions against a guard context.
type Evaluator interface {
	Evaluate(ctx GuardContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx GuardContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// Guard evaluates a predicate expression against the ambient scope, giving
// middleware an admission or sampling decision without scope plumbing.
type Guard struct {
	expr string
	cfg  guardConfig
}

type guardConfig struct {
	evaluator Evaluator
	cache     ProgramCache
	functions *FunctionRegistry
	logger    GuardLogger
	args      map[string]any
}

// GuardOption configures a Guard.
type GuardOption func(*guardConfig)

// GuardWithEvaluator selects the engine running the guard expression.
func GuardWithEvaluator(e Evaluator) GuardOption {
	return func(cfg *guardConfig) {
		cfg.evaluator = e
	}
}

// GuardWithProgramCache registers a compiled-program cache on the guard.
func GuardWithProgramCache(cache ProgramCache) GuardOption {
	return func(cfg *guardConfig) {
		cfg.cache = cache
	}
}

// GuardWithFunctions exposes registry's functions to the expression.
func GuardWithFunctions(registry *FunctionRegistry) GuardOption {
	return func(cfg *guardConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// GuardWithLogger records guard evaluations on logger.
func GuardWithLogger(logger GuardLogger) GuardOption {
	return func(cfg *guardConfig) {
		if logger == nil {
			cfg.logger = noopGuardLogger{}
			return
		}
		cfg.logger = logger
	}
}

// GuardWithArgs attaches static arguments visible to the expression as args.
func GuardWithArgs(args map[string]any) GuardOption {
	return func(cfg *guardConfig) {
		if len(args) == 0 {
			return
		}
		cfg.args = make(map[string]any, len(args))
		for key, value := range args {
			cfg.args[key] = value
		}
	}
}

// NewGuard validates expr and constructs a Guard. The expr-lang engine is the
// default when no evaluator is configured.
func NewGuard(expr string, opts ...GuardOption) (*Guard, error) {
	if expr == "" {
		return nil, fmt.Errorf("ambient: guard expression must not be empty")
	}
	cfg := guardConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Guard{expr: expr, cfg: cfg}, nil
}

// Expression returns the guard's expression source.
func (g *Guard) Expression() string {
	return g.expr
}

// Evaluate runs the guard against the calling goroutine's scope. Outside any
// scope it fails with an error wrapping ErrOutsideScope.
func (g *Guard) Evaluate() (any, error) {
	store, ok := currentStore()
	if !ok {
		return nil, fmt.Errorf("ambient: guard %q: %w", g.expr, ErrOutsideScope)
	}
	return g.EvaluateIn(GuardContext{
		Snapshot: store.Snapshot(),
		ScopeID:  store.ID(),
	})
}

// EvaluateIn runs the guard against an explicit context, for callers that
// captured a snapshot earlier.
func (g *Guard) EvaluateIn(ctx GuardContext) (any, error) {
	evaluator := g.resolveEvaluator()
	ctx = ctx.withDefaultNow().withDefaultMaps()
	for key, value := range g.cfg.args {
		if _, taken := ctx.Args[key]; !taken {
			ctx.Args[key] = value
		}
	}
	engine := guardEngineName(evaluator)
	start := time.Now()
	value, err := evaluator.Evaluate(ctx, g.expr)
	duration := time.Since(start)
	err = wrapGuardEvaluationError("", g.expr, ctx.scopeLabel(), err)
	g.logger().LogGuard(GuardLogEvent{
		Engine:   engine,
		Expr:     g.expr,
		ScopeID:  ctx.scopeLabel(),
		Duration: duration,
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Allow evaluates the guard and coerces the result to a boolean decision.
func (g *Guard) Allow() (bool, error) {
	value, err := g.Evaluate()
	if err != nil {
		return false, err
	}
	allowed, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("ambient: guard %q returned %T, want bool", g.expr, value)
	}
	return allowed, nil
}

func (g *Guard) resolveEvaluator() Evaluator {
	if g.cfg.evaluator != nil {
		return g.cfg.evaluator
	}
	var exprOpts []ExprEvaluatorOption
	if g.cfg.cache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(g.cfg.cache))
	}
	if g.cfg.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(g.cfg.functions))
	}
	g.cfg.evaluator = NewExprEvaluator(exprOpts...)
	return g.cfg.evaluator
}

func (g *Guard) logger() GuardLogger {
	if g.cfg.logger != nil {
		return g.cfg.logger
	}
	return noopGuardLogger{}
}

func guardEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*ambient.exprEvaluator":
		return "expr"
	case "*ambient.celEvaluator":
		return "cel"
	case "*ambient.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
