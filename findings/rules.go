package findings

import (
	"github.com/warp/lease-audit/audit"
	"github.com/warp/lease-audit/canonical"
)

// =============================================================================
// RULE CONTEXT - All canonical datasets of one run
// =============================================================================

// Context is handed to every rule. It carries the run's normalized datasets
// plus a registry of additional named sources for future rules (lease terms,
// resident records) without interface changes.
type Context struct {
	RunID          string
	ExpectedDetail []canonical.ExpectedDetail
	ActualDetail   []canonical.ARTransaction
	Buckets        []audit.BucketResult

	extras map[string]any
}

// RegisterSource attaches an additional named dataset for rules to consume.
func (c *Context) RegisterSource(name string, data any) {
	if c.extras == nil {
		c.extras = make(map[string]any)
	}
	c.extras[name] = data
}

// Source returns a previously registered dataset, or nil.
func (c *Context) Source(name string) any {
	return c.extras[name]
}

// =============================================================================
// RULE - Pluggable evaluation strategy
// =============================================================================

// Rule is the strategy contract: any type evaluating a run context into
// findings. Rules are deterministic; evaluating the same context twice
// produces the same findings apart from generated ids.
type Rule interface {
	// RuleID uniquely identifies the rule (also used as the match-rule tag).
	RuleID() string

	// RuleName is the human-readable name.
	RuleName() string

	// Evaluate inspects the context and returns zero or more findings.
	Evaluate(ctx *Context) []Finding
}

// =============================================================================
// REGISTRY - Explicit rule collection, owned by the caller
// =============================================================================

// Registry holds the rules for one deployment. Constructed by the caller
// and passed where needed; no process-wide singleton.
type Registry struct {
	rules []Rule
}

func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{}
	for _, rule := range rules {
		r.Register(rule)
	}
	return r
}

// Register appends a rule. Evaluation order is registration order.
func (r *Registry) Register(rule Rule) {
	r.rules = append(r.rules, rule)
}

// Rules returns a copy of the registered rules.
func (r *Registry) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Rule returns the rule with the given id, or nil.
func (r *Registry) Rule(id string) Rule {
	for _, rule := range r.rules {
		if rule.RuleID() == id {
			return rule
		}
	}
	return nil
}

// EvaluateAll runs every registered rule and aggregates findings in
// registration order.
func (r *Registry) EvaluateAll(ctx *Context) []Finding {
	var all []Finding
	for _, rule := range r.rules {
		all = append(all, rule.Evaluate(ctx)...)
	}
	return all
}
