// Package filter drops scraped entries matching configured expressions
// before they reach the merge engine.
package filter

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/stripfeed/stripfeed/internal/config"
	"github.com/stripfeed/stripfeed/internal/core"
)

type Rule struct {
	name    string
	program *vm.Program
}

// Compile builds the drop rules for one comic. Invalid expressions are
// configuration errors and fail loudly at startup, not per entry.
func Compile(rules []config.FilterRule) ([]Rule, error) {
	compiled := make([]Rule, 0, len(rules))
	for _, cfg := range rules {
		program, err := expr.Compile(cfg.Rule, expr.Env(map[string]interface{}{}))
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", cfg.Name, err)
		}
		compiled = append(compiled, Rule{name: cfg.Name, program: program})
	}
	return compiled, nil
}

// Apply returns the entries that survive every rule. Evaluation errors and
// non-boolean results fail open: the entry is kept and the problem logged,
// since dropping history over a bad rule is the worse failure.
func Apply(ctx context.Context, rules []Rule, entries []core.Entry) []core.Entry {
	if len(rules) == 0 {
		return entries
	}
	logger := core.LoggerFromContext(ctx)

	kept := make([]core.Entry, 0, len(entries))
	for _, entry := range entries {
		env := ruleEnv(entry)
		drop := false
		for _, rule := range rules {
			result, err := expr.Run(rule.program, env)
			if err != nil {
				logger.Warn("filter rule failed, keeping entry", "rule", rule.name, "entry", entry.URL, "error", err)
				continue
			}
			matched, ok := result.(bool)
			if !ok {
				logger.Warn("filter rule did not return bool, keeping entry", "rule", rule.name, "entry", entry.URL)
				continue
			}
			if matched {
				logger.Debug("filter rule dropped entry", "rule", rule.name, "entry", entry.URL)
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, entry)
		}
	}
	return kept
}

func ruleEnv(entry core.Entry) map[string]interface{} {
	return map[string]interface{}{
		"title": map[string]interface{}{
			"value":  entry.Title,
			"length": len(entry.Title),
		},
		"url": entry.URL,
		"images": map[string]interface{}{
			"count": len(entry.Images),
		},
		"published": entry.Published,
	}
}
