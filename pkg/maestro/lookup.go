package maestro

import (
	"context"
	"strconv"
	"time"
)

// adjustedTimeout implements the interaction-adjusted timeout formula
// (Testable Property 3): adjusted = max(0, base - (now - lastInteraction)).
// A long chain of fast, already-settled commands must not accumulate their
// full lookup timeouts.
func adjustedTimeout(base time.Duration, now, lastInteraction time.Time) time.Duration {
	elapsed := now.Sub(lastInteraction)
	adjusted := base - elapsed
	if adjusted < 0 {
		return 0
	}
	return adjusted
}

// lookupResult bundles a matched node with the hierarchy snapshot it was
// found in, for callers that need to report the snapshot on failure too.
type lookupResult struct {
	node      *Node
	hierarchy *Hierarchy
}

const lookupPollInterval = 200 * time.Millisecond

// findElement implements element lookup: resolve the effective
// timeout, compile the selector, and poll the driver's view hierarchy until
// it matches or the deadline passes.
func (o *Orchestra) findElement(ctx context.Context, sel ElementSelector, timeoutMs int) (*Node, *Hierarchy, error) {
	base := o.config.optionalLookupTimeout()
	if !sel.Optional {
		base = o.config.lookupTimeout()
	}
	if timeoutMs > 0 {
		base = time.Duration(timeoutMs) * time.Millisecond
	}

	now := time.Now()
	timeout := adjustedTimeout(base, now, o.lastInteraction)

	compiled, err := BuildFilter(sel)
	if err != nil {
		return nil, nil, err
	}

	deadline := now.Add(timeout)
	var lastHierarchy *Hierarchy

	for {
		hierarchy, err := o.driver.ViewHierarchy(ctx)
		if err != nil {
			return nil, nil, err
		}
		lastHierarchy = hierarchy

		if node := selectMatch(compiled, hierarchy.Root); node != nil {
			return node, hierarchy, nil
		}

		if time.Now().After(deadline) {
			return nil, lastHierarchy, ElementNotFoundError(compiled.description, hierarchy.Raw)
		}

		select {
		case <-ctx.Done():
			return nil, lastHierarchy, ctx.Err()
		case <-time.After(lookupPollInterval):
		}
	}
}

// selectMatch applies the index/clickable-first disambiguation rule: an
// explicit index selects by position in document order, otherwise the
// first clickable candidate wins (falling back to the first candidate).
func selectMatch(compiled *compiledSelector, root *Node) *Node {
	matches := compiled.match(root)
	if len(matches) == 0 {
		return nil
	}
	if compiled.index != "" {
		if i, err := strconv.Atoi(compiled.index); err == nil {
			return index(matches, i)
		}
	}
	return clickableFirst(matches)
}
