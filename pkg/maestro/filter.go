package maestro

import (
	"fmt"
	"regexp"
	"strings"
)

// regexFlags are applied to every textRegex/idRegex match: case
// insensitive, "." matches newline, and ^/$ match at line boundaries.
const regexFlags = "(?ism)"

func compileRegex(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(regexFlags + pattern)
}

// nodePredicate tests a single candidate node.
type nodePredicate func(n *Node) bool

// filter is a single named constraint. resolve binds the constraint against
// the document root before candidates are tested, so relative constraints
// (below, above, ...) locate their anchor once in the full tree rather than
// re-running selector resolution inside each candidate's subtree.
type filter struct {
	description string
	resolve     func(root *Node) nodePredicate
}

// static wraps a predicate that needs no root-time resolution.
func static(pred nodePredicate) func(root *Node) nodePredicate {
	return func(*Node) nodePredicate { return pred }
}

func matchNone(*Node) bool { return false }

// compiledSelector is the result of the Selector Filter Builder: a
// human-readable description and the composite predicate.
type compiledSelector struct {
	description string
	match       func(root *Node) []*Node
	index       string
}

// BuildFilter compiles an ElementSelector into a description and a function
// that, given a hierarchy root, returns every node matching all AND-combined
// constraints in document order.
func BuildFilter(sel ElementSelector) (*compiledSelector, error) {
	var filters []filter
	var descriptions []string

	if sel.TextRegex != "" {
		re, err := compileRegex(sel.TextRegex)
		if err != nil {
			return nil, InvalidCommandError(fmt.Sprintf("invalid textRegex %q: %v", sel.TextRegex, err))
		}
		desc := fmt.Sprintf("text matches %q", sel.TextRegex)
		filters = append(filters, filter{
			description: desc,
			resolve: static(deepestOnly(func(n *Node) bool {
				return re.MatchString(n.Attrs["text"])
			})),
		})
		descriptions = append(descriptions, desc)
	}

	if sel.IDRegex != "" {
		re, err := compileRegex(sel.IDRegex)
		if err != nil {
			return nil, InvalidCommandError(fmt.Sprintf("invalid idRegex %q: %v", sel.IDRegex, err))
		}
		desc := fmt.Sprintf("id matches %q", sel.IDRegex)
		filters = append(filters, filter{
			description: desc,
			resolve: static(deepestOnly(func(n *Node) bool {
				return re.MatchString(n.Attrs["id"])
			})),
		})
		descriptions = append(descriptions, desc)
	}

	if sel.Width > 0 || sel.Height > 0 {
		w, h, tol := sel.Width, sel.Height, sel.Tolerance
		desc := fmt.Sprintf("size %dx%d ± %d", w, h, tol)
		filters = append(filters, filter{
			description: desc,
			resolve: static(deepestOnly(func(n *Node) bool {
				return withinTolerance(n.Bounds.Width, w, tol) && withinTolerance(n.Bounds.Height, h, tol)
			})),
		})
		descriptions = append(descriptions, desc)
	}

	for _, rel := range []struct {
		name string
		sub  *ElementSelector
		rank func(anchor, candidate Bounds) bool
	}{
		{"below", sel.Below, isBelow},
		{"above", sel.Above, isAbove},
		{"leftOf", sel.LeftOf, isLeftOf},
		{"rightOf", sel.RightOf, isRightOf},
	} {
		if rel.sub == nil {
			continue
		}
		rank := rel.rank
		subCompiled, err := BuildFilter(*rel.sub)
		if err != nil {
			return nil, err
		}
		desc := rel.name + " " + subCompiled.description
		filters = append(filters, filter{
			description: desc,
			// the anchor lives anywhere in the tree (typically a sibling of
			// the candidate), so it is resolved against the document root and
			// candidates are then filtered by position alone
			resolve: func(root *Node) nodePredicate {
				anchors := subCompiled.match(root)
				if len(anchors) == 0 {
					return matchNone
				}
				anchor := anchors[0]
				return func(n *Node) bool {
					return n != anchor && rank(anchor.Bounds, n.Bounds)
				}
			},
		})
		descriptions = append(descriptions, desc)
	}

	if sel.ContainsChild != nil {
		subCompiled, err := BuildFilter(*sel.ContainsChild)
		if err != nil {
			return nil, err
		}
		desc := "contains child " + subCompiled.description
		filters = append(filters, filter{
			description: desc,
			resolve: static(func(n *Node) bool {
				for _, child := range n.Children {
					if len(subCompiled.match(child)) > 0 {
						return true
					}
				}
				return false
			}),
		})
		descriptions = append(descriptions, desc)
	}

	if len(sel.ContainsDescendants) > 0 {
		var subFilters []*compiledSelector
		var descs []string
		for _, s := range sel.ContainsDescendants {
			cf, err := BuildFilter(*s)
			if err != nil {
				return nil, err
			}
			subFilters = append(subFilters, cf)
			descs = append(descs, cf.description)
		}
		desc := "contains descendants " + strings.Join(descs, " and ")
		filters = append(filters, filter{
			description: desc,
			resolve: static(func(n *Node) bool {
				for _, cf := range subFilters {
					if len(cf.match(n)) == 0 {
						return false
					}
				}
				return true
			}),
		})
		descriptions = append(descriptions, desc)
	}

	if len(sel.Traits) > 0 {
		traits := sel.Traits
		desc := "traits " + strings.Join(traits, ",")
		filters = append(filters, filter{
			description: desc,
			resolve: static(func(n *Node) bool {
				for _, t := range traits {
					if !hasTrait(n, t) {
						return false
					}
				}
				return true
			}),
		})
		descriptions = append(descriptions, desc)
	}

	for _, attr := range []struct {
		name string
		want *bool
	}{
		{"enabled", sel.Enabled},
		{"selected", sel.Selected},
		{"checked", sel.Checked},
		{"focused", sel.Focused},
	} {
		if attr.want == nil {
			continue
		}
		name, want := attr.name, *attr.want
		desc := fmt.Sprintf("%s=%v", name, want)
		filters = append(filters, filter{
			description: desc,
			resolve: static(func(n *Node) bool {
				return n.Attrs[name] == boolString(want)
			}),
		})
		descriptions = append(descriptions, desc)
	}

	return &compiledSelector{
		description: strings.Join(descriptions, ", "),
		index:       sel.Index,
		match: func(root *Node) []*Node {
			return allOf(root, filters)
		},
	}, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func withinTolerance(actual, want, tolerance int) bool {
	diff := actual - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// allOf resolves every filter against the document root, then walks the tree
// in document order collecting nodes that satisfy all of them.
func allOf(root *Node, filters []filter) []*Node {
	preds := make([]nodePredicate, len(filters))
	for i, f := range filters {
		preds[i] = f.resolve(root)
	}

	var out []*Node
	walk(root, func(n *Node) {
		for _, p := range preds {
			if !p(n) {
				return
			}
		}
		out = append(out, n)
	})
	return out
}

func walk(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children {
		walk(c, visit)
	}
}

// deepestOnly narrows pred to the deepest matching elements: a node
// qualifies only if none of its descendants also match, implementing the
// "deepest matching element" rule for text/id regex and size lookups.
func deepestOnly(pred nodePredicate) nodePredicate {
	return func(n *Node) bool {
		if !pred(n) {
			return false
		}
		for _, c := range n.Children {
			if subtreeContains(c, pred) {
				return false
			}
		}
		return true
	}
}

func subtreeContains(n *Node, pred nodePredicate) bool {
	found := false
	walk(n, func(m *Node) {
		if pred(m) {
			found = true
		}
	})
	return found
}

func hasTrait(n *Node, trait string) bool {
	for _, t := range n.Traits {
		if t == trait {
			return true
		}
	}
	return false
}

// Position combinators for the relative selectors: each takes the resolved
// anchor's bounds and a candidate's bounds.

func isBelow(anchor, c Bounds) bool   { return c.Y >= anchor.Y+anchor.Height }
func isAbove(anchor, c Bounds) bool   { return c.Y+c.Height <= anchor.Y }
func isLeftOf(anchor, c Bounds) bool  { return c.X+c.Width <= anchor.X }
func isRightOf(anchor, c Bounds) bool { return c.X >= anchor.X+anchor.Width }

// index selects the i-th match (0-based) from an ordered candidate set.
func index(matches []*Node, i int) *Node {
	if i < 0 || i >= len(matches) {
		return nil
	}
	return matches[i]
}

// clickableFirst returns the first candidate considered interactive
// ("clickable" trait, or a tappable widget class), falling back to the
// first candidate overall if none qualify.
func clickableFirst(matches []*Node) *Node {
	for _, n := range matches {
		if hasTrait(n, "clickable") || hasTrait(n, "button") {
			return n
		}
	}
	if len(matches) > 0 {
		return matches[0]
	}
	return nil
}
