package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxTraversalDepth bounds every walk of the manager graph. Real org charts
// are shallow; hitting this cap means the data is corrupted, and the walk
// stops with an integrity error instead of running away.
const MaxTraversalDepth = 10

// SubordinatesOf computes the transitive closure of reports below code,
// breadth-first, depth 1 for direct reports. Each node carries one manager
// pointer, so any revisit during the reverse walk proves a cycle: the branch
// is not expanded further and the (otherwise complete) closure is returned
// together with an integrity error.
func (e *Engine) SubordinatesOf(ctx context.Context, code string) ([]Subordinate, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: org code is required", ErrInvalidInput)
	}

	visited := map[string]struct{}{code: {}}
	var (
		subs     []Subordinate
		walkErr  error
		frontier = []string{code}
	)
	for depth := 1; len(frontier) > 0; depth++ {
		if depth > MaxTraversalDepth {
			if walkErr == nil {
				walkErr = depthError(code)
			}
			break
		}
		var next []string
		for _, cur := range frontier {
			reports, err := e.store.DirectReports(ctx, cur)
			if err != nil {
				return nil, err
			}
			for _, rc := range reports {
				if _, seen := visited[rc]; seen {
					if walkErr == nil {
						walkErr = cycleError(rc)
					}
					continue
				}
				visited[rc] = struct{}{}
				subs = append(subs, Subordinate{Code: rc, Depth: depth})
				next = append(next, rc)
			}
		}
		frontier = next
	}
	return subs, walkErr
}

// IsSubordinateOf reports whether target sits anywhere below ancestor. It
// walks upward through manager pointers, which touches at most one row per
// level instead of expanding the whole closure.
func (e *Engine) IsSubordinateOf(ctx context.Context, targetCode, ancestorCode string) (bool, error) {
	targetCode = strings.TrimSpace(targetCode)
	ancestorCode = strings.TrimSpace(ancestorCode)
	if targetCode == "" || ancestorCode == "" {
		return false, nil
	}
	if targetCode == ancestorCode {
		// A node is never its own subordinate.
		return false, nil
	}

	visited := map[string]struct{}{targetCode: {}}
	cur := targetCode
	for depth := 1; depth <= MaxTraversalDepth; depth++ {
		node, err := e.store.OrgNodeByCode(ctx, cur)
		if errors.Is(err, ErrNotFound) {
			if cur == targetCode {
				// Unknown target: deny, not an error.
				return false, nil
			}
			return false, fmt.Errorf("%w: org node %s references missing manager %s", ErrIntegrity, targetCode, cur)
		}
		if err != nil {
			return false, err
		}
		if node.ManagerCode == nil {
			return false, nil
		}
		up := *node.ManagerCode
		if up == ancestorCode {
			return true, nil
		}
		if _, seen := visited[up]; seen {
			return false, cycleError(up)
		}
		visited[up] = struct{}{}
		cur = up
	}
	return false, depthError(targetCode)
}

// DepthLabel classifies a raw closure depth for display. Pure view concern;
// no decision rule branches on it.
func DepthLabel(depth int) string {
	switch {
	case depth <= 0:
		return ""
	case depth == 1:
		return "Direct"
	case depth == 2:
		return "Indirect 1"
	default:
		return "Indirect 2+"
	}
}
