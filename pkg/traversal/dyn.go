package traversal

import (
	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/herrors"
	"github.com/helixdb/helix-core/pkg/vector"
)

// Stage is the boxed, fast-path-compatible wrapper over *Pipeline: a
// reflection-oriented dispatcher (e.g. an MCP tool call) names an
// adapter and passes untyped arguments instead of calling a Go method
// directly.
type Stage interface {
	// Values drains the stage, returning its accumulated items or the
	// first error encountered anywhere in the chain.
	Values() ([]TraversalValue, error)
	// Apply looks up name among the known adapters and
	// applies it with args, returning the next stage in the chain.
	Apply(name string, args ...any) (Stage, error)
}

// Dyn adapts *Pipeline to Stage.
type Dyn struct{ p *Pipeline }

// NewDyn boxes an already-built pipeline for dynamic dispatch.
func NewDyn(p *Pipeline) Dyn { return Dyn{p: p} }

func (d Dyn) Values() ([]TraversalValue, error) { return d.p.Ok() }

func (d Dyn) Apply(name string, args ...any) (Stage, error) {
	next, err := dispatch(d.p, name, args...)
	if err != nil {
		return nil, err
	}
	return Dyn{p: next}, nil
}

// dispatch switches on an adapter's string name, type-asserting args in
// the order the corresponding *Pipeline method expects them. It covers
// the adapters that take only scalar/string arguments — adapters needing
// closures (FilterRef, Map, Intersect) aren't reachable through this
// untyped surface and are reported as unsupported.
func dispatch(p *Pipeline, name string, args ...any) (*Pipeline, error) {
	switch name {
	case "out_node":
		return p.OutNode(str(args, 0)), nil
	case "in_node":
		return p.InNode(str(args, 0)), nil
	case "out_vec":
		return p.OutVec(str(args, 0), boolArg(args, 1)), nil
	case "in_vec":
		return p.InVec(str(args, 0), boolArg(args, 1)), nil
	case "out_e":
		return p.OutE(str(args, 0)), nil
	case "in_e":
		return p.InE(str(args, 0)), nil
	case "from_n":
		return p.FromN(), nil
	case "to_n":
		return p.ToN(), nil
	case "from_v":
		return p.FromV(), nil
	case "to_v":
		return p.ToV(), nil
	case "range":
		return p.Range(intArg(args, 0), intArg(args, 1)), nil
	case "dedup":
		return p.Dedup(), nil
	case "order_by_asc":
		return p.OrderByAsc(str(args, 0)), nil
	case "order_by_desc":
		return p.OrderByDesc(str(args, 0)), nil
	case "group_by":
		return p.GroupBy(strSlice(args, 0), boolArg(args, 1)), nil
	case "aggregate_by":
		return p.AggregateBy(strSlice(args, 0), boolArg(args, 1)), nil
	case "count":
		return p.Count(), nil
	case "update":
		return p.Update(overridesArg(args, 0)), nil
	case "drop":
		return p.Drop(), nil
	case "brute_force_search_v":
		query, _ := args[0].([]float64)
		return p.BruteForceSearchV(query, intArg(args, 1), vector.Metric(intArg(args, 2))), nil
	default:
		return nil, herrors.New(herrors.Internal, "unknown or unsupported adapter: "+name)
	}
}

func str(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

func strSlice(args []any, i int) []string {
	if i >= len(args) {
		return nil
	}
	s, _ := args[i].([]string)
	return s
}

func boolArg(args []any, i int) bool {
	if i >= len(args) {
		return false
	}
	b, _ := args[i].(bool)
	return b
}

func intArg(args []any, i int) int {
	if i >= len(args) {
		return 0
	}
	n, _ := args[i].(int)
	return n
}

func overridesArg(args []any, i int) map[string]codec.Value {
	if i >= len(args) {
		return nil
	}
	m, _ := args[i].(map[string]codec.Value)
	return m
}
