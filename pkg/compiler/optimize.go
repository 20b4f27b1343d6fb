package compiler

import (
	"io"
	"log/slog"
	"math"
)

// divEpsilon is how close to zero a constant divisor may get before the
// division is folded to zero instead.
const divEpsilon = 1e-12

// OptimizeStats counts what an optimizer run did.
type OptimizeStats struct {
	Passes     int
	Folds      int
	Simplified int
	DivByZero  int
}

// Optimizer rewrites a tree in place: constant folding followed by
// neutral-element elimination, repeated until a full pass changes nothing.
type Optimizer struct {
	tree      *Tree
	syms      *SymbolTable
	log       *slog.Logger
	maxPasses int
	stats     OptimizeStats
}

func newOptimizer(t *Tree, syms *SymbolTable, log *slog.Logger, maxPasses int) *Optimizer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Optimizer{tree: t, syms: syms, log: log, maxPasses: maxPasses}
}

// Optimize runs both rewrite passes to a fixed point and returns the new
// root. maxPasses of 0 means no limit.
func Optimize(t *Tree, syms *SymbolTable, log *slog.Logger, maxPasses int) (NodeID, OptimizeStats) {
	o := newOptimizer(t, syms, log, maxPasses)
	o.run()
	return t.Root, o.stats
}

func (o *Optimizer) run() {
	for o.maxPasses <= 0 || o.stats.Passes < o.maxPasses {
		o.stats.Passes++
		folded := o.fold(o.tree.Root)
		simplified := o.simplify(o.tree.Root)
		o.log.Debug("optimizer pass",
			"pass", o.stats.Passes,
			"folded", folded,
			"simplified", simplified,
		)
		if !folded && !simplified {
			return
		}
	}
	o.log.Warn("optimizer stopped before reaching a fixed point", "passes", o.stats.Passes)
}

// fold evaluates, bottom-up, every arithmetic node whose operands are both
// literals, unless the result is NaN. It reports whether anything changed.
func (o *Optimizer) fold(id NodeID) bool {
	if id == NoNode {
		return false
	}
	n := o.tree.Node(id)
	if n.Kind != OperationNode {
		return false
	}
	changed := o.fold(n.Left)
	changed = o.fold(n.Right) || changed

	n = o.tree.Node(id)
	var v float64
	switch {
	case n.Op == OpSqrt && o.tree.isLiteral(n.Right):
		v = math.Sqrt(o.tree.Node(n.Right).Value)
	case isArithmetic(n.Op) && o.tree.isLiteral(n.Left) && o.tree.isLiteral(n.Right):
		v = o.evaluate(n.Op, o.tree.Node(n.Left).Value, o.tree.Node(n.Right).Value)
	default:
		return changed
	}
	// NaN has no literal spelling that reads back as a number, so the
	// expression stays for the machine to evaluate.
	if math.IsNaN(v) {
		return changed
	}
	o.tree.makeNumber(id, v)
	o.stats.Folds++
	return true
}

func isArithmetic(op Op) bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpPow:
		return true
	}
	return false
}

func (o *Optimizer) evaluate(op Op, l, r float64) float64 {
	switch op {
	case OpAdd:
		return l + r
	case OpSub:
		return l - r
	case OpMul:
		return l * r
	case OpDiv:
		if math.Abs(r) < divEpsilon {
			o.stats.DivByZero++
			o.log.Warn("division by zero in constant expression, folding to 0", "dividend", l)
			return 0
		}
		return l / r
	case OpPow:
		return math.Pow(l, r)
	}
	return 0
}

// simplify removes neutral and annihilating operands bottom-up. It reports
// whether anything changed.
func (o *Optimizer) simplify(id NodeID) bool {
	if id == NoNode {
		return false
	}
	n := o.tree.Node(id)
	if n.Kind != OperationNode {
		return false
	}
	changed := o.simplify(n.Left)
	changed = o.simplify(n.Right) || changed
	if o.simplifyNode(id) {
		o.stats.Simplified++
		return true
	}
	return changed
}

// simplifyNode applies the first matching identity at id.
func (o *Optimizer) simplifyNode(id NodeID) bool {
	t := o.tree
	n := t.Node(id)
	l, r := n.Left, n.Right
	if l == NoNode || r == NoNode {
		return false
	}

	switch n.Op {
	case OpAdd:
		switch {
		case t.IsNumber(r, 0):
			o.hoist(id, l)
		case t.IsNumber(l, 0):
			o.hoist(id, r)
		default:
			return false
		}
	case OpSub:
		switch {
		case t.IsNumber(r, 0):
			o.hoist(id, l)
		case t.IsNumber(l, 0):
			// 0 - x becomes (-1) * x, reusing the node and its zero literal.
			n.Op = OpMul
			t.Node(l).Value = -1
		default:
			return false
		}
	case OpMul:
		switch {
		case t.IsNumber(l, 0) || t.IsNumber(r, 0):
			t.makeNumber(id, 0)
		case t.IsNumber(r, 1):
			o.hoist(id, l)
		case t.IsNumber(l, 1):
			o.hoist(id, r)
		default:
			return false
		}
	case OpDiv:
		switch {
		case t.IsNumber(r, 1):
			o.hoist(id, l)
		case t.IsNumber(l, 0):
			t.makeNumber(id, 0)
		default:
			return false
		}
	case OpPow:
		switch {
		case t.IsNumber(r, 0):
			t.makeNumber(id, 1)
		case t.IsNumber(r, 1):
			o.hoist(id, l)
		case t.IsNumber(l, 0):
			t.makeNumber(id, 0)
		default:
			return false
		}
	default:
		return false
	}
	return true
}

// hoist replaces id with its child keep.
func (o *Optimizer) hoist(id, keep NodeID) {
	o.tree.detach(id)
	o.tree.Replace(id, keep)
}
