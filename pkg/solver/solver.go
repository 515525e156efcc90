package solver

import (
	"context"
	"math/rand"
	"sort"
	"time"
)

// Status reports the outcome of a solve.
type Status string

const (
	StatusOptimal    Status = "OPTIMAL"
	StatusFeasible   Status = "FEASIBLE"
	StatusInfeasible Status = "INFEASIBLE"
	StatusNoSolution Status = "NO_SOLUTION"
)

// Var identifies a boolean decision variable within a model.
type Var int

// Model collects boolean variables, linear sum constraints and a linear
// objective. It is the narrow seam behind which any CP/ILP engine can sit.
type Model struct {
	names       []string
	objective   []int64
	constraints []constraint
	byVar       [][]int
}

type constraint struct {
	vars []Var
	min  int
	max  int
}

// Options bound a solve.
type Options struct {
	Deadline time.Duration
	Seed     int64
}

// Result carries the best assignment found.
type Result struct {
	Status    Status
	Values    []bool
	Objective int64
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// NewBoolVar adds a boolean variable with an objective coefficient of zero.
func (m *Model) NewBoolVar(name string) Var {
	m.names = append(m.names, name)
	m.objective = append(m.objective, 0)
	m.byVar = append(m.byVar, nil)
	return Var(len(m.names) - 1)
}

// VarCount returns the number of variables in the model.
func (m *Model) VarCount() int {
	return len(m.names)
}

// Name returns the label given to a variable.
func (m *Model) Name(v Var) string {
	return m.names[v]
}

// SetObjective adds weight to a variable's objective coefficient.
func (m *Model) SetObjective(v Var, weight int64) {
	m.objective[v] += weight
}

// AddSumRange constrains the number of true variables in vars to [min, max].
func (m *Model) AddSumRange(vars []Var, min, max int) {
	idx := len(m.constraints)
	m.constraints = append(m.constraints, constraint{vars: vars, min: min, max: max})
	for _, v := range vars {
		m.byVar[v] = append(m.byVar[v], idx)
	}
}

// AddExactlyOne requires exactly one of vars to be true.
func (m *Model) AddExactlyOne(vars []Var) {
	m.AddSumRange(vars, 1, 1)
}

// AddAtMostOne allows at most one of vars to be true.
func (m *Model) AddAtMostOne(vars []Var) {
	m.AddSumRange(vars, 0, 1)
}

// Maximize runs a deterministic branch-and-bound search for the assignment
// maximizing the objective. The deadline is a hard wall-clock bound: on
// expiry the best incumbent found so far is returned as FEASIBLE, or
// NO_SOLUTION when no complete assignment was reached. Identical model and
// seed always produce identical results.
func (m *Model) Maximize(ctx context.Context, opts Options) Result {
	n := len(m.names)
	if n == 0 {
		return Result{Status: StatusOptimal, Values: nil, Objective: 0}
	}
	if opts.Deadline <= 0 {
		opts.Deadline = 10 * time.Second
	}
	if ctx.Err() != nil {
		return Result{Status: StatusNoSolution}
	}

	s := &search{
		model:     m,
		order:     m.branchOrder(opts.Seed),
		values:    make([]bool, n),
		trueCount: make([]int, len(m.constraints)),
		undecided: make([]int, len(m.constraints)),
		deadline:  time.Now().Add(opts.Deadline),
		ctx:       ctx,
	}
	for i, c := range m.constraints {
		s.undecided[i] = len(c.vars)
		if len(c.vars) < c.min {
			return Result{Status: StatusInfeasible}
		}
	}
	// Suffix sums of positive coefficients in branch order, for bounding.
	s.positiveTail = make([]int64, n+1)
	for i := n - 1; i >= 0; i-- {
		coef := m.objective[s.order[i]]
		s.positiveTail[i] = s.positiveTail[i+1]
		if coef > 0 {
			s.positiveTail[i] += coef
		}
	}

	complete := s.run(0, 0)

	if !s.hasBest {
		if complete {
			return Result{Status: StatusInfeasible}
		}
		return Result{Status: StatusNoSolution}
	}
	status := StatusFeasible
	if complete {
		status = StatusOptimal
	}
	return Result{Status: status, Values: s.best, Objective: s.bestObjective}
}

// branchOrder sorts variables by descending objective coefficient so the
// greedy-best branch is explored first; the seed breaks ties so equal-weight
// runs stay reproducible without a fixed bias.
func (m *Model) branchOrder(seed int64) []Var {
	order := make([]Var, len(m.names))
	tie := make([]int64, len(m.names))
	rng := rand.New(rand.NewSource(seed))
	for i := range order {
		order[i] = Var(i)
		tie[i] = rng.Int63()
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := m.objective[order[a]], m.objective[order[b]]
		if ca != cb {
			return ca > cb
		}
		return tie[order[a]] < tie[order[b]]
	})
	return order
}

type search struct {
	model        *Model
	order        []Var
	values       []bool
	trueCount    []int
	undecided    []int
	positiveTail []int64

	best          []bool
	bestObjective int64
	hasBest       bool

	deadline time.Time
	ctx      context.Context
	nodes    int
	expired  bool
}

const deadlineCheckInterval = 2048

// run explores assignments from position depth in branch order. It returns
// true when its subtree was searched exhaustively.
func (s *search) run(depth int, objective int64) bool {
	s.nodes++
	if s.nodes%deadlineCheckInterval == 0 {
		if time.Now().After(s.deadline) || s.ctx.Err() != nil {
			s.expired = true
		}
	}
	if s.expired {
		return false
	}
	if s.hasBest && objective+s.positiveTail[depth] <= s.bestObjective {
		return true
	}
	if depth == len(s.order) {
		if !s.hasBest || objective > s.bestObjective {
			s.best = append(s.best[:0], s.values...)
			s.bestObjective = objective
			s.hasBest = true
		}
		return true
	}

	v := s.order[depth]
	complete := true
	// Try the branch that helps the objective first.
	branches := [2]bool{true, false}
	if s.model.objective[v] < 0 {
		branches = [2]bool{false, true}
	}
	for _, value := range branches {
		if !s.assign(v, value) {
			continue
		}
		if !s.run(depth+1, objective+s.delta(v, value)) {
			complete = false
		}
		s.unassign(v, value)
		if s.expired {
			return false
		}
	}
	return complete
}

func (s *search) delta(v Var, value bool) int64 {
	if value {
		return s.model.objective[v]
	}
	return 0
}

// assign fixes v and propagates constraint counts, rejecting assignments
// that make any constraint unsatisfiable.
func (s *search) assign(v Var, value bool) bool {
	for _, ci := range s.model.byVar[v] {
		c := s.model.constraints[ci]
		count := s.trueCount[ci]
		remaining := s.undecided[ci] - 1
		if value {
			count++
		}
		if count > c.max {
			return false
		}
		if count+remaining < c.min {
			return false
		}
	}
	s.values[v] = value
	for _, ci := range s.model.byVar[v] {
		if value {
			s.trueCount[ci]++
		}
		s.undecided[ci]--
	}
	return true
}

func (s *search) unassign(v Var, value bool) {
	for _, ci := range s.model.byVar[v] {
		if value {
			s.trueCount[ci]--
		}
		s.undecided[ci]++
	}
}
