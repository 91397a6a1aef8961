package risk

import (
	"math"
	"sync"
)

const (
	_maxLossDefault      = 1e10
	_targetDefault       = 1e10
	_trailAfterDefault   = 1e3
	_trailPercentDefault = 1e3
)

// Params hold the per-account risk policy. MaxLoss and Target are taken by
// absolute value; the defaults are deliberately unreachable so an account
// configured without limits is never forced flat.
type Params struct {
	MaxLoss      float64 `yaml:"max_loss"`
	TrailAfter   float64 `yaml:"trail_after"`
	TrailPercent float64 `yaml:"trail_percent"`
	Target       float64 `yaml:"target"`
}

func (p Params) setup() Params {
	if p.MaxLoss == 0 {
		p.MaxLoss = _maxLossDefault
	}
	if p.Target == 0 {
		p.Target = _targetDefault
	}
	if p.TrailAfter == 0 {
		p.TrailAfter = _trailAfterDefault
	}
	if p.TrailPercent == 0 {
		p.TrailPercent = _trailPercentDefault
	}
	p.MaxLoss = math.Abs(p.MaxLoss)
	p.Target = math.Abs(p.Target)
	return p
}

// Verdict is the advisory output of one update. MustExitAll is re-derived on
// every call and never stored; only the trailing flag persists.
type Verdict struct {
	IsTrailing  bool `json:"is_trailing"`
	MustExitAll bool `json:"must_exit_all"`
}

// State is the per-account drawdown / trailing-stop machine. It has two
// states, normal and trailing, and trailing is absorbing: once entered it
// holds until process restart. A State is read by every concurrent dispatch
// touching its account, hence the mutex.
type State struct {
	mu sync.Mutex

	params   Params
	mtm      float64
	maxMTM   float64
	trailing bool
}

func NewState(p Params) *State {
	return &State{params: p.setup()}
}

// Update records the broker-reported mark-to-market and derives the verdict:
//  1. current mtm is set, the high-water mark is raised if exceeded;
//  2. trailing engages once the high-water mark clears MaxLoss*TrailAfter;
//  3. the account must be flattened on a hard stop-loss breach, on target
//     achieved, or, while trailing, when mtm gives back more than
//     TrailPercent of the high-water mark.
func (s *State) Update(reportedMTM float64) Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mtm = reportedMTM
	s.maxMTM = math.Max(s.maxMTM, s.mtm)

	if !s.trailing && s.maxMTM > s.params.MaxLoss*s.params.TrailAfter {
		s.trailing = true
	}

	var exit bool
	switch {
	case s.mtm < -s.params.MaxLoss:
		exit = true
	case s.mtm > s.params.Target:
		exit = true
	case s.trailing && s.mtm < s.maxMTM*(1-s.params.TrailPercent):
		exit = true
	}

	return Verdict{IsTrailing: s.trailing, MustExitAll: exit}
}

// Snapshot returns the current mtm and high-water mark without updating.
func (s *State) Snapshot() (mtm, maxMTM float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mtm, s.maxMTM
}

func (s *State) IsTrailing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trailing
}
