// Package reconcile checks a tool invocation against the suggestions left by
// the last prompt: it marks what the invocation fulfils and classifies the
// call as fine, worth a warning, or a scope violation.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"supermanager/internal/config"
	"supermanager/internal/state"
	"supermanager/internal/status"

	"go.uber.org/zap"
)

// Verdict classifies an invocation.
type Verdict int

const (
	VerdictNone Verdict = iota
	VerdictSoftWarn
	VerdictHardBlock
)

func (v Verdict) String() string {
	switch v {
	case VerdictSoftWarn:
		return "SOFT_WARN"
	case VerdictHardBlock:
		return "HARD_BLOCK"
	default:
		return "NONE"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Verdict) UnmarshalText(b []byte) error {
	switch string(b) {
	case "NONE", "":
		*v = VerdictNone
	case "SOFT_WARN":
		*v = VerdictSoftWarn
	case "HARD_BLOCK":
		*v = VerdictHardBlock
	default:
		return fmt.Errorf("unknown verdict %q", string(b))
	}
	return nil
}

// Result is the outcome of one reconciliation.
type Result struct {
	Verdict      Verdict
	InvocationID string
	// Targets holds the targets left after exemptions.
	Targets []string
	Exempt  bool
	// Fulfilled holds the ids this invocation fulfilled.
	Fulfilled   []string
	Unfulfilled []state.Suggestion
	Violating   []state.Suggestion
}

// Message renders the result as text for the assistant. NONE yields "".
func (r Result) Message() string {
	switch r.Verdict {
	case VerdictHardBlock:
		var b strings.Builder
		for _, v := range r.Violating {
			fmt.Fprintf(&b, "Skill %q was suggested for this task but has not been used, and %s touches its scope (%s). Invoke the skill first.\n",
				v.RecordID, r.InvocationID, strings.Join(v.Scope, ", "))
		}
		return strings.TrimRight(b.String(), "\n")
	case VerdictSoftWarn:
		return fmt.Sprintf("Suggested but not yet used: %s. Consider invoking them before continuing.",
			strings.Join(state.IDs(r.Unfulfilled), ", "))
	default:
		return ""
	}
}

// Reconciler runs reconciliation for one hook invocation.
type Reconciler struct {
	store  *state.Store
	cache  *status.Cache
	exempt Exemptions
	logger *zap.Logger
	clock  func() time.Time

	invocationID string
}

// New creates a Reconciler. cache may be nil to skip the status write.
func New(store *state.Store, cache *status.Cache, exempt Exemptions, logger *zap.Logger, clock func() time.Time, invocationID string) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Reconciler{
		store:        store,
		cache:        cache,
		exempt:       exempt,
		logger:       logger,
		clock:        clock,
		invocationID: invocationID,
	}
}

// Reconcile classifies inv. Internal failures degrade to VerdictNone.
func (r *Reconciler) Reconcile(inv Invocation) Result {
	res := r.reconcile(inv)
	r.record(inv, res)
	return res
}

func (r *Reconciler) reconcile(inv Invocation) Result {
	targets, exempt := r.exempt.Reconcilable(inv)
	res := Result{InvocationID: inv.ID(), Targets: targets, Exempt: exempt}

	if exempt {
		r.logger.Debug("exempt invocation", zap.String("tool", inv.ToolName), zap.Strings("targets", Targets(inv)))
		return res
	}

	st, newly, err := r.store.MarkFulfilled(res.InvocationID)
	if err != nil {
		r.logger.Warn("suggestion state unavailable", zap.Error(err))
	}
	res.Fulfilled = newly
	if st == nil {
		return res
	}

	res.Unfulfilled = st.Unfulfilled()
	if len(res.Unfulfilled) == 0 {
		return res
	}

	res.Violating = violations(res.Unfulfilled, res.Targets)
	if len(res.Violating) > 0 {
		res.Verdict = VerdictHardBlock
	} else {
		res.Verdict = VerdictSoftWarn
	}

	r.logger.Info("reconciled",
		zap.String("invoked", res.InvocationID),
		zap.Stringer("verdict", res.Verdict),
		zap.Strings("unfulfilled", state.IDs(res.Unfulfilled)),
		zap.Strings("violating", state.IDs(res.Violating)),
	)
	return res
}

// violations returns the unfulfilled suggestions whose scope contains any
// target, compared case-insensitively with normalized separators.
func violations(unfulfilled []state.Suggestion, targets []string) []state.Suggestion {
	if len(targets) == 0 {
		return nil
	}
	normTargets := make([]string, 0, len(targets))
	for _, t := range targets {
		normTargets = append(normTargets, asDir(normalizePath(t)))
	}

	var out []state.Suggestion
	for _, sg := range unfulfilled {
		if inScope(sg.Scope, normTargets) {
			out = append(out, sg)
		}
	}
	return out
}

func inScope(scope, targets []string) bool {
	for _, s := range scope {
		s = normalizePath(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		for _, t := range targets {
			if strings.Contains(t, s) {
				return true
			}
		}
	}
	return false
}

func (r *Reconciler) record(inv Invocation, res Result) {
	if r.cache == nil {
		return
	}
	err := r.cache.Update(func(s *status.Status) {
		s.UpdatedAt = r.clock()
		s.InvocationID = r.invocationID
		s.SessionID = inv.SessionID
		s.Event = config.EventPreToolUse
		s.Tool = inv.ToolName
		s.Verdict = res.Verdict.String()
		s.Unfulfilled = state.IDs(res.Unfulfilled)
		s.Violating = state.IDs(res.Violating)
	})
	if err != nil {
		r.logger.Warn("failed to write status cache", zap.Error(err))
	}
}
