package engine

import (
	"context"
	"fmt"
	"strings"

	"supermanager/internal/config"
	"supermanager/internal/fingerprint"
	"supermanager/internal/hooks"
	"supermanager/internal/logging"
	"supermanager/internal/matcher"
	"supermanager/internal/reconcile"
	"supermanager/internal/registry"
	"supermanager/internal/state"
	"supermanager/internal/status"

	"go.uber.org/zap"
)

// Handle dispatches one hook event. It never fails: internal errors are
// logged and the host is told to proceed.
func (rt *Runtime) Handle(ctx context.Context, in hooks.Input) (out hooks.Output) {
	logger := rt.Logger(logging.CategoryHooks)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked", zap.Any("panic", r), zap.String("event", in.HookEventName))
			out = hooks.Output{}
		}
	}()

	if err := ctx.Err(); err != nil {
		logger.Warn("invocation cancelled before start", zap.Error(err))
		return hooks.Output{}
	}
	if in.SessionID != "" {
		rt.WithSession(in.SessionID)
	}

	logger.Debug("hook event", zap.String("event", in.HookEventName), zap.String("session_id", in.SessionID))

	switch in.HookEventName {
	case config.EventSessionStart:
		return rt.OnSessionStart(in)
	case config.EventUserPromptSubmit:
		return rt.OnPrompt(in)
	case config.EventPreToolUse:
		return rt.OnPreToolUse(in)
	case config.EventStop, config.EventSubagentStop:
		return rt.OnStop(in)
	default:
		logger.Debug("event not handled", zap.String("event", in.HookEventName))
		return hooks.Output{}
	}
}

// OnSessionStart records the configuration baseline.
func (rt *Runtime) OnSessionStart(in hooks.Input) hooks.Output {
	set := registry.Load(rt.Paths, rt.Logger(logging.CategoryRegistry))

	if _, err := rt.Tracker.Baseline(fingerprint.ProjectSet(set)); err != nil {
		rt.Logger(logging.CategoryFingerprint).Error("failed to record baseline", zap.Error(err))
	}

	if err := rt.Status.Write(status.Status{
		UpdatedAt:    rt.Clock(),
		InvocationID: rt.InvocationID,
		SessionID:    in.SessionID,
		Event:        config.EventSessionStart,
		Verdict:      reconcile.VerdictNone.String(),
	}); err != nil {
		rt.Logger(logging.CategoryHooks).Warn("failed to write status cache", zap.Error(err))
	}

	summary := fmt.Sprintf("[super-manager] Active: %d instructions, %d stop rules, %d skills, %d MCP servers, %d hooks.",
		len(registry.Enabled(set.Instructions)), len(registry.Enabled(set.StopRules)),
		len(registry.Enabled(set.Skills)), len(registry.Enabled(set.Servers)), len(set.Hooks))
	return hooks.AdditionalContext(config.EventSessionStart, summary)
}

// OnPrompt matches the prompt against every registry, checks for
// configuration drift, persists the turn's suggestions and returns the
// context to inject.
func (rt *Runtime) OnPrompt(in hooks.Input) hooks.Output {
	mlog := rt.Logger(logging.CategoryMatcher)

	guard := matcher.NewPseudoPromptGuard(rt.Config.Matching.PseudoPromptTags)
	if guard.IsPseudoPrompt(in.Prompt) {
		mlog.Debug("host notification, not a user prompt")
		return hooks.Output{}
	}
	text := guard.UserText(in.Prompt)

	set := registry.Load(rt.Paths, rt.Logger(logging.CategoryRegistry))

	m := matcher.New(mlog)
	instructions := m.Match(text, set.Instructions)
	skills := m.Match(text, set.Skills)
	tools := m.Match(text, set.Servers)

	notice, err := rt.Tracker.Check(fingerprint.ProjectSet(set))
	if err != nil {
		rt.Logger(logging.CategoryFingerprint).Error("fingerprint check failed", zap.Error(err))
	}

	turn := state.TurnMatches{
		Prompt:       text,
		Skills:       withScope(skills, set.Skills),
		Tools:        state.FromMatches(tools),
		Instructions: state.FromMatches(instructions),
	}
	if err := rt.Store().Write(turn); err != nil {
		rt.Logger(logging.CategoryState).Error("failed to persist suggestions", zap.Error(err))
	}

	if err := rt.Status.Write(status.Status{
		UpdatedAt:    rt.Clock(),
		InvocationID: rt.InvocationID,
		SessionID:    in.SessionID,
		Event:        config.EventUserPromptSubmit,
		Matched: status.Matched{
			Skills:       matcher.IDs(skills),
			Tools:        matcher.IDs(tools),
			Instructions: matcher.IDs(instructions),
		},
		Verdict:       reconcile.VerdictNone.String(),
		ConfigChanged: notice != nil,
	}); err != nil {
		rt.Logger(logging.CategoryHooks).Warn("failed to write status cache", zap.Error(err))
	}

	mlog.Info("prompt matched",
		zap.Strings("instructions", matcher.IDs(instructions)),
		zap.Strings("skills", matcher.IDs(skills)),
		zap.Strings("tools", matcher.IDs(tools)),
		zap.Bool("config_changed", notice != nil),
	)

	ctxText := PromptContext(notice, instructions, skills, tools, set, rt.Config.Matching.MaxInstructions)
	return hooks.AdditionalContext(config.EventUserPromptSubmit, ctxText)
}

// OnPreToolUse reconciles the invocation and applies the enforcement policy.
func (rt *Runtime) OnPreToolUse(in hooks.Input) hooks.Output {
	rec := reconcile.New(
		rt.Store(),
		rt.Status,
		reconcile.NewExemptions(rt.Paths, rt.Config.Enforcement.ExemptPaths),
		rt.Logger(logging.CategoryReconcile),
		rt.Clock,
		rt.InvocationID,
	)
	res := rec.Reconcile(reconcile.Invocation{
		ToolName:  in.ToolName,
		Input:     in.ToolInput,
		SessionID: in.SessionID,
	})
	return Enforce(rt.Config.Enforcement.Mode, res)
}

// OnStop runs the end-of-turn check of the assistant's last message against
// the Stop rules. A stop already forced by this hook is always allowed.
func (rt *Runtime) OnStop(in hooks.Input) hooks.Output {
	logger := rt.Logger(logging.CategoryMatcher)
	if in.StopHookActive {
		logger.Debug("stop hook already active, allowing")
		return hooks.Output{}
	}

	message := in.LastAssistantMessage
	if message == "" {
		var err error
		message, err = hooks.LastAssistantMessage(in.TranscriptPath)
		if err != nil {
			logger.Warn("failed to read transcript", zap.String("path", in.TranscriptPath), zap.Error(err))
		}
	}

	rules, errs := registry.LoadInstructions(rt.Paths.InstructionDir(config.EventStop))
	for _, err := range errs {
		rt.Logger(logging.CategoryRegistry).Warn("skipping stop rule", zap.Error(err))
	}

	decision := matcher.New(logger).CheckStop(message, rules)

	if err := rt.Status.Update(func(s *status.Status) {
		s.UpdatedAt = rt.Clock()
		s.InvocationID = rt.InvocationID
		s.SessionID = in.SessionID
		s.Event = in.HookEventName
		s.Tool = ""
		s.Verdict = reconcile.VerdictNone.String()
		s.Unfulfilled = nil
		s.Violating = nil
	}); err != nil {
		rt.Logger(logging.CategoryHooks).Warn("failed to write status cache", zap.Error(err))
	}

	if decision.Allow {
		return hooks.Output{}
	}
	logger.Info("stop blocked", zap.Strings("rules", matcher.IDs(decision.Matches)))
	return hooks.BlockStop(decision.Reason)
}

// Enforce turns a reconciliation result into a hook response under the
// given enforcement mode.
func Enforce(mode string, res reconcile.Result) hooks.Output {
	if res.Verdict == reconcile.VerdictNone || mode == config.EnforcementLog {
		return hooks.Output{}
	}
	msg := "[super-manager] " + res.Message()
	if res.Verdict == reconcile.VerdictHardBlock && mode != config.EnforcementWarn {
		return hooks.Deny(msg)
	}
	return hooks.Warn(msg)
}

func withScope(results []matcher.MatchResult, skills []registry.RuleRecord) []state.Suggestion {
	out := make([]state.Suggestion, 0, len(results))
	for _, r := range results {
		sg := state.Suggestion{MatchResult: r}
		if rec, ok := registry.ByID(skills, r.RecordID); ok {
			sg.Scope = rec.Scope
		}
		out = append(out, sg)
	}
	return out
}

// PromptContext renders the text injected for a prompt. maxInstructions
// caps the instruction bodies included; zero means no cap.
func PromptContext(notice *fingerprint.ChangeNotice, instructions, skills, tools []matcher.MatchResult, set registry.Set, maxInstructions int) string {
	var sections []string

	if notice != nil {
		sections = append(sections, notice.Render())
	}

	included := instructions
	if maxInstructions > 0 && len(included) > maxInstructions {
		included = included[:maxInstructions]
	}
	for _, match := range included {
		rec, ok := registry.ByID(set.Instructions, match.RecordID)
		if !ok || strings.TrimSpace(rec.Payload) == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("[instruction: %s]\n%s", rec.ID, strings.TrimSpace(rec.Payload)))
	}

	if len(skills) > 0 {
		sections = append(sections, "Relevant skills (invoke before working in their scope):\n"+describe(skills, set.Skills))
	}
	if len(tools) > 0 {
		sections = append(sections, "Relevant MCP servers:\n"+describe(tools, set.Servers))
	}

	return strings.Join(sections, "\n\n")
}

func describe(matches []matcher.MatchResult, records []registry.RuleRecord) string {
	lines := make([]string, 0, len(matches))
	for _, match := range matches {
		line := fmt.Sprintf("- %s (matched %q)", match.RecordID, match.TriggeringTerm)
		if rec, ok := registry.ByID(records, match.RecordID); ok && rec.Description != "" {
			line += ": " + rec.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
