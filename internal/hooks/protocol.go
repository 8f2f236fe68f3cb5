// Package hooks is the host hook protocol: the JSON document read from stdin
// for each event and the JSON written back on stdout.
package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Input is the event payload sent by the host.
type Input struct {
	SessionID      string         `json:"session_id"`
	TranscriptPath string         `json:"transcript_path"`
	Cwd            string         `json:"cwd"`
	HookEventName  string         `json:"hook_event_name"`
	Source         string         `json:"source,omitempty"`
	Prompt         string         `json:"prompt,omitempty"`
	ToolName       string         `json:"tool_name,omitempty"`
	ToolInput      map[string]any `json:"tool_input,omitempty"`
	StopHookActive bool           `json:"stop_hook_active,omitempty"`

	LastAssistantMessage string `json:"last_assistant_message,omitempty"`
}

// DecodeInput reads one Input from r. Empty input yields a zero Input.
func DecodeInput(r io.Reader) (Input, error) {
	var in Input
	data, err := io.ReadAll(r)
	if err != nil {
		return in, fmt.Errorf("read hook input: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return in, nil
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("decode hook input: %w", err)
	}
	return in, nil
}

// Permission decisions for PreToolUse.
const (
	PermissionAllow = "allow"
	PermissionDeny  = "deny"
	PermissionAsk   = "ask"
)

// SpecificOutput is the event-specific part of a response.
type SpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	AdditionalContext        string `json:"additionalContext,omitempty"`
	PermissionDecision       string `json:"permissionDecision,omitempty"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
}

// Output is the response written back to the host. The zero Output means
// "proceed, nothing to add" and is encoded as nothing at all.
type Output struct {
	Decision           string          `json:"decision,omitempty"`
	Reason             string          `json:"reason,omitempty"`
	SystemMessage      string          `json:"systemMessage,omitempty"`
	SuppressOutput     bool            `json:"suppressOutput,omitempty"`
	HookSpecificOutput *SpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// IsEmpty reports whether o carries nothing.
func (o Output) IsEmpty() bool {
	return o.Decision == "" && o.Reason == "" && o.SystemMessage == "" && !o.SuppressOutput && o.HookSpecificOutput == nil
}

// Encode writes o as a single JSON line. Empty outputs write nothing.
func (o Output) Encode(w io.Writer) error {
	if o.IsEmpty() {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(o)
}

// AdditionalContext injects text into the assistant's context for
// SessionStart and UserPromptSubmit.
func AdditionalContext(event, text string) Output {
	if strings.TrimSpace(text) == "" {
		return Output{}
	}
	return Output{HookSpecificOutput: &SpecificOutput{HookEventName: event, AdditionalContext: text}}
}

// Deny refuses a PreToolUse call with a reason shown to the assistant.
func Deny(reason string) Output {
	return Output{HookSpecificOutput: &SpecificOutput{
		HookEventName:            "PreToolUse",
		PermissionDecision:       PermissionDeny,
		PermissionDecisionReason: reason,
	}}
}

// Warn lets the call proceed with a visible message.
func Warn(message string) Output {
	if strings.TrimSpace(message) == "" {
		return Output{}
	}
	return Output{SystemMessage: message}
}

// BlockStop keeps the assistant's turn open with reason as feedback.
func BlockStop(reason string) Output {
	return Output{Decision: "block", Reason: reason}
}
