package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"supermanager/internal/usage"

	"go.uber.org/zap"
)

// DefaultTTL is how long a suggestion state stays valid after its prompt.
const DefaultTTL = 10 * time.Minute

// FulfillmentStrategy decides whether an invocation id fulfils a suggestion.
type FulfillmentStrategy interface {
	Name() string
	Fulfills(suggestionID, invocationID string) bool
}

// SubstringFulfillment treats an invocation as fulfilling a suggestion when
// the ids are equal or the suggestion id occurs inside the invocation id, so
// "billing" is fulfilled by "billing-skill" or "mcp__billing__charge".
type SubstringFulfillment struct{}

// Name implements FulfillmentStrategy.
func (SubstringFulfillment) Name() string { return "substring" }

// Fulfills implements FulfillmentStrategy.
func (SubstringFulfillment) Fulfills(suggestionID, invocationID string) bool {
	if suggestionID == "" || invocationID == "" {
		return false
	}
	return suggestionID == invocationID || strings.Contains(invocationID, suggestionID)
}

// Options configures a Store. Zero values take defaults.
type Options struct {
	TTL           time.Duration
	SnippetLength int
	Clock         func() time.Time
	Strategy      FulfillmentStrategy
	Usage         *usage.Log
	Logger        *zap.Logger

	// SessionID and InvocationID are stamped on usage events.
	SessionID    string
	InvocationID string
}

// Store reads and writes the suggestion state through a KV.
type Store struct {
	kv   KV
	opts Options
}

// NewStore creates a Store over kv.
func NewStore(kv KV, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = usage.DefaultSnippetLength
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Strategy == nil {
		opts.Strategy = SubstringFulfillment{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{kv: kv, opts: opts}
}

// Write persists the turn's matches. With no skill or tool match any prior
// state is deleted; otherwise it is replaced by a fresh, unfulfilled state.
func (s *Store) Write(turn TurnMatches) error {
	if !turn.HasActionable() {
		if err := s.kv.Delete(KeySuggestions); err != nil {
			return err
		}
		s.opts.Logger.Debug("no actionable matches, cleared suggestion state")
		return nil
	}

	st := SuggestionState{
		Timestamp:     s.opts.Clock(),
		PromptSnippet: usage.Truncate(turn.Prompt, s.opts.SnippetLength),
		Suggestions: Suggestions{
			Skills:       turn.Skills,
			Tools:        turn.Tools,
			Instructions: turn.Instructions,
		},
	}
	if err := s.save(&st); err != nil {
		return err
	}
	s.opts.Logger.Debug("suggestion state written",
		zap.Int("skills", len(turn.Skills)),
		zap.Int("tools", len(turn.Tools)),
		zap.Int("instructions", len(turn.Instructions)),
	)
	return nil
}

// Read returns the current state, or nil when it is absent, unparsable or
// expired. Expired state is deleted. A parse failure is returned alongside
// the nil state so the caller can log it.
func (s *Store) Read() (*SuggestionState, error) {
	data, err := s.kv.Read(KeySuggestions)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	st, err := ParseState(data)
	if err != nil {
		return nil, err
	}

	if s.opts.Clock().Sub(st.Timestamp) > s.opts.TTL {
		s.opts.Logger.Debug("suggestion state expired", zap.Time("timestamp", st.Timestamp))
		if err := s.kv.Delete(KeySuggestions); err != nil {
			s.opts.Logger.Warn("failed to delete expired state", zap.Error(err))
		}
		return nil, nil
	}
	return st, nil
}

// Clear deletes the state.
func (s *Store) Clear() error {
	return s.kv.Delete(KeySuggestions)
}

// MarkFulfilled marks every actionable suggestion the invocation fulfils and
// persists the result. It returns the updated state (nil when there is none)
// and the ids newly fulfilled. The invocation is appended to the usage log
// whether or not anything was fulfilled.
func (s *Store) MarkFulfilled(invocationID string) (*SuggestionState, []string, error) {
	st, readErr := s.Read()

	var newly []string
	if st != nil {
		for _, sg := range st.Actionable() {
			if s.opts.Strategy.Fulfills(sg.RecordID, invocationID) && st.addFulfilled(sg.RecordID) {
				newly = append(newly, sg.RecordID)
			}
		}
	}

	var writeErr error
	if len(newly) > 0 {
		writeErr = s.save(st)
		s.opts.Logger.Info("suggestions fulfilled",
			zap.String("invoked", invocationID),
			zap.Strings("ids", newly),
			zap.String("strategy", s.opts.Strategy.Name()),
		)
	}

	snippet := ""
	if st != nil {
		snippet = st.PromptSnippet
	}
	if err := s.opts.Usage.Append(usage.Event{
		Timestamp:     s.opts.Clock(),
		InvocationID:  s.opts.InvocationID,
		SessionID:     s.opts.SessionID,
		Invoked:       invocationID,
		PromptSnippet: snippet,
		Fulfilled:     len(newly) > 0,
	}); err != nil {
		s.opts.Logger.Warn("failed to append usage log", zap.Error(err))
	}

	return st, newly, errors.Join(readErr, writeErr)
}

func (s *Store) save(st *SuggestionState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal suggestion state: %w", err)
	}
	return s.kv.Write(KeySuggestions, data)
}
