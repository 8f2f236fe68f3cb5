package fingerprint

import (
	"errors"
	"fmt"
	"strings"

	"supermanager/internal/state"

	"go.uber.org/zap"
)

// ChangeNotice is emitted when the configuration digest differs from the
// last persisted one.
type ChangeNotice struct {
	Previous Digest   `json:"previous"`
	Current  Digest   `json:"current"`
	Hooks    []string `json:"hooks"`
	Skills   []string `json:"skills"`
	Servers  []string `json:"servers"`
}

// Tracker persists the last-known digest and compares against it.
// The digest lives under state.KeyConfigHash as a bare string.
type Tracker struct {
	kv     state.KV
	logger *zap.Logger
}

// NewTracker creates a Tracker backed by kv.
func NewTracker(kv state.KV, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{kv: kv, logger: logger}
}

// Last returns the persisted digest, or "" when none is stored.
func (t *Tracker) Last() (Digest, error) {
	data, err := t.kv.Read(state.KeyConfigHash)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return Digest(strings.TrimSpace(string(data))), nil
}

// Baseline records the digest of s unconditionally. Used at session start.
func (t *Tracker) Baseline(s Snapshot) (Digest, error) {
	d, err := Compute(s)
	if err != nil {
		return "", err
	}
	if err := t.kv.Write(state.KeyConfigHash, []byte(d)); err != nil {
		return d, fmt.Errorf("persist config hash: %w", err)
	}
	t.logger.Debug("config baseline recorded", zap.String("digest", string(d)))
	return d, nil
}

// Check compares the digest of s with the persisted one. On mismatch it
// overwrites the persisted digest and returns a notice; on match it returns
// nil. With nothing persisted yet the digest is stored and no notice is
// returned.
func (t *Tracker) Check(s Snapshot) (*ChangeNotice, error) {
	current, err := Compute(s)
	if err != nil {
		return nil, err
	}

	previous, err := t.Last()
	if err != nil {
		// An unreadable hash file is treated as absent.
		t.logger.Warn("config hash unreadable", zap.Error(err))
		previous = ""
	}

	if previous == current {
		return nil, nil
	}

	if err := t.kv.Write(state.KeyConfigHash, []byte(current)); err != nil {
		t.logger.Error("failed to persist config hash", zap.Error(err))
	}

	if previous == "" {
		t.logger.Info("no config baseline, recorded current", zap.String("digest", string(current)))
		return nil, nil
	}

	t.logger.Info("configuration changed",
		zap.String("previous", string(previous)),
		zap.String("current", string(current)),
	)
	return newNotice(previous, current, s), nil
}

func newNotice(previous, current Digest, s Snapshot) *ChangeNotice {
	n := &ChangeNotice{Previous: previous, Current: current}
	for _, h := range s.Hooks {
		label := h.Event + ":" + h.Name
		if h.Matcher != "" {
			label = h.Event + "[" + h.Matcher + "]:" + h.Name
		}
		if h.Async {
			label += " (async)"
		}
		n.Hooks = append(n.Hooks, label)
	}
	for _, sk := range s.Skills {
		if sk.Enabled {
			n.Skills = append(n.Skills, sk.ID)
		}
	}
	for _, srv := range s.Servers {
		if srv.Enabled {
			n.Servers = append(n.Servers, srv.Name)
		}
	}
	return n
}

// Render formats the notice as context text for the assistant.
func (n *ChangeNotice) Render() string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("[super-manager] Configuration changed since last check")
	fmt.Fprintf(&b, " (%s -> %s).\n", shortDigest(n.Previous), shortDigest(n.Current))
	writeList(&b, "Active hooks", n.Hooks)
	writeList(&b, "Enabled skills", n.Skills)
	writeList(&b, "Enabled MCP servers", n.Servers)
	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "%s: none\n", title)
		return
	}
	fmt.Fprintf(b, "%s: %s\n", title, strings.Join(items, ", "))
}

func shortDigest(d Digest) string {
	if len(d) > 8 {
		return string(d[:8])
	}
	return string(d)
}
