package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"supermanager/internal/engine"
	"supermanager/internal/fingerprint"
	"supermanager/internal/logging"
	"supermanager/internal/matcher"
	"supermanager/internal/registry"
	"supermanager/internal/status"
	"supermanager/internal/usage"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newMatchCmd(opts *cliOptions) *cobra.Command {
	var asJSON, render bool
	cmd := &cobra.Command{
		Use:   "match [text...]",
		Short: "Show which instructions, skills and MCP servers a text matches",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			text := strings.Join(args, " ")
			set := registry.Load(rt.Paths, rt.Logger(logging.CategoryRegistry))
			m := matcher.New(rt.Logger(logging.CategoryMatcher))

			results := map[string][]matcher.MatchResult{
				"instructions": m.Match(text, set.Instructions),
				"skills":       m.Match(text, set.Skills),
				"servers":      m.Match(text, set.Servers),
				"stop":         m.Match(text, set.StopRules),
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			if render {
				preview := engine.PromptContext(nil, results["instructions"], results["skills"], results["servers"],
					set, rt.Config.Matching.MaxInstructions)
				return renderMarkdown(cmd.OutOrStdout(), preview)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "REGISTRY\tID\tTERM")
			for _, name := range []string{"instructions", "skills", "servers", "stop"} {
				for _, r := range results[name] {
					fmt.Fprintf(w, "%s\t%s\t%s\n", name, r.RecordID, r.TriggeringTerm)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().BoolVar(&render, "render", false, "Preview the context that would be injected")
	cmd.MarkFlagsMutuallyExclusive("json", "render")
	return cmd
}

func newFingerprintCmd(opts *cliOptions) *cobra.Command {
	var check, baseline, canonical bool
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the configuration digest",
		Long:  "Prints the digest of the active hooks, MCP servers, skills and instructions. --check compares with the persisted digest and updates it; --baseline overwrites it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			snap := fingerprint.ProjectSet(registry.Load(rt.Paths, rt.Logger(logging.CategoryRegistry)))
			out := cmd.OutOrStdout()

			switch {
			case canonical:
				data, err := fingerprint.Canonical(snap)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			case baseline:
				d, err := rt.Tracker.Baseline(snap)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, d)
				return nil
			case check:
				notice, err := rt.Tracker.Check(snap)
				if err != nil {
					return err
				}
				if notice == nil {
					fmt.Fprintln(out, "unchanged")
					return nil
				}
				fmt.Fprintln(out, notice.Render())
				return nil
			default:
				d, err := fingerprint.Compute(snap)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, d)
				return nil
			}
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Compare with the persisted digest and report changes")
	cmd.Flags().BoolVar(&baseline, "baseline", false, "Persist the current digest")
	cmd.Flags().BoolVar(&canonical, "canonical", false, "Print the canonical JSON that is hashed")
	cmd.MarkFlagsMutuallyExclusive("check", "baseline", "canonical")
	return cmd
}

func newStateCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or clear the pending suggestion state",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current suggestion state",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			st, err := rt.Store().Read()
			if err != nil {
				return fmt.Errorf("suggestion state unreadable: %w", err)
			}
			if st == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending suggestions")
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), st)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the current suggestion state",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.Store().Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return nil
		},
	})
	return cmd
}

func newStatuslineCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "statusline",
		Short: "Print a one-line summary of the latest invocation",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			s, err := rt.Status.Load()
			if err != nil {
				s = status.Status{}
			}
			fmt.Fprintln(cmd.OutOrStdout(), status.Render(s))
			return nil
		},
	}
}

func newUsageCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Summarize the invocation usage log",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			summary, err := usage.Summarize(rt.Usage.Path())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func newConfigCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			data, err := yaml.Marshal(rt.Config)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", rt.Paths.ConfigFile, data)
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if exists(rt.Paths.ConfigFile) && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", rt.Paths.ConfigFile)
			}
			if err := rt.Config.Save(rt.Paths.ConfigFile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", rt.Paths.ConfigFile)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// renderMarkdown pretty-prints text for the terminal, falling back to the
// raw text when the renderer cannot be built.
func renderMarkdown(w io.Writer, text string) error {
	if text == "" {
		_, err := fmt.Fprintln(w, "nothing would be injected")
		return err
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		_, err = fmt.Fprintln(w, text)
		return err
	}
	out, err := r.Render(text)
	if err != nil {
		_, err = fmt.Fprintln(w, text)
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
