package rulecli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	id "idv/pkg/domain"
	dedupe "idv/pkg/platform/strings"

	"idv/internal/insight"
	"idv/internal/risk"
	"idv/internal/rules"
	"idv/internal/vault"
)

// EvaluateOptions holds flags for the evaluate command.
type EvaluateOptions struct {
	*RootOptions
	Codes     []string
	Scope     string
	Live      bool
	Data      map[string]string
	Country   string
	UserAgent string
	Baseline  bool
}

type ruleOutcome struct {
	Name   string `json:"name"`
	Action string `json:"action"`
	Fired  bool   `json:"fired"`
	Shadow bool   `json:"shadow,omitempty"`
}

type evaluateReport struct {
	Action string        `json:"action"`
	Rules  []ruleOutcome `json:"rules"`
	// BaselineClear is set with --baseline: true when no baseline rule fired.
	BaselineClear *bool `json:"baseline_clear,omitempty"`
}

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvaluateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "evaluate <rule-file>",
		Short: "Evaluate a rule file against reason codes",
		Long: `Evaluate every rule of a file against the given reason codes, vault
data and client insight, and print which rules fire and the resulting action.

Example:
  rulectl evaluate rules.yaml --codes ssn_does_not_match,watchlist_hit_ofac --country FR`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := evaluate(opts, args[0])
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return printReport(cmd, report)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Codes, "codes", nil, "reason codes present (comma separated)")
	cmd.Flags().StringVar(&opts.Scope, "scope", string(rules.ScopePerson), "evaluation scope (person|business)")
	cmd.Flags().BoolVar(&opts.Live, "live", false, "evaluate as a live playbook")
	cmd.Flags().StringToStringVar(&opts.Data, "data", nil, "vault data as id=value pairs")
	cmd.Flags().StringVar(&opts.Country, "country", "", "client ip country")
	cmd.Flags().StringVar(&opts.UserAgent, "user-agent", "", "client user agent")
	cmd.Flags().BoolVar(&opts.Baseline, "baseline", false, "also report whether the embedded baseline rules pass")

	return cmd
}

func evaluate(opts *EvaluateOptions, path string) (evaluateReport, error) {
	f, err := rules.LoadFile(path)
	if err != nil {
		return evaluateReport{}, err
	}

	codes := make([]risk.ReasonCode, 0, len(opts.Codes))
	for _, c := range dedupe.DedupeAndTrim(opts.Codes) {
		code := risk.ReasonCode(c)
		if !code.IsKnown() {
			return evaluateReport{}, fmt.Errorf("unknown reason code %q", c)
		}
		codes = append(codes, code)
	}

	scope := rules.Scope(opts.Scope)
	if scope != rules.ScopePerson && scope != rules.ScopeBusiness {
		return evaluateReport{}, fmt.Errorf("invalid scope %q", opts.Scope)
	}

	ectx := rules.EvalContext{Scope: scope, IsLive: opts.Live}
	if len(opts.Data) > 0 {
		ectx.VaultData = make(map[vault.DataIdentifier]string, len(opts.Data))
		for k, v := range opts.Data {
			ectx.VaultData[vault.DataIdentifier(k)] = v
		}
	}
	if opts.Country != "" || opts.UserAgent != "" {
		attrs := insight.Event{Country: opts.Country, UserAgent: opts.UserAgent}.Attributes()
		ectx.Insight = &attrs
	}

	eval := rules.Evaluate(f.Instances(id.TenantID{}, id.PlaybookID{}, opts.Live), codes, ectx)
	report := evaluateReport{Action: actionName(eval.Action), Rules: make([]ruleOutcome, 0, len(eval.Results))}
	for _, r := range eval.Results {
		report.Rules = append(report.Rules, ruleOutcome{
			Name:   r.Rule.Name,
			Action: r.Rule.Action.String(),
			Fired:  r.Fired,
			Shadow: r.Rule.IsShadow,
		})
	}

	if opts.Baseline {
		b, err := rules.EmbeddedBaseline()
		if err != nil {
			return evaluateReport{}, err
		}
		passed := rules.Evaluate(b.For(opts.Live), codes, ectx).Action == nil
		report.BaselineClear = &passed
	}
	return report, nil
}

func printReport(cmd *cobra.Command, report evaluateReport) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tACTION\tFIRED")
	for _, r := range report.Rules {
		fired := "no"
		if r.Fired {
			fired = "yes"
		}
		if r.Shadow {
			fired += " (shadow)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Action, fired)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nresult: %s\n", report.Action)
	if report.BaselineClear != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "baseline clear: %t\n", *report.BaselineClear)
	}
	return nil
}

func actionName(a *rules.Action) string {
	if a == nil {
		return "pass"
	}
	return a.String()
}
