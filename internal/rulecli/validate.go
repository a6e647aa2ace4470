package rulecli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"idv/internal/rules"
)

type fileResult struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
	Rules int    `json:"rules,omitempty"`
	Error string `json:"error,omitempty"`
}

var errInvalidFiles = errors.New("some rule files are invalid")

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rule-file>...",
		Short: "Parse and validate rule files",
		Long: `Parse rule files the way the server imports them. Unknown keys,
unknown reason codes, malformed conditions and duplicate names are errors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]fileResult, 0, len(args))
			failed := false
			for _, path := range args {
				res := fileResult{Path: path}
				f, err := rules.LoadFile(path)
				if err != nil {
					res.Error = err.Error()
					failed = true
				} else {
					res.Valid = true
					res.Rules = len(f.Rules)
				}
				results = append(results, res)
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				if err := writeJSON(out, results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.Valid {
						fmt.Fprintf(out, "ok       %s (%d rules)\n", r.Path, r.Rules)
						continue
					}
					fmt.Fprintf(out, "invalid  %s: %s\n", r.Path, r.Error)
				}
			}
			if failed {
				return errInvalidFiles
			}
			return nil
		},
	}
}
