package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"idv/pkg/platform/sentinel"
	txcontext "idv/pkg/platform/tx"

	"idv/internal/insight"
	"idv/internal/playbook"
	"idv/internal/risk"
	"idv/internal/rules"
	"idv/internal/vault"
	"idv/internal/workflow"
)

// inputs is everything a decision reads before evaluating.
type inputs struct {
	Signals  risk.Grouped
	Playbook playbook.Config
	Rules    []rules.Instance
	Insight  *insight.Attributes
	Lists    map[string][]string
}

// gatherInputs loads the decision inputs in parallel. The transaction is
// detached because a pgx.Tx cannot serve concurrent queries; these reads
// only see committed rows, which is all a decision depends on. Rules are
// skipped when withRules is false.
func (s *Service) gatherInputs(ctx context.Context, wf workflow.Workflow, withRules bool) (*inputs, error) {
	g, ctx := errgroup.WithContext(txcontext.Detach(ctx))
	in := &inputs{}

	g.Go(func() error {
		return s.timed("signals", func() error {
			signals, err := s.signals.LatestByGroup(ctx, wf.ScopedVaultID)
			if err != nil {
				return fmt.Errorf("load risk signals: %w", err)
			}
			in.Signals = signals
			return nil
		})
	})

	g.Go(func() error {
		return s.timed("playbook", func() error {
			cfg, err := s.playbooks.Config(ctx, wf.TenantID, wf.PlaybookID)
			if err != nil {
				return fmt.Errorf("load playbook: %w", err)
			}
			in.Playbook = cfg
			return nil
		})
	})

	if withRules {
		g.Go(func() error {
			return s.timed("rules", func() error {
				active, err := s.rules.Active(ctx, wf.TenantID, wf.PlaybookID)
				if err != nil {
					return fmt.Errorf("load active rules: %w", err)
				}
				in.Rules = active
				return nil
			})
		})
	}

	// Insight is optional: a vault without an insight event evaluates
	// insight conditions against absent values.
	if s.insights != nil {
		g.Go(func() error {
			return s.timed("insight", func() error {
				e, err := s.insights.Latest(ctx, wf.ScopedVaultID)
				if errors.Is(err, sentinel.ErrNotFound) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("load insight event: %w", err)
				}
				attrs := e.Attributes()
				in.Insight = &attrs
				return nil
			})
		})
	}

	if s.lists != nil {
		g.Go(func() error {
			return s.timed("lists", func() error {
				lists, err := s.lists.Lists(ctx, wf.TenantID)
				if err != nil {
					return fmt.Errorf("load tenant lists: %w", err)
				}
				in.Lists = lists
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

// vaultData decrypts the fields the playbook requires plus every field a
// rule reads.
func (s *Service) vaultData(ctx context.Context, wf workflow.Workflow, cfg playbook.Config, instances []rules.Instance) (map[vault.DataIdentifier]string, error) {
	if s.vault == nil {
		return nil, nil
	}
	seen := map[vault.DataIdentifier]bool{}
	var fields []vault.DataIdentifier
	add := func(ids []vault.DataIdentifier) {
		for _, f := range ids {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}
	add(cfg.MustCollectData)
	for _, r := range instances {
		add(r.Expression.DataIdentifiers())
	}
	if len(fields) == 0 {
		return nil, nil
	}

	var data map[vault.DataIdentifier]string
	err := s.timed("vault", func() error {
		var err error
		data, err = s.vault.Decrypt(txcontext.Detach(ctx), wf.ScopedVaultID, fields)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decrypt vault data: %w", err)
	}
	return data, nil
}

func (s *Service) timed(source string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveInputLatency(source, time.Since(start))
	return err
}
