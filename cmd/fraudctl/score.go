package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/spf13/cobra"
)

// Accepted --timestamp layouts, tried in order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

type txFlags struct {
	userID    string
	txID      string
	amount    float64
	timestamp string
	payment   string
	category  string
}

func (f *txFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.userID, "user", "u", "", "user id (required)")
	cmd.Flags().StringVar(&f.txID, "tx-id", "", "ledger transaction id")
	cmd.Flags().Float64VarP(&f.amount, "amount", "a", 0, "transaction amount")
	cmd.Flags().StringVarP(&f.timestamp, "timestamp", "t", "", "transaction time, RFC3339 or 'YYYY-MM-DD HH:MM:SS' in UTC (default now)")
	cmd.Flags().StringVarP(&f.payment, "payment", "p", "", "payment method, e.g. online or 'Chip Transaction'")
	cmd.Flags().StringVar(&f.category, "category", "", "transaction category")
	_ = cmd.MarkFlagRequired("user")
}

func (f *txFlags) request(now time.Time) (domain.ScoreRequest, error) {
	ts := now.UTC()
	if f.timestamp != "" {
		parsed, err := parseTimestamp(f.timestamp)
		if err != nil {
			return domain.ScoreRequest{}, err
		}
		ts = parsed
	}

	req := domain.ScoreRequest{
		UserID:        f.userID,
		TransactionID: f.txID,
		Amount:        f.amount,
		Timestamp:     ts,
		PaymentMethod: f.payment,
		Category:      f.category,
	}
	return req, req.Validate()
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: use RFC3339 or YYYY-MM-DD HH:MM:SS", s)
}

type scoreOutput struct {
	TransactionID string `json:"transaction_id,omitempty"`
	domain.ScoringResult
	FraudRisk string `json:"fraud_risk"`
}

func printResult(w io.Writer, out scoreOutput) {
	verdict := "legitimate"
	if out.IsFraud == 1 {
		verdict = "FRAUD"
	}
	if out.TransactionID != "" {
		fmt.Fprintf(w, "Transaction:  %s\n", out.TransactionID)
	}
	fmt.Fprintf(w, "Verdict:      %s\n", verdict)
	fmt.Fprintf(w, "Probability:  %.4f\n", out.FraudProbability)
	fmt.Fprintf(w, "Risk:         %s\n", out.FraudRisk)
}

func scoreCmd(opts *rootOptions) *cobra.Command {
	var flags txFlags

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one transaction",
		Long: `Score one transaction against the configured ledger and model.

Scoring fails open: when the model or the ledger is unavailable the
result is the non-fraud default. Use 'fraudctl features' to see why.

Examples:
  fraudctl score -u user-1 -a 250 -p online --category Travel
  fraudctl score -u user-1 -a 12.5 -t 2024-03-12T02:30:00Z --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(time.Now())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := opts.services(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result := s.Scorer.Score(ctx, req.Transaction(), req.UserID)
			out := scoreOutput{
				TransactionID: req.TransactionID,
				ScoringResult: result,
				FraudRisk:     domain.RiskBand(result.FraudProbability),
			}
			return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) { printResult(w, out) })
		},
	}

	flags.register(cmd)
	return cmd
}

type featuresOutput struct {
	Features     domain.FeatureVector  `json:"features"`
	Result       *domain.ScoringResult `json:"result,omitempty"`
	FailureKind  string                `json:"failure_kind,omitempty"`
	Error        string                `json:"error,omitempty"`
	DurationMS   int64                 `json:"duration_ms"`
	FeatureNames []string              `json:"feature_names"`
}

func featuresCmd(opts *rootOptions) *cobra.Command {
	var flags txFlags

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Show the model input for a transaction and why scoring would fail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(time.Now())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := opts.services(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ev, evalErr := s.Scorer.Evaluate(ctx, req.Transaction(), req.UserID)
			out := featuresOutput{
				Features:     ev.Features,
				DurationMS:   ev.Duration.Milliseconds(),
				FeatureNames: domain.FeatureNames,
			}
			if evalErr != nil {
				out.FailureKind = domain.FailureKind(evalErr)
				out.Error = evalErr.Error()
			} else {
				out.Result = &ev.Result
			}

			return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				values := ev.Features.Values()
				for i, name := range domain.FeatureNames {
					fmt.Fprintf(w, "%-20s %g\n", name, values[i])
				}
				fmt.Fprintln(w)
				if evalErr != nil {
					fmt.Fprintf(w, "Scoring fails open (%s): %v\n", out.FailureKind, evalErr)
					return
				}
				printResult(w, scoreOutput{
					ScoringResult: ev.Result,
					FraudRisk:     domain.RiskBand(ev.Result.FraudProbability),
				})
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func ingestCmd(opts *rootOptions) *cobra.Command {
	var flags txFlags

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Score a transaction, store it on the ledger and record the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(time.Now())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := opts.services(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			// Score against the ledger as it was before this transaction.
			tx := req.Transaction()
			result := s.Scorer.Score(ctx, tx, req.UserID)

			id, err := s.Ledger.InsertTransaction(ctx, req.UserID, tx)
			if err != nil {
				return fmt.Errorf("storing transaction: %w", err)
			}
			if err := s.Ledger.RecordScore(ctx, id, result); err != nil {
				if errors.Is(err, domain.ErrTransactionNotFound) {
					return fmt.Errorf("recording score: transaction %s is not visible yet: %w", id, err)
				}
				return fmt.Errorf("recording score: %w", err)
			}

			out := scoreOutput{
				TransactionID: id,
				ScoringResult: result,
				FraudRisk:     domain.RiskBand(result.FraudProbability),
			}
			return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) { printResult(w, out) })
		},
	}

	flags.register(cmd)
	return cmd
}
