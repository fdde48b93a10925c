package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/app"
	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/spf13/cobra"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			ledger, err := app.OpenLedger(cmd.Context(), cfg.Ledger)
			if err != nil {
				return err
			}
			defer ledger.Close()

			if err := ledger.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ledger schema is up to date (%s)\n", cfg.Ledger.Backend)
			return nil
		},
	}
}

func historyCmd(opts *rootOptions) *cobra.Command {
	var (
		userID     string
		start, end string
		isFraud    string
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's scored transactions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.FraudHistoryFilter{UserID: userID, Limit: limit, Offset: offset}
			if start != "" {
				t, err := time.Parse("2006-01-02", start)
				if err != nil {
					return fmt.Errorf("invalid --start %q: use YYYY-MM-DD", start)
				}
				filter.Start = &t
			}
			if end != "" {
				t, err := time.Parse("2006-01-02", end)
				if err != nil {
					return fmt.Errorf("invalid --end %q: use YYYY-MM-DD", end)
				}
				filter.End = &t
			}
			if isFraud != "" {
				v, err := strconv.Atoi(isFraud)
				if err != nil || (v != 0 && v != 1) {
					return fmt.Errorf("invalid --is-fraud %q: use 0 or 1", isFraud)
				}
				filter.IsFraud = &v
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ledger, err := app.OpenLedger(cmd.Context(), cfg.Ledger)
			if err != nil {
				return err
			}
			defer ledger.Close()

			page, err := ledger.FraudHistory(cmd.Context(), filter)
			if err != nil {
				return err
			}

			return opts.print(cmd.OutOrStdout(), page, func(w io.Writer) {
				fmt.Fprintf(w, "Total: %d  Fraud: %d  Legitimate: %d\n\n", page.TotalCount, page.FraudCount, page.LegitimateCount)
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "DATE\tTRANSACTION\tAMOUNT\tCATEGORY\tFRAUD\tPROBABILITY\tRISK")
				for _, tx := range page.Transactions {
					fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%d\t%.4f\t%s\n",
						tx.Timestamp.Format("2006-01-02 15:04"),
						tx.TransactionID,
						tx.Amount,
						tx.Category,
						tx.IsFraud,
						tx.FraudProbability,
						domain.RiskBand(tx.FraudProbability),
					)
				}
				tw.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&isFraud, "is-fraud", "", "only 0 (legitimate) or 1 (fraud)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// categoryWriter is implemented by ledgers that can edit the category table.
type categoryWriter interface {
	UpsertCategory(ctx context.Context, c domain.CategoryCode) error
}

func categoriesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage the category to merchant-code table",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories and their merchant codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.services(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			codes, err := s.Categories.ListCategoryCodes(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), codes, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "CATEGORY\tMCC")
				for _, c := range codes {
					fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.MCCCode)
				}
				tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "set [name] [mcc-code]",
		Short:   "Create a category or change its merchant code",
		Example: "  fraudctl categories set Travel 4770",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.services(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			w, ok := s.Ledger.(categoryWriter)
			if !ok {
				return fmt.Errorf("the %T ledger does not support editing categories", s.Ledger)
			}
			if err := w.UpsertCategory(cmd.Context(), domain.CategoryCode{Name: args[0], MCCCode: args[1]}); err != nil {
				return err
			}

			if s.Cache != nil {
				if err := s.Cache.Invalidate(cmd.Context()); err != nil {
					return fmt.Errorf("category saved but cache not cleared: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Category %s -> %s\n", args[0], args[1])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "flush-cache",
		Short: "Drop cached category lookups from Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.services(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if s.Cache == nil {
				return fmt.Errorf("redis.addr is not configured")
			}
			if err := s.Cache.Invalidate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Category cache cleared")
			return nil
		},
	})

	return cmd
}
