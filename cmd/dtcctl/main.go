package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/langchou/dtcinsights/internal/config"
	"github.com/langchou/dtcinsights/internal/kb"
	"github.com/langchou/dtcinsights/internal/models"
	"github.com/langchou/dtcinsights/internal/repository"
	"github.com/langchou/dtcinsights/internal/service"
)

var (
	databaseURL string
	outputFmt   string
	verbose     bool
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "dtcctl",
		Short: "DTC Insights - fleet fault lookup and persistence classification",
		Long: `A CLI for resolving vehicles by plate, device identifier or chassis suffix,
listing their DTC events and classifying each fault as persistent,
intermittent or probably resolved.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", cfg.DatabaseURL, "Postgres connection string")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", cfg.Debug, "Log queries to stderr")

	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(faultsCmd(cfg.DefaultFaultHours))
	rootCmd.AddCommand(telemetryCmd(cfg.DefaultTelemetryMinutes))
	rootCmd.AddCommand(summaryCmd(cfg.DefaultSummaryDays))
	rootCmd.AddCommand(customerCmd(cfg.DefaultSummaryDays))
	rootCmd.AddCommand(overviewCmd())
	rootCmd.AddCommand(kbCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDB 打开数据库连接，调用方负责关闭
func openDB(ctx context.Context) (*repository.DB, error) {
	logger := zap.NewNop()
	if verbose {
		logger, _ = zap.NewDevelopment()
	}
	db, err := repository.New(ctx, databaseURL, repository.Options{MaxConns: 2, MinConns: 1}, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return db, nil
}

// withService 在一次命令内创建故障服务
func withService(cmd *cobra.Command, fn func(ctx context.Context, s *service.FaultService) error) error {
	ctx := cmd.Context()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(ctx, service.NewFaultService(zap.NewNop(), repository.NewStore(db), nil))
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [key]",
		Short: "Resolve a plate, device identifier or chassis suffix to a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, s *service.FaultService) error {
				v, ok, err := s.ResolveVehicle(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("vehicle %q not found", args[0])
				}
				return render(cmd.OutOrStdout(), v, vehicleTable(v))
			})
		},
	}
}

func faultsCmd(defaultHours int) *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "faults [key]",
		Short: "List recent DTC events of a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, s *service.FaultService) error {
				records, err := s.GetFaults(ctx, args[0], hours)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), records, faultTable(records))
			})
		},
	}

	cmd.Flags().IntVar(&hours, "hours", defaultHours, "Lookback window in hours")
	return cmd
}

func telemetryCmd(defaultMinutes int) *cobra.Command {
	var minutes int

	cmd := &cobra.Command{
		Use:   "telemetry [key]",
		Short: "Show the raw recent time series of a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, s *service.FaultService) error {
				series, err := s.GetTelemetry(ctx, args[0], minutes)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), series, telemetryTable(series.TimeSeries))
			})
		},
	}

	cmd.Flags().IntVar(&minutes, "minutes", defaultMinutes, "Lookback window in minutes")
	return cmd
}

func summaryCmd(defaultDays int) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "summary [key]",
		Short: "Classify the faults of a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, s *service.FaultService) error {
				results, err := s.GetVehicleSummary(ctx, args[0], days)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), results, summaryTable(results))
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", defaultDays, "Lookback window in days")
	return cmd
}

func customerCmd(defaultDays int) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "customer [name]",
		Short: "Classify the faults of every vehicle of a customer",
		Long:  "Classify the faults of every vehicle whose customer name contains all words of [name]. An empty name matches all customers.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return withService(cmd, func(ctx context.Context, s *service.FaultService) error {
				results, err := s.GetCustomerSummary(ctx, name, days)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), results, summaryTable(results))
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", defaultDays, "Lookback window in days")
	return cmd
}

func overviewCmd() *cobra.Command {
	var (
		q    models.OverviewQuery
		date string
	)

	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Recent DTC events grouped by customer and chassis",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date != "" {
				d, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
				q.EventDate = &d
			}
			return withService(cmd, func(ctx context.Context, s *service.FaultService) error {
				items, err := s.GetOverview(ctx, q)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), items, overviewTable(items))
			})
		},
	}

	cmd.Flags().StringVar(&q.Chassis, "chassis", "", "Chassis or its last 8 characters")
	cmd.Flags().StringVar(&q.Customer, "customer", "", "Customer name fragment")
	cmd.Flags().StringVar(&q.DTC, "dtc", "", "Exact DTC code")
	cmd.Flags().StringVar(&date, "date", "", "Only events on this UTC date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&q.Days, "days", service.DefaultOverviewDays, "Lookback window in days")
	cmd.Flags().IntVar(&q.Limit, "limit", service.DefaultOverviewLimit, "Maximum number of events")
	return cmd
}

func kbCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kb [spn] [fmi]",
		Short: "Look up the severity of an SPN/FMI pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			spn, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid spn %q", args[0])
			}
			fmi, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid fmi %q", args[1])
			}
			base, err := kb.Load()
			if err != nil {
				return err
			}
			entry := base.Lookup(spn, fmi)
			return render(cmd.OutOrStdout(), entry, kbTable(entry))
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the development schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database migrated successfully")
			return nil
		},
	}
}
