package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/24bbnb21-oss/StaySmartAI/internal/access"
	"github.com/24bbnb21-oss/StaySmartAI/internal/analysis"
	"github.com/24bbnb21-oss/StaySmartAI/internal/config"
	"github.com/24bbnb21-oss/StaySmartAI/internal/dataset"
	apperrors "github.com/24bbnb21-oss/StaySmartAI/internal/errors"
	"github.com/24bbnb21-oss/StaySmartAI/internal/monitoring"
	"github.com/24bbnb21-oss/StaySmartAI/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML config file",
		EnvVars: []string{"CONFIG_PATH"},
	}
	logLevelFlag := &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		Usage:   "debug, info, warn or error",
		EnvVars: []string{"LOG_LEVEL"},
	}

	return &cli.App{
		Name:      "staysmart",
		Usage:     "score employee attrition risk from an HR CSV",
		Version:   server.Version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     []cli.Flag{configFlag, logLevelFlag},
		Before: func(c *cli.Context) error {
			logger := monitoring.NewLoggerWithWriter(stderr, monitoring.ParseLevel(c.String("log-level")))
			slog.SetDefault(logger.Logger)
			return nil
		},
		Commands: []*cli.Command{
			scoreCommand(),
			serveCommand(),
			licenseCommand(),
		},
	}
}

func scoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "score a CSV file and write the augmented table",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Value: "-", Usage: "input CSV, - for stdin"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output CSV; when set the run summary is printed as JSON"},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed (default from config)"},
			&cli.StringFlag{Name: "weights", Usage: "risk weight set: a or b"},
			&cli.StringFlag{Name: "features", Usage: "model features: extended or core"},
			&cli.StringFlag{Name: "fill", Usage: "synthetic value policy: uniform or normal"},
			&cli.Float64Flag{Name: "holdout", Usage: "hold-out fraction in [0,1)"},
			&cli.IntFlag{Name: "trees", Usage: "number of trees"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if err := applyScoringFlags(c, &cfg.Scoring); err != nil {
				return err
			}

			opts, err := analysis.OptionsFromConfig(cfg.Scoring)
			if err != nil {
				return apperrors.NewConfigurationError("invalid scoring options", err)
			}
			return score(c.Context, c.App.Writer, c.String("in"), c.String("out"), analysis.NewAnalyzer(opts, slog.Default()))
		},
	}
}

func applyScoringFlags(c *cli.Context, s *config.ScoringConfig) error {
	if c.IsSet("seed") {
		s.Seed = c.Uint64("seed")
	}
	if c.IsSet("weights") {
		s.Weights = c.String("weights")
	}
	if c.IsSet("features") {
		s.Features = c.String("features")
	}
	if c.IsSet("fill") {
		s.Fill = c.String("fill")
	}
	if c.IsSet("holdout") {
		s.HoldoutFraction = c.Float64("holdout")
	}
	if c.IsSet("trees") {
		s.Trees = c.Int("trees")
	}
	if s.HoldoutFraction < 0 || s.HoldoutFraction >= 1 {
		return fmt.Errorf("--holdout %v must be in [0,1)", s.HoldoutFraction)
	}
	return nil
}

// runSummary is what score prints when the table goes to a file
type runSummary struct {
	Rows            int                  `json:"rows"`
	Encoding        string               `json:"encoding"`
	NoData          bool                 `json:"no_data"`
	Notice          string               `json:"notice,omitempty"`
	DefaultedFields []string             `json:"defaulted_fields"`
	Warnings        []dataset.Warning    `json:"warnings,omitempty"`
	Model           analysis.ModelReport `json:"model"`
	Summary         analysis.Summary     `json:"summary"`
	Output          string               `json:"output"`
}

func score(ctx context.Context, stdout io.Writer, in, out string, analyzer *analysis.Analyzer) error {
	start := time.Now()

	var src io.Reader = os.Stdin
	if in != "-" && in != "" {
		f, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer apperrors.SafeClose(f, "input file")
		src = f
	}

	parsed, err := dataset.Parse(src)
	if err != nil {
		return err
	}
	for _, w := range parsed.Warnings {
		slog.Warn("Input row padded", "row", w.Row, "message", w.Message)
	}

	res, err := analyzer.Analyze(ctx, parsed.Table)
	if err != nil {
		return err
	}

	if out == "" || out == "-" {
		return dataset.Write(stdout, res.Table)
	}

	if err := writeFile(out, res.Table); err != nil {
		return err
	}

	slog.Info("Scored dataset written",
		"output", out,
		"rows", parsed.Table.Len(),
		"model", res.Model.Kind,
		"high_risk", res.Summary.HighRiskCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(runSummary{
		Rows:            parsed.Table.Len(),
		Encoding:        parsed.Encoding,
		NoData:          res.NoData,
		Notice:          res.Notice,
		DefaultedFields: res.Defaulted,
		Warnings:        parsed.Warnings,
		Model:           res.Model,
		Summary:         res.Summary,
		Output:          out,
	})
}

func writeFile(path string, t *dataset.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := dataset.Write(f, t); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}

			logger := monitoring.NewLoggerWithWriter(os.Stdout, monitoring.ParseLevel(c.String("log-level")))
			slog.SetDefault(logger.Logger)

			app, err := server.NewApp(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Run(c.Context)
		},
	}
}

func licenseCommand() *cli.Command {
	return &cli.Command{
		Name:  "license",
		Usage: "issue a signed license key",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "plan", Value: string(access.PlanPro), Usage: "free, pro or enterprise"},
			&cli.StringFlag{Name: "subject", Required: true, Usage: "customer the key is issued to"},
			&cli.DurationFlag{Name: "ttl", Usage: "validity (default access.license_ttl_days)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}

			plan, err := access.ParsePlan(c.String("plan"))
			if err != nil {
				return err
			}

			ttl := time.Duration(cfg.Access.LicenseTTLDays) * 24 * time.Hour
			if c.IsSet("ttl") {
				ttl = c.Duration("ttl")
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}

			issuer, err := access.NewIssuer(cfg.Access.LicenseSecret)
			if err != nil {
				return err
			}
			key, err := issuer.Issue(plan, c.String("subject"), ttl)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(c.App.Writer, key)
			return err
		},
	}
}
