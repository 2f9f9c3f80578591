// ThesisAI: LLM-written investment theses grounded in market data.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/seenimoa/thesisai/api"
	"github.com/seenimoa/thesisai/internal/analysis/technical"
	"github.com/seenimoa/thesisai/internal/analyst"
	"github.com/seenimoa/thesisai/internal/config"
	"github.com/seenimoa/thesisai/internal/llm"
	"github.com/seenimoa/thesisai/internal/logging"
	"github.com/seenimoa/thesisai/internal/report"
	"github.com/seenimoa/thesisai/pkg/models"
	"github.com/seenimoa/thesisai/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger
var (
	cfg    *config.Config
	logger *log.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "thesisai",
	Short: "ThesisAI: investment theses from news, prices and financials",
	Long: `ThesisAI turns a free-text request such as
"Write an investment thesis on Microsoft" into a grounded thesis document.
It resolves the company and ticker with an LLM tool call, fetches news,
price history and financial statements concurrently, and asks the model
to write the thesis from that context only.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger = logging.New(cfg.Logging, os.Stderr)
		logging.Install(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ThesisAI %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [request]",
	Short: "Write an investment thesis",
	Long: `Run the full pipeline for one request and print the thesis.

Examples:
  thesisai analyze "Write an investment thesis on Microsoft"
  thesisai analyze "Is Apple a buy?" --period 6mo --format markdown
  thesisai analyze "NVIDIA outlook" --out nvda.html`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		request := strings.TrimSpace(strings.Join(args, " "))
		if err := applyAnalyzeFlags(cmd); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := analyst.NewFromConfig(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		quiet, _ := cmd.Flags().GetBool("quiet")
		var observers []analyst.Observer
		if !quiet {
			observers = append(observers, progress)
		}

		res, err := p.Run(ctx, request, observers...)
		if err != nil {
			if stage := analyst.FailedStage(err); stage != "" {
				fmt.Fprintf(os.Stderr, "✖ failed while %s\n", stage)
			}
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if out != "" {
			if err := writeResult(out, res); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✔ wrote %s\n", out)
			return nil
		}
		return printResult(res)
	},
}

func init() {
	analyzeCmd.Flags().String("period", "", "default price-history period when the request names none (e.g. 1mo, 6mo, 1y)")
	analyzeCmd.Flags().String("format", "", "thesis format: html or markdown")
	analyzeCmd.Flags().Bool("partial", false, "continue without financial statements when they cannot be fetched")
	analyzeCmd.Flags().StringP("out", "o", "", "write the result to a file (.html writes a full report page)")
	analyzeCmd.Flags().BoolP("quiet", "q", false, "do not print stage progress")
}

func applyAnalyzeFlags(cmd *cobra.Command) error {
	if period, _ := cmd.Flags().GetString("period"); period != "" {
		if _, err := utils.ParsePeriod(period); err != nil {
			return err
		}
		cfg.Analysis.DefaultPeriod = period
	}
	if format, _ := cmd.Flags().GetString("format"); format != "" {
		cfg.Analysis.OutputFormat = strings.ToLower(format)
	}
	if cmd.Flags().Changed("partial") {
		cfg.Analysis.PartialResults, _ = cmd.Flags().GetBool("partial")
	}
	return nil
}

// progress prints one line per stage transition to stderr.
func progress(ev analyst.StageEvent) {
	line := fmt.Sprintf("… %-11s", ev.Stage)
	switch {
	case ev.Stage == analyst.StageFailed:
		line = fmt.Sprintf("✖ %-11s %s: %s", ev.Stage, ev.FailedStage, ev.Error)
	case ev.Stage == analyst.StageDone:
		line = fmt.Sprintf("✔ %-11s", ev.Stage)
	}
	if ev.Detail != "" {
		line += " " + ev.Detail
	}
	fmt.Fprintln(os.Stderr, line)
}

func writeResult(path string, res *models.NarrativeResult) error {
	var content string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		page, err := report.RenderPage(*res)
		if err != nil {
			return err
		}
		content = page
	case ".md", ".markdown":
		doc, err := report.Convert(res.Document, models.FormatMarkdown)
		if err != nil {
			return err
		}
		content = doc
	default:
		content = res.Document
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func printResult(res *models.NarrativeResult) error {
	doc := res.Document
	if res.Format == models.FormatHTML {
		md, err := report.HTMLToMarkdown(doc)
		if err != nil {
			return err
		}
		doc = md
	}

	e := res.Entities
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  %s (%s), period %s\n", e.CompanyName, e.CompanyTicker, e.Period)
	if last, ok := res.PriceSeries.Last(); ok {
		fmt.Printf("  Last close: %.2f  Change: %s\n", last.Close, utils.FormatPct(res.PriceSeries.ChangePct()))
		ind := technical.Compute(res.PriceSeries)
		line := fmt.Sprintf("  Trend: %s  Volatility: %.1f%%", ind.Trend(last.Close), ind.Volatility)
		if ind.RSI14 != nil {
			line += fmt.Sprintf("  RSI(14): %.1f", *ind.RSI14)
		}
		fmt.Println(line)
	}
	if res.NewsMood != nil {
		fmt.Printf("  News: %d articles, mood %s\n", res.NewsMood.Articles, res.NewsMood.Label)
	}
	fmt.Printf("  Model: %s  Took: %s\n", res.Model, res.Duration.Round(100*time.Millisecond))
	fmt.Println("═══════════════════════════════════════")
	fmt.Println()
	fmt.Println(strings.TrimSpace(doc))

	if len(res.Warnings) > 0 {
		fmt.Println()
		fmt.Println("Warnings:")
		for _, w := range res.Warnings {
			fmt.Printf("  • %s\n", w)
		}
	}
	return nil
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := analyst.NewFromConfig(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		srv := api.NewServer(cfg, p, logger, version)
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 Starting ThesisAI API server on %s\n", addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  ThesisAI System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (UTC):    %s\n", time.Now().UTC().Format(time.RFC3339))
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Provider:  %s (model: %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
		fmt.Printf("    News Source:   %s (limit %d)\n", cfg.News.Provider, cfg.News.Limit)
		fmt.Printf("    Output:        %s, context cap %d\n", cfg.Analysis.OutputFormat, cfg.Analysis.ContextCap)
		fmt.Printf("    Cache:         %s\n", cfg.Cache.Backend)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		// API keys status
		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		for _, k := range keys {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		if err := cfg.Validate(); err != nil {
			fmt.Println()
			fmt.Println("  Problems:")
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Printf("    • %s\n", line)
			}
		}

		if ping, _ := cmd.Flags().GetBool("ping"); ping {
			fmt.Println()
			fmt.Println("  LLM Providers:")
			ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
			defer cancel()
			router, err := llm.NewRouterFromConfig(ctx, cfg, logger)
			if err != nil {
				fmt.Printf("    %v\n", err)
			} else {
				for name, err := range router.HealthCheck(ctx) {
					status := "✅ reachable"
					if err != nil {
						status = "❌ " + err.Error()
					}
					fmt.Printf("    %-12s %s\n", name+":", status)
				}
			}
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("ping", false, "check that configured LLM providers respond")
}
