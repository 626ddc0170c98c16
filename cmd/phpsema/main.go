package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"phpsema/internal/ast"
	"phpsema/internal/config"
	"phpsema/internal/crawler"
	"phpsema/internal/diagnostic"
	"phpsema/internal/graph"
	"phpsema/internal/pipeline"
	"phpsema/internal/storage"
	"phpsema/internal/uses"
)

var (
	rootCmd = &cobra.Command{
		Use:               "phpsema",
		Short:             "Semantic analysis for PHP projects",
		PersistentPreRunE: initConfig,
	}
	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "phpsema.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringP("db", "d", "", "Path to the analysis database (SQLite)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("color", "auto", `Control colored output: "auto", "always", or "never".`)
	_ = viper.BindPFlags(rootCmd.PersistentFlags())

	viper.SetEnvPrefix("PHPSEMA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	updateCmd.Flags().Bool("force", false, "Analyze and store the whole tree even without git changes")
	updateCmd.Flags().Int("hops", 2, "How many levels of users to follow from changed declarations")
	updateCmd.Flags().Float64("min-confidence", 0, "Ignore edges below this confidence when following users")

	scanCmd.Flags().String("report", "", "Write a JSON run report to this path")
	updateCmd.Flags().String("report", "", "Write a JSON run report to this path")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(usesCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(diagCmd)

	diagramCmd.Flags().Bool("classes", false, "Draw classes and the type uses between them instead of units")
	rootCmd.AddCommand(diagramCmd)
}

// initConfig loads the configuration file; flags and PHPSEMA_* variables
// take precedence over it.
func initConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.LoadConfig(viper.GetString("config"))
	if err != nil {
		return err
	}
	viper.SetDefault("db", cfg.Storage.DBPath)
	viper.SetDefault("log-level", cfg.Log.Level)
	cfg.Storage.DBPath = viper.GetString("db")
	cfg.Log.Level = viper.GetString("log-level")

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	logrus.SetLevel(level)
	return nil
}

func newAnalyzer() *pipeline.Analyzer {
	a, err := pipeline.New(
		pipeline.WithLogger(logrus.StandardLogger()),
		pipeline.WithWorkers(cfg.Analysis.Workers),
		pipeline.WithCrawler(crawler.NewCrawler(cfg.Project.Ignore...)),
		pipeline.WithUsesOptions(
			uses.ReportUnresolved(cfg.Analysis.ReportUnresolved),
			uses.ReportDeprecated(cfg.Analysis.ReportDeprecated),
		),
	)
	if err != nil {
		log.Fatalf("Failed to create analyzer: %v", err)
	}
	return a
}

func initStore() *storage.SQLiteStore {
	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	return store
}

func projectRoot(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Project.Root
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Analyze the project and store the use graph and diagnostics",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root := projectRoot(args)
		fmt.Printf("📂 Scanning directory: %s\n", root)

		store := initStore()
		defer store.Close()
		a := newAnalyzer()
		defer a.Close()

		sync := pipeline.NewSync(a, store, root)
		sync.ReportPath, _ = cmd.Flags().GetString("report")
		if _, err := sync.Scan(context.Background()); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		fmt.Printf("🎉 Scan complete! Database: %s\n", cfg.Storage.DBPath)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Analyze the files changed since HEAD and report their impact",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		store := initStore()
		defer store.Close()
		a := newAnalyzer()
		defer a.Close()

		sync := pipeline.NewSync(a, store, cfg.Project.Root)
		sync.Reach.MaxHops, _ = cmd.Flags().GetInt("hops")
		sync.Reach.MinConfidence, _ = cmd.Flags().GetFloat64("min-confidence")
		sync.ReportPath, _ = cmd.Flags().GetString("report")
		report, err := sync.Update(context.Background(), force)
		if err != nil {
			log.Fatalf("Update failed: %v", err)
		}
		if report == nil {
			return
		}
		for _, n := range report.Direct {
			fmt.Printf("  * %s %s (%s:%d)\n", n.Kind, n.Name, n.Unit, n.StartLine)
		}
		for _, n := range report.Indirect {
			fmt.Printf("  ~ %s %s (%s:%d)\n", n.Kind, n.Name, n.Unit, n.StartLine)
		}
	},
}

var usesCmd = &cobra.Command{
	Use:   "uses <name>",
	Short: "List the stored uses of declarations named <name>",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := initStore()
		defer store.Close()

		found, err := store.FindUses(context.Background(), args[0])
		if err != nil {
			log.Fatalf("Failed to query uses: %v", err)
		}
		if len(found) == 0 {
			fmt.Printf("No uses of %s.\n", args[0])
			return
		}
		for _, u := range found {
			fmt.Printf("%s:%d: %s %s (in %s)\n", u.Unit, u.StartLine, u.Kind, u.Target, u.Source)
		}
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval <file> <offset> <expression>",
	Short: "Evaluate an expression at a byte offset of a file",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		offset, err := strconv.Atoi(args[1])
		if err != nil || offset < 0 {
			log.Fatalf("Invalid offset %q", args[1])
		}
		src, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}

		a := newAnalyzer()
		defer a.Close()
		ctx := context.Background()
		if _, err := a.AnalyzeUnit(ctx, path, src); err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}

		res := a.EvaluateSnippet(ctx, path, args[2], ast.Pos(offset))
		if res.Empty() {
			fmt.Println("No result.")
			return
		}
		if res.Type != nil {
			fmt.Printf("type: %s\n", res.Type)
		}
		for _, d := range res.Decls {
			fmt.Printf("declaration: %s\n", d)
		}
	},
}

var diagCmd = &cobra.Command{
	Use:   "diag [path]",
	Short: "Analyze the project and print its diagnostics",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := newAnalyzer()
		defer a.Close()

		if _, err := a.AnalyzeProject(context.Background(), projectRoot(args)); err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}

		diags := a.Diagnostics()
		r := diagnostic.NewRenderer(os.Stdout, diagnostic.ParseColorMode(viper.GetString("color")))
		if err := r.Render(diags); err != nil {
			log.Fatalf("Failed to print diagnostics: %v", err)
		}
		counts := diagnostic.Count(diags)
		fmt.Printf("%d errors, %d warnings, %d hints\n",
			counts[diagnostic.SeverityError], counts[diagnostic.SeverityWarning], counts[diagnostic.SeverityHint])
	},
}

var diagramCmd = &cobra.Command{
	Use:   "diagram",
	Short: "Print a Mermaid diagram of the stored graph",
	Run: func(cmd *cobra.Command, args []string) {
		classes, _ := cmd.Flags().GetBool("classes")

		store := initStore()
		defer store.Close()

		g, err := store.LoadGraph(context.Background())
		if err != nil {
			log.Fatalf("Failed to load graph: %v", err)
		}
		if len(g.Nodes) == 0 {
			fmt.Println("The database is empty. Run 'phpsema scan' first.")
			return
		}
		if classes {
			fmt.Print(graph.ClassDiagram(g))
		} else {
			fmt.Print(graph.UnitDiagram(g))
		}
	},
}
