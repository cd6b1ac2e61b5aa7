package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neurodesk/tmplc/pkg/buildcache"
	"github.com/neurodesk/tmplc/pkg/config"
	"github.com/neurodesk/tmplc/pkg/loader"
	v "github.com/neurodesk/tmplc/pkg/validator"
)

var (
	configPath string
	verbose    bool
)

var compileFlags struct {
	module    bool
	split     bool
	out       string
	sourceMap bool
	jobs      int
	noCache   bool
	emit      string
}

var rootCmd = cobra.Command{
	Use:           "tmplc",
	Short:         "Compile Liquid/Jinja templates into JavaScript render functions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Lookup("module") == nil {
		return cfg, nil
	}
	if flags.Changed("module") {
		cfg.ModuleMode = compileFlags.module
	}
	if flags.Changed("split") {
		cfg.SplitModules = compileFlags.split
		if compileFlags.split {
			cfg.ModuleMode = true
		}
	}
	if flags.Changed("out") {
		cfg.OutDir = compileFlags.out
	} else {
		cfg.OutDir = cfg.Path(cfg.OutDir)
	}
	if flags.Changed("source-map") {
		cfg.SourceMaps = compileFlags.sourceMap
	}
	if flags.Changed("jobs") {
		cfg.Jobs = compileFlags.jobs
	}
	return cfg, cfg.Validate()
}

func openCache(cfg config.Config) *buildcache.Cache {
	if compileFlags.noCache {
		return nil
	}
	cache, err := buildcache.Open(cfg.Path(cfg.CacheDir))
	if err != nil {
		slog.Warn("build cache disabled", "error", err)
		return nil
	}
	return cache
}

// report prints a diagnostic for every failed result and returns an error
// when any failed.
func report(w io.Writer, p *pipeline, results []result) error {
	failed := 0
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		failed++
		printDiagnostic(w, r.Err, r.Path, p.source(r))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed to compile", failed, len(results))
	}
	return nil
}

var compileCmd = cobra.Command{
	Use:   "compile [templates...]",
	Short: "Compile templates to JavaScript",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := v.MatchesAllowed(compileFlags.emit, emitModes, "emit"); err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		var cache *buildcache.Cache
		if compileFlags.emit != emitAST {
			cache = openCache(cfg)
		}
		p, err := newPipeline(cfg, cache, compileFlags.emit, slog.Default())
		if err != nil {
			return err
		}
		results, err := p.run(cmd.Context(), args)
		if err != nil {
			return err
		}

		split := cfg.PrinterOptions("").Split
		for _, r := range results {
			if r.Err != nil {
				continue
			}
			if compileFlags.emit != emitJS {
				for _, f := range r.Files {
					fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", r.Path, f.Code)
				}
				continue
			}
			written, err := write(cfg.OutDir, r, split)
			if err != nil {
				return err
			}
			slog.Info("compiled", "template", r.Path, "files", len(written), "cached", r.Cached)
		}
		return report(cmd.ErrOrStderr(), p, results)
	},
}

var checkCmd = cobra.Command{
	Use:   "check [templates...]",
	Short: "Compile templates without writing output and list unit inputs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		p, err := newPipeline(cfg, nil, emitJS, slog.Default())
		if err != nil {
			return err
		}
		results, err := p.run(cmd.Context(), args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, r := range results {
			if r.Err != nil {
				continue
			}
			fmt.Fprintf(out, "%s: ok\n", r.Path)
			for _, u := range r.Units {
				fmt.Fprintf(out, "  %s inputs=[%s] locals=[%s]\n",
					u.Name, strings.Join(u.Inputs, ", "), strings.Join(u.Locals, ", "))
			}
		}
		return report(cmd.ErrOrStderr(), p, results)
	},
}

var partialsCmd = cobra.Command{
	Use:   "partials",
	Short: "List the partials found in the views directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		partials, err := loader.LoadDir(cfg.Path(cfg.Views), cfg.LoaderOptions())
		if err != nil {
			return err
		}
		for _, name := range partials.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFile, "Path to the tmplc config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	compileCmd.Flags().BoolVar(&compileFlags.module, "module", false, "Compile partials as separate functions")
	compileCmd.Flags().BoolVar(&compileFlags.split, "split", false, "Write one file per unit (implies --module)")
	compileCmd.Flags().StringVarP(&compileFlags.out, "out", "o", "", "Output directory")
	compileCmd.Flags().BoolVar(&compileFlags.sourceMap, "source-map", false, "Write source maps next to the generated files")
	compileCmd.Flags().IntVarP(&compileFlags.jobs, "jobs", "j", 0, "Templates compiled in parallel (0 = all CPUs)")
	compileCmd.Flags().BoolVar(&compileFlags.noCache, "no-cache", false, "Skip the build cache")
	compileCmd.Flags().StringVar(&compileFlags.emit, "emit", emitJS, "Output kind: js, ir or ast")

	checkCmd.Flags().BoolVar(&compileFlags.module, "module", false, "Compile partials as separate functions")

	rootCmd.AddCommand(&compileCmd)
	rootCmd.AddCommand(&checkCmd)
	rootCmd.AddCommand(&partialsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
