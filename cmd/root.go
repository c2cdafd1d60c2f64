package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	jsonformat "github.com/depsentry/depsentry/formatters/json"
	"github.com/depsentry/depsentry/formatters/noop"
	"github.com/depsentry/depsentry/formatters/pretty"
	"github.com/depsentry/depsentry/formatters/sarif"
	"github.com/depsentry/depsentry/intercept"
	"github.com/depsentry/depsentry/models"
	"github.com/depsentry/depsentry/providers/github"
	"github.com/depsentry/depsentry/providers/registry"
	"github.com/depsentry/depsentry/results"
	"github.com/depsentry/depsentry/trust"
)

var Format string
var Verbose bool
var Mode string
var (
	Version string
	Commit  string
	Date    string
)
var token string
var cfgFile string
var config *models.Config

const (
	exitCodeErr       = 1
	exitCodeInterrupt = 2
	exitCodeBlocked   = 3
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "depsentry",
	Short: "A Trust Scoring Gate for Package Install Commands",
	Long: `A Trust Scoring Gate for Package Install Commands

depsentry inspects pip and npm style install commands, scores every
referenced package against registry and GitHub signals, and blocks or
prompts on packages that look hallucinated, typosquatted or abandoned.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if Verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		output := zerolog.ConsoleWriter{Out: os.Stderr}
		output.FormatLevel = func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		}
		log.Logger = log.Output(output)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalChan)
		cancel()
	}()

	go func() {
		select {
		case <-signalChan: // first signal, cancel context
			cancel()
		case <-ctx.Done():
			return
		}
		<-signalChan // second signal, hard exit
		os.Exit(exitCodeInterrupt)
	}()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		log.Error().Err(err).Msg("")
		os.Exit(exitCodeErr)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .depsentry.yml in the current directory)")
	rootCmd.PersistentFlags().StringVarP(&Format, "format", "f", "pretty", "Output format (pretty, json, sarif, noop)")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&Mode, "mode", "m", "", "Security mode (interactive, monitor, block, disabled)")
}

func initConfig() {
	viper.AutomaticEnv()
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".depsentry")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return
		} else {
			log.Error().Err(err).Msg("Can't read config")
			os.Exit(exitCodeErr)
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		log.Error().Err(err).Msg("Unable to unmarshal config")
		os.Exit(exitCodeErr)
	}
}

func getConfig() *models.Config {
	cfg := models.DefaultConfig()
	if config != nil {
		if config.Mode != "" {
			cfg.Mode = config.Mode
		}
		if config.CacheTTLSeconds > 0 {
			cfg.CacheTTLSeconds = config.CacheTTLSeconds
		}
		if config.CacheDir != "" {
			cfg.CacheDir = config.CacheDir
		}
		if config.Concurrency > 0 {
			cfg.Concurrency = config.Concurrency
		}
		cfg.GithubToken = config.GithubToken
		cfg.GithubBaseURL = config.GithubBaseURL
		cfg.TrustedPackagesFile = config.TrustedPackagesFile
	}
	if Mode != "" {
		cfg.Mode = Mode
	}
	if cfg.CacheDir == "" {
		if base, err := os.UserCacheDir(); err == nil {
			cfg.CacheDir = filepath.Join(base, "depsentry")
		} else {
			cfg.CacheDir = ".depsentry"
		}
	}
	return cfg
}

func GetFormatter() intercept.Formatter {
	switch Format {
	case "pretty":
		return &pretty.Format{}
	case "json":
		return jsonformat.NewFormat(os.Stdout)
	case "sarif":
		return sarif.NewFormat(os.Stdout, Version)
	case "noop":
		return &noop.Format{}
	}
	return &pretty.Format{}
}

// GetScoringContext wires the cache, ignore registry, top-package sets
// and provider clients into one context shared by a command invocation.
func GetScoringContext(ctx context.Context, cfg *models.Config) (*trust.ScoringContext, error) {
	cache := trust.NewCache(
		filepath.Join(cfg.CacheDir, "trust_cache.json"),
		time.Duration(cfg.CacheTTLSeconds)*time.Second,
	)
	ignores := trust.NewIgnoreRegistry(filepath.Join(cfg.CacheDir, "ignore.txt"))

	top := trust.NewTopPackages()
	if cfg.TrustedPackagesFile != "" {
		trusted, err := models.LoadTrustedPackages(cfg.TrustedPackagesFile)
		if err != nil {
			return nil, err
		}
		for _, pkg := range trusted {
			ecosystem, err := models.ParseEcosystem(pkg.Ecosystem)
			if err != nil {
				return nil, fmt.Errorf("trusted package %q: %w", pkg.Name, err)
			}
			top.Add(ecosystem, pkg.Name)
		}
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	clients := make(map[models.Ecosystem]registry.Client, len(models.Ecosystems))
	for _, ecosystem := range models.Ecosystems {
		client, err := registry.ForEcosystem(ecosystem, httpClient)
		if err != nil {
			return nil, err
		}
		clients[ecosystem] = client
	}

	githubToken := token
	if githubToken == "" {
		githubToken = cfg.GithubToken
	}
	if githubToken == "" {
		githubToken = os.Getenv("GH_TOKEN")
	}
	statsClient, err := github.NewStatsClient(ctx, githubToken, cfg.GithubBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	return &trust.ScoringContext{
		Cache:   cache,
		Ignores: ignores,
		Top:     top,
		Clients: clients,
		Github:  statsClient,
	}, nil
}

func GetInterceptor(ctx context.Context) (*intercept.Interceptor, error) {
	cfg := getConfig()

	mode, err := intercept.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if mode == intercept.ModeInteractive && !intercept.Interactive() {
		log.Debug().Msg("stdin is not a terminal, falling back to block mode")
		mode = intercept.ModeBlock
	}

	sc, err := GetScoringContext(ctx, cfg)
	if err != nil {
		return nil, err
	}

	engine := trust.NewEngine(sc, cfg.Concurrency)
	return intercept.New(engine, sc.Ignores, intercept.NewTTYPrompter(), mode), nil
}

func formatReport(ctx context.Context, report *results.Report) {
	if err := GetFormatter().Format(ctx, report); err != nil {
		log.Error().Err(err).Msg("failed to format report")
	}
}
