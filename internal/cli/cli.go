// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repodigest/internal/config"
	"github.com/temirov/repodigest/internal/digest"
	"github.com/temirov/repodigest/internal/github"
	"github.com/temirov/repodigest/internal/output"
	"github.com/temirov/repodigest/internal/services/analyzer"
	"github.com/temirov/repodigest/internal/services/api"
	"github.com/temirov/repodigest/internal/services/clipboard"
	"github.com/temirov/repodigest/internal/summarizer"
	"github.com/temirov/repodigest/internal/tokenizer"
	"github.com/temirov/repodigest/internal/types"
	"github.com/temirov/repodigest/internal/utils"
)

const (
	configFlagName       = "config"
	debugFlagName        = "debug"
	addressFlagName      = "address"
	tokensFlagName       = "tokens"
	modelFlagName        = "model"
	copyFlagName         = "copy"
	globalFlagName       = "global"
	forceFlagName        = "force"
	formatFlagName       = "format"
	versionTemplate      = "repodigest version: {{.Version}}\n"
	rootUse              = utils.ApplicationName
	rootShortDescription = "repodigest summarizes GitHub repositories"
	rootLongDescription  = `repodigest fetches a GitHub repository, compresses it into a bounded text digest
and asks a language model for a structured summary.
Use serve to expose POST /summarize, digest to print the digest, and summarize to print a summary.`
	serveUse                  = types.CommandServe
	digestUse                 = types.CommandDigest + " <github-url>"
	summarizeUse              = types.CommandSummarize + " <github-url>"
	initUse                   = types.CommandInit
	serveShortDescription     = "serve the summarization API over HTTP"
	digestShortDescription    = "print the digest of a repository"
	summarizeShortDescription = "print the summary of a repository"
	initShortDescription      = "write a default configuration file"

	// digestUsageExample demonstrates digest command usage.
	digestUsageExample = `  # Print the digest with a token estimate
  repodigest digest https://github.com/spf13/cobra --tokens

  # Copy the digest to the clipboard
  repodigest digest https://github.com/spf13/cobra --copy`
	// serveUsageExample demonstrates serve command usage.
	serveUsageExample = `  # Listen on port 9000
  repodigest serve --address :9000

  # Query the service
  curl -X POST localhost:9000/summarize -d '{"github_url": "https://github.com/spf13/cobra"}'`

	configFlagDescription  = "configuration file to use instead of ./config.yaml"
	debugFlagDescription   = "enable debug logging"
	addressFlagDescription = "listen address, overrides server.address"
	tokensFlagDescription  = "print a token estimate of the digest to stderr"
	modelFlagDescription   = "tokenizer model used for the token estimate"
	copyFlagDescription    = "copy the digest to the clipboard"
	globalFlagDescription  = "write the global configuration instead of ./config.yaml"
	forceFlagDescription   = "overwrite an existing configuration file"
	formatFlagDescription  = "output format: raw, json or xml"
	invalidFormatMessage   = "Invalid format value '%s'"

	userAgentFormat          = "%s/%s"
	tokenReportHeaderFormat  = "Tokens (%s): %d\n"
	tokenReportSectionFormat = "  %s: %d\n"
	copiedMessage            = "Copied digest to clipboard"
	initializedMessageFormat = "Configuration written to %s\n"
	listeningMessageFormat   = "Listening on %s\n"
)

// runtimeOptions holds the persistent flags shared by every command.
type runtimeOptions struct {
	configPath string
	debug      bool
}

// application is the configuration and logger resolved for one command invocation.
type application struct {
	configuration config.ApplicationConfiguration
	logger        *zap.Logger
}

// dependencies are the collaborators commands reach for; tests replace them.
type dependencies struct {
	copier clipboard.Copier
}

// Execute runs the repodigest application until it completes or receives an interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCommand := createRootCommand(dependencies{copier: clipboard.NewService()})
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, os.Args[1:]))
	return rootCommand.ExecuteContext(ctx)
}

// createRootCommand builds the root Cobra command.
func createRootCommand(deps dependencies) *cobra.Command {
	options := &runtimeOptions{}

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		Version:      utils.GetApplicationVersion(),
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}
	rootCommand.SetVersionTemplate(versionTemplate)
	rootCommand.PersistentFlags().StringVar(&options.configPath, configFlagName, "", configFlagDescription)
	registerBooleanFlag(rootCommand.PersistentFlags(), &options.debug, debugFlagName, false, debugFlagDescription)
	rootCommand.AddCommand(
		createServeCommand(options),
		createDigestCommand(options, deps),
		createSummarizeCommand(options),
		createInitCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// load builds the logger and reads the configuration for a command.
func (options *runtimeOptions) load() (application, error) {
	logger, loggerErr := utils.NewApplicationLogger(options.debug)
	if loggerErr != nil {
		return application{}, fmt.Errorf("initialize logger: %w", loggerErr)
	}
	configuration, configErr := config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: options.configPath})
	if configErr != nil {
		return application{}, configErr
	}
	return application{configuration: configuration, logger: logger}, nil
}

// createServeCommand returns the serve subcommand.
func createServeCommand(options *runtimeOptions) *cobra.Command {
	var address string

	serveCommand := &cobra.Command{
		Use:     serveUse,
		Short:   serveShortDescription,
		Example: serveUsageExample,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			app, loadErr := options.load()
			if loadErr != nil {
				return loadErr
			}
			defer func() { _ = app.logger.Sync() }()
			if address != "" {
				app.configuration.Server.Address = address
			}
			return runServe(command.Context(), app, command.OutOrStdout())
		},
	}
	serveCommand.Flags().StringVar(&address, addressFlagName, "", addressFlagDescription)
	return serveCommand
}

// createDigestCommand returns the digest subcommand.
func createDigestCommand(options *runtimeOptions, deps dependencies) *cobra.Command {
	var tokensEnabled bool
	var tokenModel string
	var copyEnabled bool
	var outputFormat string

	digestCommand := &cobra.Command{
		Use:     digestUse,
		Short:   digestShortDescription,
		Example: digestUsageExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			outputFormatLower := strings.ToLower(outputFormat)
			if !output.IsSupportedFormat(outputFormatLower) {
				return fmt.Errorf(invalidFormatMessage, outputFormatLower)
			}
			app, loadErr := options.load()
			if loadErr != nil {
				return loadErr
			}
			defer func() { _ = app.logger.Sync() }()
			if command.Flags().Changed(tokensFlagName) {
				app.configuration.Digest.CountTokens = &tokensEnabled
			}
			if tokenModel != "" {
				app.configuration.Digest.TokenModel = tokenModel
			}
			var copier clipboard.Copier
			if copyEnabled {
				copier = deps.copier
			}
			return runDigest(command.Context(), app, arguments[0], outputFormatLower, command.OutOrStdout(), command.ErrOrStderr(), copier)
		},
	}
	registerBooleanFlag(digestCommand.Flags(), &tokensEnabled, tokensFlagName, false, tokensFlagDescription)
	digestCommand.Flags().StringVar(&tokenModel, modelFlagName, "", modelFlagDescription)
	registerBooleanFlag(digestCommand.Flags(), &copyEnabled, copyFlagName, false, copyFlagDescription)
	digestCommand.Flags().StringVar(&outputFormat, formatFlagName, types.FormatRaw, formatFlagDescription)
	return digestCommand
}

// createSummarizeCommand returns the summarize subcommand.
func createSummarizeCommand(options *runtimeOptions) *cobra.Command {
	var outputFormat string

	summarizeCommand := &cobra.Command{
		Use:   summarizeUse,
		Short: summarizeShortDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			outputFormatLower := strings.ToLower(outputFormat)
			if !output.IsSupportedFormat(outputFormatLower) {
				return fmt.Errorf(invalidFormatMessage, outputFormatLower)
			}
			app, loadErr := options.load()
			if loadErr != nil {
				return loadErr
			}
			defer func() { _ = app.logger.Sync() }()
			return runSummarize(command.Context(), app, arguments[0], outputFormatLower, command.OutOrStdout())
		},
	}
	summarizeCommand.Flags().StringVar(&outputFormat, formatFlagName, types.FormatJSON, formatFlagDescription)
	return summarizeCommand
}

// createInitCommand returns the init subcommand.
func createInitCommand() *cobra.Command {
	var global bool
	var force bool

	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			path, initErr := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if initErr != nil {
				return initErr
			}
			_, writeErr := fmt.Fprintf(command.OutOrStdout(), initializedMessageFormat, path)
			return writeErr
		},
	}
	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, false, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, false, forceFlagDescription)
	return initCommand
}

func runServe(ctx context.Context, app application, destination io.Writer) error {
	shutdownTimeout, durationErr := app.configuration.Server.ShutdownTimeoutDuration()
	if durationErr != nil {
		return durationErr
	}
	service, serviceErr := newAnalyzerService(app, true)
	if serviceErr != nil {
		return serviceErr
	}
	server := api.NewServer(api.Config{
		Address:         app.configuration.Server.ListenAddress(),
		ShutdownTimeout: shutdownTimeout,
		Summarizer:      service,
		Version:         utils.GetApplicationVersion(),
		Logger:          app.logger,
	})
	return server.Run(ctx, func(address string) {
		_, _ = fmt.Fprintf(destination, listeningMessageFormat, address)
	})
}

func runDigest(ctx context.Context, app application, rawURL string, format string, destination io.Writer, diagnostics io.Writer, copier clipboard.Copier) error {
	service, serviceErr := newAnalyzerService(app, false)
	if serviceErr != nil {
		return serviceErr
	}
	result, digestErr := service.Digest(ctx, rawURL)
	if digestErr != nil {
		return digestErr
	}
	text, renderErr := output.RenderDigest(result.Reference.FullName(), result.Digest, result.Tokens, format)
	if renderErr != nil {
		return renderErr
	}
	if _, writeErr := fmt.Fprintln(destination, text); writeErr != nil {
		return writeErr
	}
	if result.Tokens != nil && format == types.FormatRaw {
		if reportErr := writeTokenReport(diagnostics, *result.Tokens); reportErr != nil {
			return reportErr
		}
	}
	if copier != nil {
		if copyErr := copier.Copy(text); copyErr != nil {
			return copyErr
		}
		_, writeErr := fmt.Fprintln(diagnostics, copiedMessage)
		return writeErr
	}
	return nil
}

func runSummarize(ctx context.Context, app application, rawURL string, format string, destination io.Writer) error {
	service, serviceErr := newAnalyzerService(app, true)
	if serviceErr != nil {
		return serviceErr
	}
	summary, summarizeErr := service.Summarize(ctx, rawURL)
	if summarizeErr != nil {
		return summarizeErr
	}
	rendered, renderErr := output.RenderSummary(summary, format)
	if renderErr != nil {
		return renderErr
	}
	_, writeErr := fmt.Fprintln(destination, rendered)
	return writeErr
}

func writeTokenReport(destination io.Writer, report tokenizer.Report) error {
	if _, err := fmt.Fprintf(destination, tokenReportHeaderFormat, report.Encoding, report.Total); err != nil {
		return err
	}
	for _, section := range report.Sections {
		if _, err := fmt.Fprintf(destination, tokenReportSectionFormat, section.Name, section.Tokens); err != nil {
			return err
		}
	}
	return nil
}

// newAnalyzerService wires the fetcher, digest builder, optional summarizer and optional token counter.
func newAnalyzerService(app application, withSummarizer bool) (*analyzer.Service, error) {
	policy := digest.NewPolicy(app.configuration.Digest.PolicyOptions())
	fetcher, fetcherErr := newFetcher(app.configuration.GitHub, policy, app.logger)
	if fetcherErr != nil {
		return nil, fetcherErr
	}

	var summarizerClient summarizer.Summarizer
	if withSummarizer {
		summarizerConfig, configErr := app.configuration.LLM.SummarizerConfig()
		if configErr != nil {
			return nil, configErr
		}
		client, clientErr := summarizer.New(summarizerConfig, app.logger)
		if clientErr != nil {
			return nil, clientErr
		}
		summarizerClient = client
	}

	service := analyzer.NewService(fetcher, digest.NewBuilder(policy), summarizerClient, app.logger)
	if app.configuration.Digest.TokenCountingEnabled() {
		counter, encoding, counterErr := tokenizer.NewCounter(tokenizer.Config{Model: app.configuration.Digest.TokenModel})
		if counterErr != nil {
			return nil, counterErr
		}
		app.logger.Debug("token counting enabled", zap.String("encoding", encoding))
		service = service.WithTokenCounter(counter)
	}
	return service, nil
}

func newFetcher(configuration config.GitHubConfiguration, policy digest.Policy, logger *zap.Logger) (github.Fetcher, error) {
	timeout, timeoutErr := configuration.TimeoutDuration()
	if timeoutErr != nil {
		return github.Fetcher{}, timeoutErr
	}
	fetcher := github.NewFetcher(nil).
		WithAPIBase(configuration.APIBase).
		WithUserAgent(fmt.Sprintf(userAgentFormat, utils.ApplicationName, utils.GetApplicationVersion())).
		WithTimeout(timeout).
		WithAuthorizationToken(configuration.Token).
		WithPolicy(policy).
		WithLogger(logger)
	if configuration.Concurrency != nil {
		fetcher = fetcher.WithConcurrency(*configuration.Concurrency)
	}
	if configuration.RequestsPerSecond != nil {
		fetcher = fetcher.WithRequestsPerSecond(*configuration.RequestsPerSecond)
	}
	return fetcher, nil
}
