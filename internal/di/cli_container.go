package di

import (
	"flag"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/gmail-sweeper/internal/config"
	"github.com/mikey/gmail-sweeper/internal/factory"
	"github.com/mikey/gmail-sweeper/internal/logging"
	"github.com/mikey/gmail-sweeper/internal/utils"
)

// CLIFlags contains all command line flags for the diagnostic utility
type CLIFlags struct {
	Verbose bool
	JSONLog bool
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container
// for the diagnostic utility. Commands that need the mail client construct it
// on demand from the mail factory, so check-config never authenticates.
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*factory.MailFactory, error) {
		creds, err := cfg.GetCredentials()
		if err != nil {
			return nil, err
		}
		return factory.NewMailFactory(creds, logger), nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
