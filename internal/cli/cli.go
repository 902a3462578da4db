package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/jaffgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("jaffgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
jaffgo - chemical network parser and code generator.

Usage:
  jaffgo [options] NETWORK_FILE

Arguments:
  NETWORK_FILE
    Path to a reaction network file (kida, udfa, prizmo, krome or uclchem).

Options:
`)
		flagSet.PrintDefaults()
	}

	networkFlag := flagSet.String("network", "", "Path to the network file.")
	nFlag := flagSet.String("n", "", "Path to the network file (shorthand).")
	templatesFlag := flagSet.String("templates", "", "Directory containing template files to render.")
	outputFlag := flagSet.String("output", "generated", "Directory for rendered output files.")
	languagesFlag := flagSet.String("languages", "", "Comma-separated HCL language descriptor files.")
	languageFlag := flagSet.String("language", "", "Force one target language for every template.")
	labelFlag := flagSet.String("label", "", "Network label. Defaults to the network file name.")
	noValidateFlag := flagSet.Bool("no-validate", false, "Skip strict conservation validation.")
	rateTableFlag := flagSet.String("rate-table", "", "Write a tabulated rate coefficient file to this path.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 4, "Number of concurrent template workers.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *networkFlag != "" {
		path = *networkFlag
	} else if *nFlag != "" {
		path = *nFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Network path determined.", "path", path)

	if path == "" {
		slog.Debug("No network path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	var languagePaths []string
	for _, p := range strings.Split(*languagesFlag, ",") {
		if p = strings.TrimSpace(p); p != "" {
			languagePaths = append(languagePaths, p)
		}
	}

	config, err := app.NewConfig(app.Config{
		NetworkPath:   path,
		TemplatesPath: *templatesFlag,
		OutputPath:    *outputFlag,
		LanguagePaths: languagePaths,
		Language:      *languageFlag,
		Label:         *labelFlag,
		NoValidate:    *noValidateFlag,
		RateTablePath: *rateTableFlag,
		LogFormat:     logFormat,
		LogLevel:      logLevel,
		WorkerCount:   *workersFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
