package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dzerik/swa-emulator/internal/config"
	"github.com/dzerik/swa-emulator/internal/help"
	"github.com/dzerik/swa-emulator/internal/schema"
)

// cliOptions holds parsed CLI options.
type cliOptions struct {
	configPath   string
	showVersion  bool
	showHelp     bool
	schemaType   string
	schemaOutput string
}

// parseFlags parses CLI flags and returns options.
func parseFlags() *cliOptions {
	opts := &cliOptions{}

	flag.StringVar(&opts.configPath, "config", getEnv(config.EnvPrefix+"_SETTINGS", ""), "Path to the settings YAML file")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.BoolVar(&opts.showHelp, "help", false, "Show extended help")
	flag.StringVar(&opts.schemaType, "schema", "", "Print a JSON schema (config or swa) and exit")
	flag.StringVar(&opts.schemaOutput, "schema-output", "", "Output file for schema (default: stdout)")
	flag.Parse()

	return opts
}

// handleInfoCommands handles --version, --help and --schema. It reports
// whether a command ran and the program should exit.
func handleInfoCommands(opts *cliOptions) (bool, error) {
	helpGen := help.NewGenerator(help.AppInfo{
		Name:        "swa-emulator",
		Description: "Local emulator for Azure Static Web Apps routing and auth",
		Version:     Version,
		BuildTime:   BuildTime,
		DocsURL:     "https://github.com/dzerik/swa-emulator",
	}, config.EnvPrefix)

	switch {
	case opts.showVersion:
		fmt.Print(helpGen.PrintVersion())
		return true, nil
	case opts.showHelp:
		fmt.Print(helpGen.PrintExtendedHelp())
		return true, nil
	case opts.schemaType != "":
		return true, writeSchema(opts.schemaType, opts.schemaOutput)
	}
	return false, nil
}

// writeSchema prints the requested JSON schema.
func writeSchema(kind, outputPath string) error {
	st, ok := schema.ParseSchemaType(kind)
	if !ok {
		return fmt.Errorf("unknown schema %q, expected one of %v", kind, schema.GetAvailableSchemas())
	}

	data, err := schema.NewGenerator().Generate(st)
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if outputPath == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	fmt.Printf("Schema written to %s\n", outputPath)
	return nil
}
