// Package openapi provides the CLI command that exports the generated
// OpenAPI document to a file, for publishing or client generation outside
// the running service.
package openapi

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crudkit/crudkit/pkg/config"
	"github.com/crudkit/crudkit/pkg/crud"
	"github.com/crudkit/crudkit/pkg/observability/logger"
	serveropenapi "github.com/crudkit/crudkit/pkg/server/openapi"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ConfigLoader loads the service config using command flags.
type ConfigLoader func(flags *pflag.FlagSet) (*config.Config, logger.Logger, error)

// CommandOptions configures the OpenAPI command tree.
type CommandOptions struct {
	Models         []crud.Descriptor
	LoadConfig     ConfigLoader
	ServiceName    string
	ServiceVersion string
	Stdout         io.Writer
}

// NewCommand creates the "openapi" command and its subcommands. It returns
// nil when no models are registered: there is nothing to describe.
func NewCommand(opts CommandOptions) *cobra.Command {
	if len(opts.Models) == 0 || opts.LoadConfig == nil {
		return nil
	}

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "OpenAPI specification commands",
	}

	var outputPath string
	var titleOverride string
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the OpenAPI specification for the registered models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts, outputPath, titleOverride)
		},
	}
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "openapi.generated.yaml", "output file path (.yaml or .json)")
	generateCmd.Flags().StringVar(&titleOverride, "title", "", "OpenAPI title override")
	cmd.AddCommand(generateCmd)

	return cmd
}

func runGenerate(
	cmd *cobra.Command,
	opts CommandOptions,
	outputPath string,
	titleOverride string,
) error {
	cfg, _, err := opts.LoadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	registry := crud.NewRegistry()
	for _, desc := range opts.Models {
		if err := registry.Register(desc); err != nil {
			return fmt.Errorf("register model %q: %w", desc.Collection, err)
		}
	}

	title := strings.TrimSpace(titleOverride)
	if title == "" {
		title = strings.TrimSpace(cfg.Service.Name)
	}
	if title == "" {
		title = strings.TrimSpace(opts.ServiceName)
	}

	generator, err := serveropenapi.NewGenerator(title, strings.TrimSpace(opts.ServiceVersion), registry)
	if err != nil {
		return err
	}
	if err := generator.WriteFile(outputPath); err != nil {
		return err
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	_, _ = fmt.Fprintf(stdout, "✓ OpenAPI spec generated at %s (%d models)\n", outputPath, len(opts.Models))
	return nil
}
