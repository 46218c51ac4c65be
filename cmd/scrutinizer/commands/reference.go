package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scrutinizer/internal/config"
	pkgconfig "github.com/Sumatoshi-tech/scrutinizer/pkg/config"
)

// NewConfigReferenceCommand creates the config-reference subcommand.
func NewConfigReferenceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config-reference",
		Short: "Print every configuration key with its default",
		Long: `Print a YAML document listing the root keys and every analyzer block of the
configuration document, with default values and descriptions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.LoadConfig(settingsPath(cmd))
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}

			registry, err := NewRegistry(settings)
			if err != nil {
				return err
			}

			schema, err := registry.Schema()
			if err != nil {
				return fmt.Errorf("build schema: %w", err)
			}

			doc, err := pkgconfig.Reference(schema)
			if err != nil {
				return fmt.Errorf("render reference: %w", err)
			}

			if _, err = cmd.OutOrStdout().Write(doc); err != nil {
				return fmt.Errorf("write reference: %w", err)
			}

			return nil
		},
	}
}
