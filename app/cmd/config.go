package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexcodex/optima/config"
)

// newConfigCmd registers subcommands that inspect or mutate config.yaml.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or modify config.yaml",
	}
	cmd.AddCommand(newConfigGetCmd(), newConfigSetCmd(), newConfigInitCmd())
	return cmd
}

// newConfigGetCmd prints the value referenced by a dotted key. Keys absent
// from the file report their default.
func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Read a config value by dotted key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.ReadMap(cfgFile)
			if err != nil {
				return err
			}
			value, ok := config.GetValue(data, args[0])
			if !ok {
				value, ok = config.GetValue(config.DefaultMap(), args[0])
			}
			if !ok {
				return fmt.Errorf("key %s not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.PrettyValue(value))
			return nil
		},
	}
}

// newConfigSetCmd updates a dotted key with the provided value.
func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Update a config value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.ReadMap(cfgFile)
			if err != nil {
				return err
			}
			if err := config.SetValue(data, args[0], config.ParseValue(args[1])); err != nil {
				return err
			}
			if err := config.WriteMap(cfgFile, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	}
}

// newConfigInitCmd writes the defaults so they can be edited by hand.
func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config.yaml populated with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.ReadMap(cfgFile)
			if err != nil {
				return err
			}
			if len(data) > 0 && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgFile)
			}
			if err := config.Save(cfgFile, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfgFile)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
