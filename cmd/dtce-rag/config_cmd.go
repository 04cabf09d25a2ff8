package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dtce-ai/dtce-rag/config"
)

func newConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	var requireSecrets bool
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(requireSecrets); err != nil {
				var verrs config.ValidationErrors
				if errors.As(err, &verrs) {
					red := color.New(color.FgRed)
					for _, e := range verrs {
						red.Fprintf(cmd.OutOrStdout(), "%s: %s\n", e.Field, e.Message)
					}
					return fmt.Errorf("%d configuration error(s) in %s", len(verrs), root.configPath)
				}
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "%s is valid\n", root.configPath)
			return nil
		},
	}
	validate.Flags().BoolVar(&requireSecrets, "require-secrets", false, "also require API keys and endpoints")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			cfg.LLM.APIKey = redact(cfg.LLM.APIKey)
			cfg.Index.APIKey = redact(cfg.Index.APIKey)
			cfg.Cache.Redis.Password = redact(cfg.Cache.Redis.Password)
			cfg.Session.Redis.Password = redact(cfg.Session.Redis.Password)
			out, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.AddCommand(validate, show)
	return cmd
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
