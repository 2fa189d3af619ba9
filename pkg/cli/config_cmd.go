package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration profiles",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigUseCmd())
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no config file found")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current profile: %s\n", cfg.CurrentProfile)
			for name, p := range cfg.Profiles {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: endpoint=%s output=%s\n", name, p.Endpoint, p.Output)
			}
			return nil
		},
	}
}

func newConfigUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <profile>",
		Short: "Switch the current profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = &UserConfig{Profiles: map[string]Profile{}}
			}
			if _, ok := cfg.Profiles[args[0]]; !ok {
				return fmt.Errorf("profile %q does not exist (set a value first with: config set)", args[0])
			}
			cfg.CurrentProfile = args[0]
			return SaveUserConfig(cfg)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a profile value (endpoint, token, output)",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = &UserConfig{CurrentProfile: "default", Profiles: map[string]Profile{}}
			}
			name := cfg.CurrentProfile
			if profile != "" {
				name = profile
			}
			if name == "" {
				name = "default"
				cfg.CurrentProfile = name
			}

			p := cfg.Profiles[name]
			switch args[0] {
			case "endpoint":
				p.Endpoint = args[1]
			case "token":
				p.Token = args[1]
			case "output":
				p.Output = args[1]
			default:
				return fmt.Errorf("unknown key %q (want endpoint, token, or output)", args[0])
			}
			cfg.Profiles[name] = p
			return SaveUserConfig(cfg)
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "Profile to modify (default: current)")
	return cmd
}
