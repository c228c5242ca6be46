package main

import "github.com/spf13/cobra"

// storeFlags selects which kill-switch store a command operates on.
type storeFlags struct {
	file   string
	redis  string
	prefix string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Path to a YAML kill-switch snapshot")
	cmd.Flags().StringVar(&f.redis, "redis", "", "Redis address (host:port) holding kill-switch state")
	cmd.Flags().StringVar(&f.prefix, "prefix", "trialrun", "Redis key prefix")
}

func buildKillswitchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "killswitch",
		Aliases: []string{"ks"},
		Short:   "Inspect and toggle experiment kill switches",
		Long: `Inspect and toggle kill-switch state in a file- or Redis-backed store.

Dispatchers sharing the store pick up file changes via their snapshot
watcher; Redis-backed dispatchers pick up changes on their next restart or
reload.`,
	}
	cmd.AddCommand(
		buildKillswitchListCmd(),
		buildKillswitchDisableCmd(),
		buildKillswitchEnableCmd(),
	)
	return cmd
}

func buildKillswitchListCmd() *cobra.Command {
	var flags storeFlags
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List disabled experiments and trials",
		Example: `  # List switches held in a snapshot file
  trialctl killswitch list --file killswitch.yaml

  # List switches held in Redis
  trialctl killswitch list --redis localhost:6379`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKillswitchList(cmd, flags, format)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")
	return cmd
}

func buildKillswitchDisableCmd() *cobra.Command {
	var flags storeFlags
	cmd := &cobra.Command{
		Use:   "disable <service> [trial]",
		Short: "Disable an experiment, or one of its trials",
		Long: `Disable routing for a service's experiment. With only a service argument the
whole experiment is disabled and every call runs the default trial. With a
trial argument only that trial is disabled; selection still runs, but calls
it would have routed are redirected to the default trial.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKillswitchToggle(cmd, flags, args, false)
		},
	}
	flags.register(cmd)
	return cmd
}

func buildKillswitchEnableCmd() *cobra.Command {
	var flags storeFlags
	cmd := &cobra.Command{
		Use:   "enable <service> [trial]",
		Short: "Re-enable an experiment, or one of its trials",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKillswitchToggle(cmd, flags, args, true)
		},
	}
	flags.register(cmd)
	return cmd
}
