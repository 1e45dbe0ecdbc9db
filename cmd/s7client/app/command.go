package app

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	baseoptions "harnss7/pkg/generic/options"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/version/verflag"
	"k8s.io/klog/v2"
)

type optioner interface {
	baseoptions.Optioner
	AddBaseFlags(cmd *cobra.Command, fs *pflag.FlagSet)
}

// newCommand wires a command that parses its flags into o itself, the way
// a component with a config file has to. run receives the positional
// arguments left after parsing.
func newCommand(use, short, long string, o optioner, defaults func() interface{}, acceptArgs bool, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	cleanFlagSet := pflag.NewFlagSet(use, pflag.ContinueOnError)
	cleanFlagSet.SetNormalizeFunc(cliflag.WordSepNormalizeFunc)
	cmd := &cobra.Command{
		Use:                use,
		Short:              short,
		Long:               long,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// initial flag parse, since we disable cobra's flag parsing
			if err := cleanFlagSet.Parse(args); err != nil {
				klog.ErrorS(err, "Failed to parse flag")
				_ = cmd.Usage()
				os.Exit(1)
			}

			cmds := cleanFlagSet.Args()
			if !acceptArgs && len(cmds) > 0 {
				klog.ErrorS(nil, "Unknown command", "command", cmds[0])
				_ = cmd.Usage()
				os.Exit(1)
			}

			if help, err := baseoptions.HelpRequested(cleanFlagSet); err != nil || help {
				_ = cmd.Help()
				return err
			}
			show, err := baseoptions.DefaultConfigRequested(cleanFlagSet)
			if err != nil {
				return err
			}
			if show {
				return baseoptions.WriteDefaultConfig(cmd.OutOrStdout(), defaults())
			}
			verflag.PrintAndExitIfRequested()

			if err = baseoptions.ParseAndApplyConfigFile(o, args); err != nil {
				return err
			}
			return run(cmd, cmds)
		},
	}

	verflag.AddFlags(cleanFlagSet)
	o.AddFlags(cleanFlagSet)
	o.AddBaseFlags(cmd, cleanFlagSet)
	return cmd
}
