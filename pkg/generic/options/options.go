package options

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	flagConfig        = "config"
	flagHelp          = "help"
	flagDefaultConfig = "default-config"
)

// Optioner is implemented by every command option struct that embeds
// BaseOptions.
type Optioner interface {
	AddFlags(*pflag.FlagSet)
	GetBaseOptions() *BaseOptions
}

// BaseOptions are shared by all commands: a config file and logging.
type BaseOptions struct {
	ConfigFile string               `json:"-"`
	Logging    LoggingConfiguration `json:"logging"`
}

func NewDefaultBaseOptions() BaseOptions {
	return BaseOptions{Logging: NewDefaultLoggingConfiguration()}
}

func (bo *BaseOptions) GetBaseOptions() *BaseOptions {
	return bo
}

func (bo *BaseOptions) AddBaseFlags(cmd *cobra.Command, fs *pflag.FlagSet) {
	bo.addFileFlags(fs)
	fs.BoolP(flagHelp, "h", false, fmt.Sprintf("help for %s", cmd.Name()))
	fs.Bool(flagDefaultConfig, false, "Print the default configuration as yaml and exit")
	setUsage(cmd, fs)
}

// addFileFlags are the flags that may also be set by the config file, they
// are parsed a second time after the file is loaded.
func (bo *BaseOptions) addFileFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&bo.ConfigFile, flagConfig, "c", bo.ConfigFile, "Yaml file with the initial configuration, flags given on the command line take precedence over it")
	bo.Logging.BindLoggingFlags(fs)
}

func (bo *BaseOptions) ValidateAndApply() error {
	return bo.Logging.ValidateAndApply()
}

// setUsage keeps cobra from adding its global flags to the help output.
func setUsage(cmd *cobra.Command, fs *pflag.FlagSet) {
	const usageFmt = "Usage:\n  %s\n\nFlags:\n%s"
	cmd.SetUsageFunc(func(cmd *cobra.Command) error {
		_, _ = fmt.Fprintf(cmd.OutOrStderr(), usageFmt, cmd.UseLine(), fs.FlagUsagesWrapped(2))
		return nil
	})
	cmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n"+usageFmt, cmd.Long, cmd.UseLine(), fs.FlagUsagesWrapped(2))
	})
}

func HelpRequested(fs *pflag.FlagSet) (bool, error) {
	return fs.GetBool(flagHelp)
}

func DefaultConfigRequested(fs *pflag.FlagSet) (bool, error) {
	return fs.GetBool(flagDefaultConfig)
}
