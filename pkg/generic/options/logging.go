package options

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/component-base/config"
	"k8s.io/component-base/logs"
	"k8s.io/component-base/logs/registry"
)

var visibleLoggingFlags = sets.NewString("v", "vmodule", "logging-format")

type LoggingConfiguration struct {
	config.LoggingConfiguration
}

func NewDefaultLoggingConfiguration() LoggingConfiguration {
	return LoggingConfiguration{config.LoggingConfiguration{Format: "text", Verbosity: 2}}
}

func (l *LoggingConfiguration) ValidateAndApply() error {
	o := logs.NewOptions()
	o.Config.Format = l.Format
	o.Config.Verbosity = l.Verbosity
	o.Config.VModule = l.VModule
	return o.ValidateAndApply()
}

// loggingFile is the config file shape, the embedded component-base type
// carries fields that cannot be set from here.
type loggingFile struct {
	Format    string                      `json:"format,omitempty"`
	Verbosity config.VerbosityLevel       `json:"verbosity"`
	VModule   config.VModuleConfiguration `json:"vmodule,omitempty"`
}

func (l LoggingConfiguration) MarshalJSON() ([]byte, error) {
	return json.Marshal(loggingFile{Format: l.Format, Verbosity: l.Verbosity, VModule: l.VModule})
}

func (l *LoggingConfiguration) UnmarshalJSON(data []byte) error {
	in := loggingFile{Format: l.Format, Verbosity: l.Verbosity, VModule: l.VModule}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	l.Format, l.Verbosity, l.VModule = in.Format, in.Verbosity, in.VModule
	return nil
}

// BindLoggingFlags adds the component-base logging flags to fs, all but
// the verbosity and format flags hidden.
func (l *LoggingConfiguration) BindLoggingFlags(fs *pflag.FlagSet) {
	logsFs := pflag.NewFlagSet("", pflag.ContinueOnError)
	logs.BindLoggingFlags(&l.LoggingConfiguration, logsFs)
	logsFs.VisitAll(func(f *pflag.Flag) {
		if !visibleLoggingFlags.Has(f.Name) {
			f.Hidden = true
			return
		}
		if f.Name == "logging-format" {
			f.Usage = fmt.Sprintf("Log format, one of %q.", strings.Join(registry.LogRegistry.List(), ", "))
		}
	})
	fs.AddFlagSet(logsFs)
}
