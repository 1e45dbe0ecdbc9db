package options

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

// ParseAndApplyConfigFile loads the config file named by --config into o and
// then applies args again, so explicit flags win over the file.
func ParseAndApplyConfigFile(o Optioner, args []string) error {
	file := o.GetBaseOptions().ConfigFile
	if len(file) == 0 {
		return nil
	}
	path, err := filepath.Abs(file)
	if err != nil {
		return errors.Wrapf(err, "config file %s", file)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	if err = yaml.Unmarshal(data, o); err != nil {
		return errors.Wrapf(err, "decode config file %s", path)
	}
	klog.V(4).InfoS("Loaded config file", "file", path)

	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.SetNormalizeFunc(cliflag.WordSepNormalizeFunc)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	o.AddFlags(fs)
	o.GetBaseOptions().addFileFlags(fs)
	return fs.Parse(args)
}

func WriteDefaultConfig(w io.Writer, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "encode default config")
	}
	_, err = fmt.Fprintf(w, "# default configuration, every field may be set in a --config file\n%s", data)
	return err
}
