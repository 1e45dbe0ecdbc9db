package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"harnss7/cmd/s7client/options"
	"harnss7/pkg/generic"
	"harnss7/pkg/web"
	utilserrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/component-base/version"
	"k8s.io/klog/v2"
)

const ComponentS7Client = "s7client"

func NewS7ClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   ComponentS7Client,
		Short: "Client and collector for Siemens S7 PLCs",
		Long: `s7client talks ISO-on-TCP to Siemens S7 PLCs. It reads and writes
process data, reports and changes the CPU state, and as a server collects
the variables of configured devices and publishes them over MQTT.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newServeCmd(),
		newReadCmd(),
		newWriteCmd(),
		newStatusCmd(),
		newControlCmd(),
	)
	return cmd
}

func newServeCmd() *cobra.Command {
	o := options.NewDefaultOptions()
	return newCommand("serve", "Collect configured devices and serve the REST api",
		`The serve command keeps the configured S7 devices connected, polls their
variables and publishes the values to MQTT. Devices are managed through
the REST api.`,
		o, func() interface{} { return options.NewDefaultOptions() }, false,
		func(cmd *cobra.Command, args []string) error {
			if errs := options.Validate(o); len(errs) != 0 {
				return utilserrors.NewAggregate(errs)
			}
			// To help debugging, immediately log version
			klog.InfoS("Starting", "component", ComponentS7Client, "version", version.Get())
			return run(o)
		})
}

func run(o *options.Options) error {
	stopCh := make(chan struct{})

	c, err := o.Config(stopCh)
	if err != nil {
		close(stopCh)
		return err
	}

	server, err := web.NewServer(generic.Default(), o, c)
	if err != nil {
		close(stopCh)
		return err
	}

	exit, err := server.Serve()
	if err != nil {
		close(stopCh)
		return err
	}
	klog.V(1).InfoS("Server started", "port", o.Port)

	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	exitCh := make(chan os.Signal, 1)
	signal.Notify(exitCh, syscall.SIGINT, syscall.SIGTERM)
	<-exitCh
	ctx, cancel := context.WithTimeout(context.Background(), o.Wait)
	defer cancel()

	exit(ctx)
	close(stopCh)
	return nil
}
