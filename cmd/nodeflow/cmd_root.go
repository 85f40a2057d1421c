package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/nodeflow/bootstrap"
	"github.com/kbukum/nodeflow/config"
)

const serviceName = "nodeflow"

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile   string
	envFile      string
	document     string
	storeBackend string
	storePath    string
	logLevel     string

	appOptions []bootstrap.Option
}

// newRootCmd builds the command tree. appOpts are passed to every app the
// subcommands create.
func newRootCmd(appOpts ...bootstrap.Option) *cobra.Command {
	opts := &rootOptions{appOptions: appOpts}
	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "Evaluate and debug node-graph documents",
		Long: `nodeflow runs node-graph documents. Data outputs are resolved on demand,
event listeners start execution flows, and a debug API pauses flows at
breakpoints for an editor to step through.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (default: nodeflow.yml or config.yml lookup)")
	flags.StringVar(&opts.envFile, "env-file", "", ".env file to load")
	flags.StringVarP(&opts.document, "document", "d", "", "document to load (YAML or JSON)")
	flags.StringVar(&opts.storeBackend, "store", "", "global store backend: memory or badger")
	flags.StringVar(&opts.storePath, "store-path", "", "directory of the badger store")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override")

	cmd.AddCommand(
		newResolveCmd(opts),
		newRunCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the configuration and applies flag overrides on top.
func (o *rootOptions) loadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	var loaderOpts []config.LoaderOption
	if o.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(o.configFile))
	}
	if o.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(o.envFile))
	}
	if err := config.LoadConfig(serviceName, cfg, loaderOpts...); err != nil {
		return nil, err
	}

	if o.storeBackend != "" {
		cfg.Store.Backend = o.storeBackend
	}
	if o.storePath != "" {
		cfg.Store.Badger.Path = o.storePath
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// runtime loads the config and creates a runtime for the document flag.
func (o *rootOptions) runtime(requireDocument bool) (*runtime, error) {
	if requireDocument && o.document == "" {
		return nil, fmt.Errorf("--document is required")
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return newRuntime(cfg, o.document, o.appOptions...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
