package cli

import (
	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/lancar"
)

// NewRootCmd builds the lancar command tree.
func NewRootCmd() *cobra.Command {
	opts := &requestOptions{}

	root := &cobra.Command{
		Use:     "lancar",
		Short:   "Send HTTP requests from the terminal",
		Version: lancar.Version,
		Long: `lancar sends one HTTP request with the lancar client library and prints
the response. Defaults are read from LANCAR_* environment variables or a YAML
file given with --config.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.SetVersionTemplate(lancar.GetVersion() + "\n")

	flags := root.PersistentFlags()
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "HTTP header 'Name: value' (repeatable)")
	flags.StringArrayVarP(&opts.query, "query", "q", nil, "query parameter name=value (repeatable)")
	flags.DurationVarP(&opts.timeout, "timeout", "t", 0, "call timeout (0 uses the configured default)")
	flags.StringVar(&opts.allow, "allow", "", "status range treated as success, e.g. 4xx,500-503 or *")
	flags.StringVar(&opts.bearer, "bearer", "", "OAuth bearer token")
	flags.StringVarP(&opts.user, "user", "u", "", "basic auth credentials user:password")
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print headers and debug logs")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newMethodCmd("get", "GET", false, opts),
		newMethodCmd("head", "HEAD", false, opts),
		newMethodCmd("delete", "DELETE", false, opts),
		newMethodCmd("options", "OPTIONS", false, opts),
		newMethodCmd("post", "POST", true, opts),
		newMethodCmd("put", "PUT", true, opts),
		newMethodCmd("patch", "PATCH", true, opts),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}
