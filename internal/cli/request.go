package cli

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/lancar"
	"github.com/ambiyansyah-risyal/lancar/internal/output"
)

type requestOptions struct {
	headers    []string
	query      []string
	timeout    time.Duration
	allow      string
	bearer     string
	user       string
	configPath string
	verbose    bool
	noColor    bool

	jsonBody string
	data     string
	form     []string
}

func newMethodCmd(use, method string, withBody bool, opts *requestOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " URL",
		Short: fmt.Sprintf("Send a %s request to URL", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, method, args[0], opts)
		},
	}
	if withBody {
		cmd.Flags().StringVar(&opts.jsonBody, "json", "", "JSON request body")
		cmd.Flags().StringVarP(&opts.data, "data", "d", "", "raw request body")
		cmd.Flags().StringArrayVarP(&opts.form, "form", "f", nil, "form field name=value (repeatable)")
		cmd.MarkFlagsMutuallyExclusive("json", "data", "form")
	}
	return cmd
}

func runRequest(cmd *cobra.Command, method, rawURL string, opts *requestOptions) error {
	out := cmd.OutOrStdout()
	formatter := output.NewFormatter(opts.verbose, output.SchemeFor(out, opts.noColor))

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	factory := lancar.NewClientFactory(
		lancar.WithFactoryName("cli"),
		lancar.WithClientOptions(cfg.ClientOptions()...),
	)
	defer factory.Close()

	var applyErr error
	err = factory.ConfigureClient(rawURL, func(c *lancar.Client) {
		applyErr = cfg.Apply(c.Settings())
		c.SetHeader("User-Agent", lancar.UserAgent())
		if opts.verbose {
			c.Settings().SetLogger(lancar.NewSimpleLogger())
		}
	})
	if err != nil {
		return err
	}
	if applyErr != nil {
		return applyErr
	}

	client, err := factory.Get(rawURL)
	if err != nil {
		return err
	}
	req, err := client.NewRequest(rawURL)
	if err != nil {
		return err
	}
	req, err = buildRequest(req, opts)
	if err != nil {
		return err
	}
	content, err := buildContent(method, opts)
	if err != nil {
		return err
	}

	resp, err := req.Send(cmd.Context(), method, content)
	var callErr *lancar.CallError
	if errors.As(err, &callErr) && callErr.Call != nil {
		fmt.Fprint(out, formatter.FormatRequest(callErr.Call))
		if callErr.Call.Response != nil {
			fmt.Fprint(out, formatter.FormatResponse(callErr.Call.Response))
		}
		return err
	}
	if err != nil {
		return err
	}
	defer resp.Close()

	fmt.Fprint(out, formatter.FormatRequest(resp.Call()))
	fmt.Fprint(out, formatter.FormatResponse(resp))
	return nil
}

func loadConfig(path string) (*lancar.Config, error) {
	if path != "" {
		return lancar.LoadConfigFile(path)
	}
	return lancar.LoadConfig()
}

func buildRequest(req *lancar.Request, opts *requestOptions) (*lancar.Request, error) {
	for _, h := range opts.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Name: value'", h)
		}
		req = req.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	if len(opts.query) > 0 {
		params, err := parsePairs(opts.query, "query parameter")
		if err != nil {
			return nil, err
		}
		req = req.SetQueryParams(params)
	}

	if opts.user != "" {
		user, pass, _ := strings.Cut(opts.user, ":")
		req = req.WithBasicAuth(user, pass)
	}
	if opts.bearer != "" {
		req = req.WithOAuthBearerToken(opts.bearer)
	}
	if opts.timeout > 0 {
		req = req.WithTimeout(opts.timeout)
	}
	if opts.allow != "" {
		req = req.AllowHTTPStatus(opts.allow)
	}
	return req, nil
}

func buildContent(method string, opts *requestOptions) (lancar.Content, error) {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return lancar.NoContent, nil
	}

	switch {
	case opts.jsonBody != "":
		return lancar.StringContent(opts.jsonBody, lancar.ContentTypeJSON), nil
	case opts.data != "":
		return lancar.StringContent(opts.data, ""), nil
	case len(opts.form) > 0:
		fields, err := parsePairs(opts.form, "form field")
		if err != nil {
			return nil, err
		}
		return lancar.FormContent(fields), nil
	}
	return lancar.NoContent, nil
}

func parsePairs(items []string, what string) (lancar.Values, error) {
	values := make(lancar.Values, 0, len(items))
	for _, item := range items {
		name, value, ok := strings.Cut(item, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid %s %q, expected name=value", what, item)
		}
		values = append(values, lancar.Pair{Name: name, Value: value})
	}
	return values, nil
}
