package cli

import (
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/r9s-ai/seo-router/internal/config"
	"github.com/r9s-ai/seo-router/internal/metadata"
	"github.com/r9s-ai/seo-router/internal/proxy"
)

type matchOptions struct {
	cfgPath string
	referer string
}

func newMatchCmd() *cobra.Command {
	opts := matchOptions{}
	cmd := &cobra.Command{
		Use:   "match <path>",
		Short: "Show how a request path would be served (no network)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd.OutOrStdout(), opts, args[0])
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.cfgPath, "config", "c", defaultConfigPath, "config yaml path")
	fs.StringVar(&opts.referer, "referer", "", "Referer header to classify page data requests with")
	return cmd
}

func runMatch(w io.Writer, opts matchOptions, rawPath string) error {
	cfg, err := config.Load(opts.cfgPath)
	if err != nil {
		return fmt.Errorf("config %q: %w", opts.cfgPath, err)
	}
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	origin, err := cfg.OriginURL()
	if err != nil {
		return err
	}
	in, err := url.Parse(rawPath)
	if err != nil {
		return fmt.Errorf("path %q: %w", rawPath, err)
	}
	if in.Path == "" {
		in.Path = "/"
	}

	dec := proxy.Classify(reg, in.EscapedPath(), opts.referer)
	fmt.Fprintf(w, "kind:     %s\n", dec.Kind)
	target := origin.JoinPath(in.Path)
	target.RawQuery = in.RawQuery
	fmt.Fprintf(w, "origin:   %s\n", target.String())
	if dec.Pattern == nil {
		return nil
	}
	fmt.Fprintf(w, "pattern:  #%d %s\n", dec.Pattern.Index, dec.Pattern.Source)
	fmt.Fprintf(w, "id:       %s\n", metadata.IdentifierFromPath(dec.MetaPath))
	_, err = fmt.Fprintf(w, "metadata: %s\n", metadata.EndpointFor(dec.MetaPath, dec.Pattern.EndpointTemplate))
	return err
}
