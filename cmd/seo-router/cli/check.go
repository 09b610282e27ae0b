package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/r9s-ai/seo-router/internal/config"
	"github.com/r9s-ai/seo-router/internal/metadata"
	"github.com/r9s-ai/seo-router/internal/routes"
)

func newCheckCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config and print the route table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.OutOrStdout(), cfgPath, isTerminal(cmd.OutOrStdout()))
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "config yaml path")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) && strings.TrimSpace(os.Getenv("NO_COLOR")) == ""
}

func runCheck(w io.Writer, cfgPath string, styled bool) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config %q: %w", cfgPath, err)
	}
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "origin: %s\n", cfg.Origin.DomainSource)
	fmt.Fprintf(w, "listen: %s", cfg.Server.Listen)
	if cfg.Server.AdminListen != "" {
		fmt.Fprintf(w, "  admin: %s", cfg.Server.AdminListen)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	if styled {
		renderRoutesStyled(w, reg.Patterns())
	} else {
		renderRoutesPlain(w, reg.Patterns())
	}

	for _, warn := range cfg.Warnings {
		line := "warning: " + warn
		if styled {
			line = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render(line)
		}
		fmt.Fprintln(w, line)
	}
	ok := fmt.Sprintf("configuration ok (%d patterns)", reg.Len())
	if styled {
		ok = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true).Render(ok)
	}
	_, err = fmt.Fprintln(w, ok)
	return err
}

func routeRows(pats []routes.Pattern) [][]string {
	rows := make([][]string, 0, len(pats))
	for _, p := range pats {
		rows = append(rows, []string{
			strconv.Itoa(p.Index),
			p.Source,
			p.EndpointTemplate,
			strconv.Itoa(metadata.CountPlaceholders(p.EndpointTemplate)),
		})
	}
	return rows
}

var routeHeaders = []string{"#", "PATTERN", "METADATA ENDPOINT", "PLACEHOLDERS"}

func renderRoutesPlain(w io.Writer, pats []routes.Pattern) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(routeHeaders, "\t"))
	for _, row := range routeRows(pats) {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
	fmt.Fprintln(w)
}

func renderRoutesStyled(w io.Writer, pats []routes.Pattern) {
	rows := routeRows(pats)
	widths := make([]int, len(routeHeaders))
	for i, h := range routeHeaders {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := lipgloss.Width(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	index := lipgloss.NewStyle().Faint(true)
	cell := lipgloss.NewStyle()

	render := func(st lipgloss.Style, cells []string, first lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			s := st
			if i == 0 {
				s = first
			}
			parts[i] = s.Width(widths[i] + 2).Render(c)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	}

	fmt.Fprintln(w, render(header, routeHeaders, header))
	for _, row := range rows {
		fmt.Fprintln(w, render(cell, row, index))
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, lipgloss.NewStyle().Faint(true).Render("(no patterns: every request is passed through)"))
	}
	fmt.Fprintln(w)
}
