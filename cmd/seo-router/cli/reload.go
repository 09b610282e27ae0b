package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/r9s-ai/seo-router/internal/config"
	"github.com/r9s-ai/seo-router/internal/server"
)

const reloadTimeout = 10 * time.Second

func newReloadCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask a running seo-router to reload its config",
		Long: "Reload POSTs /admin/reload on server.admin_listen. Without an admin " +
			"listener it sends SIGHUP to the pid in server.pid_file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), reloadTimeout)
			defer cancel()
			return runReload(ctx, cmd.OutOrStdout(), cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "config yaml path")
	return cmd
}

func runReload(ctx context.Context, w io.Writer, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config %q: %w", cfgPath, err)
	}
	if addr := strings.TrimSpace(cfg.Server.AdminListen); addr != "" {
		return reloadViaAdmin(ctx, w, addr, cfg.Server.AdminToken)
	}
	if pidFile := strings.TrimSpace(cfg.Server.PidFile); pidFile != "" {
		return reloadViaSignal(w, pidFile)
	}
	return errors.New("neither server.admin_listen nor server.pid_file is configured")
}

func reloadViaAdmin(ctx context.Context, w io.Writer, addr, token string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("admin_listen %q: %w", addr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	endpoint := "http://" + net.JoinHostPort(host, port) + "/admin/reload"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reload failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, err = fmt.Fprintf(w, "reload ok: %s\n", strings.TrimSpace(string(body)))
	return err
}

func reloadViaSignal(w io.Writer, pidFile string) error {
	pid, err := server.ReadPIDFile(pidFile)
	if err != nil {
		return err
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process pid=%d: %w", pid, err)
	}
	if err := p.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("send SIGHUP pid=%d: %w", pid, err)
	}
	_, err = fmt.Fprintf(w, "sent SIGHUP to pid %d\n", pid)
	return err
}
