package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/monitor"
)

var probeOpts struct {
	status      int
	contentType string
	body        string
}

// probeCmd runs a single probe without touching the database
var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Probe a URL once and print the outcome",
	Long: `Probe a URL once with the same rules the scheduler applies and print
the outcome. Exits non-zero when the check fails.

Example:
  kabomba-status probe https://example.com/health --status 200 --body '{"status":"ok"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().IntVar(&probeOpts.status, "status", models.DefaultExpectedStatus, "expected HTTP status code")
	probeCmd.Flags().StringVar(&probeOpts.contentType, "content-type", "", "expected Content-Type substring")
	probeCmd.Flags().StringVar(&probeOpts.body, "body", "", "expected body (JSON subset or substring)")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc := &models.Service{
		Name:           args[0],
		URL:            args[0],
		ExpectedStatus: probeOpts.status,
	}
	if probeOpts.contentType != "" {
		svc.ExpectedContentType = &probeOpts.contentType
	}
	if probeOpts.body != "" {
		svc.ExpectedBody = &probeOpts.body
	}

	guard := monitor.NewURLGuard(cfg.AllowPrivateIPs)
	if err := guard.ValidateURL(cmd.Context(), svc.URL); err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	res := monitor.NewHTTPProber(guard).Probe(cmd.Context(), svc, cfg.Checker.DefaultTimeout)

	out := cmd.OutOrStdout()
	status := "-"
	if res.StatusCode != nil {
		status = fmt.Sprint(*res.StatusCode)
	}
	fmt.Fprintf(out, "url:           %s\n", svc.URL)
	fmt.Fprintf(out, "status code:   %s\n", status)
	fmt.Fprintf(out, "response time: %dms\n", res.ResponseTimeMs)
	if res.Success {
		fmt.Fprintln(out, "result:        up")
		return nil
	}
	fmt.Fprintln(out, "result:        down")
	fmt.Fprintf(out, "error:         %s\n", res.ErrorMessage)
	return fmt.Errorf("check failed")
}
