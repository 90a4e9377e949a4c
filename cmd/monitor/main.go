package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/NordCoder/opsmonitor/internal/command"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errReported marks a failure whose payload was already written.
var errReported = errors.New("command failed")

var cfgPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "opsmonitor",
		Short:         "Service health monitoring: probes, incidents, diagnosis, alerts and uptime reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", os.Getenv("OPSMONITOR_CONFIG"), "path to a yaml config file")

	root.AddCommand(
		newHealthCheckCmd(),
		newDiagnoseCmd(),
		newAlertCmd(),
		newStatusReportCmd(),
		newServeCmd(),
		newKafkaInitCmd(),
	)
	return root
}

func newHealthCheckCmd() *cobra.Command {
	var (
		endpoints []string
		timeout   int
		enqueue   bool
	)
	cmd := &cobra.Command{
		Use:   "health-check [url...]",
		Short: "Probe endpoints and record their health",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoints = append(endpoints, args...)
			if enqueue {
				return enqueueCheck(cmd, endpoints, timeout)
			}
			in := map[string]any{"endpoints": endpoints}
			if cmd.Flags().Changed("timeout") {
				in["timeout_seconds"] = timeout
			}
			return runCommand(cmd, command.HealthCheck, in)
		},
	}
	cmd.Flags().StringSliceVarP(&endpoints, "endpoint", "e", nil, "endpoint URL (repeatable); defaults to monitor.default_endpoints")
	cmd.Flags().IntVarP(&timeout, "timeout", "t", command.DefaultTimeoutSeconds, "per-probe timeout in seconds (1-60)")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "publish a check request to kafka_in instead of probing locally")
	return cmd
}

func newDiagnoseCmd() *cobra.Command {
	var lookback int
	cmd := &cobra.Command{
		Use:   "diagnose <service>",
		Short: "Analyze recent incidents of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := map[string]any{"service_name": args[0]}
			if cmd.Flags().Changed("lookback") {
				in["lookback_minutes"] = lookback
			}
			return runCommand(cmd, command.Diagnose, in)
		},
	}
	cmd.Flags().IntVarP(&lookback, "lookback", "l", command.DefaultLookbackMinutes, "lookback window in minutes (5-1440)")
	return cmd
}

func newAlertCmd() *cobra.Command {
	var (
		service, severity, message string
		channels                   []string
	)
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Send an alert through the configured channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := map[string]any{
				"service_name": service,
				"severity":     severity,
				"message":      message,
			}
			if cmd.Flags().Changed("channel") {
				in["channels"] = channels
			}
			return runCommand(cmd, command.Alert, in)
		},
	}
	cmd.Flags().StringVarP(&service, "service", "s", "", "service name")
	cmd.Flags().StringVar(&severity, "severity", "warning", "info, warning or critical")
	cmd.Flags().StringVarP(&message, "message", "m", "", "alert message")
	cmd.Flags().StringSliceVar(&channels, "channel", nil, "channel (repeatable); defaults to email and chat")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

func newStatusReportCmd() *cobra.Command {
	var (
		start, end string
		services   []string
	)
	cmd := &cobra.Command{
		Use:   "status-report",
		Short: "Summarize uptime per service",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := map[string]any{}
			if start != "" {
				in["start_date"] = start
			}
			if end != "" {
				in["end_date"] = end
			}
			if len(services) > 0 {
				in["services"] = services
			}
			return runCommand(cmd, command.StatusReport, in)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "period start (YYYY-MM-DD or RFC3339); defaults to today 00:00 UTC")
	cmd.Flags().StringVar(&end, "end", "", "period end; defaults to now")
	cmd.Flags().StringSliceVar(&services, "service", nil, "restrict the report to these services")
	return cmd
}

func runCommand(cmd *cobra.Command, name string, in map[string]any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	a, err := bootstrap(cmd.Context(), cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.registry.Execute(cmd.Context(), name, raw)
	if err != nil {
		writeError(cmd.ErrOrStderr(), err)
		return errReported
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func writeError(w io.Writer, err error) {
	b, mErr := json.Marshal(map[string]*command.Error{"error": command.AsError(err)})
	if mErr != nil {
		fmt.Fprintln(w, err)
		return
	}
	fmt.Fprintln(w, string(b))
}
