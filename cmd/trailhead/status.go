// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/trailhead/trailhead/internal/config"
)

const probeTimeout = 2 * time.Second

// ProbeStatus is the result of one health probe against a running server.
type ProbeStatus struct {
	Probe     string `json:"probe"`
	Healthy   bool   `json:"healthy"`
	Code      int    `json:"code,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type statusConfig struct {
	jsonOutput bool
	client     *http.Client
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{client: &http.Client{Timeout: probeTimeout}}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running Trailhead server",
		Long: `Query the liveness and readiness health endpoints of a running server
on its metrics address and report whether it is running.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().String("metrics-addr", "", "metrics/health address of the server to query")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	loaded, err := config.Load(config.LoadOptions{Path: configFile, Flags: cmd.Flags(), Partial: true})
	if err != nil {
		return err
	}
	if loaded.Metrics.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("metrics.addr is empty; the health endpoints are disabled")
	}

	base := "http://" + loaded.Metrics.Addr
	statuses := []ProbeStatus{
		probe(cmd.Context(), cfg.client, "liveness", base+"/healthz/liveness"),
		probe(cmd.Context(), cfg.client, "readiness", base+"/healthz/readiness"),
	}

	var output string
	if cfg.jsonOutput {
		output, err = formatStatusJSON(statuses)
		if err != nil {
			return err
		}
	} else {
		output = formatStatusTable(loaded.Metrics.Addr, statuses)
	}
	cmd.Println(output)
	return nil
}

// probe issues a GET and treats any 2xx answer as healthy.
func probe(ctx context.Context, client *http.Client, name, url string) ProbeStatus {
	if ctx == nil {
		ctx = context.Background()
	}
	status := ProbeStatus{Probe: name}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		status.Error = fmt.Sprintf("failed to build request: %v", err)
		return status
	}

	start := time.Now()
	resp, err := client.Do(req)
	status.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	status.Code = resp.StatusCode
	status.Healthy = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !status.Healthy {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		status.Error = strings.TrimSpace(string(body))
	}
	return status
}

func formatStatusTable(addr string, statuses []ProbeStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "SERVER %s\n", addr)
	_, _ = fmt.Fprintln(w, "PROBE\tSTATUS\tCODE\tLATENCY\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t-------\t------")
	for _, s := range statuses {
		state := "healthy"
		if !s.Healthy {
			state = "unhealthy"
		}
		code := "-"
		if s.Code != 0 {
			code = fmt.Sprintf("%d", s.Code)
		}
		detail := s.Error
		if detail == "" {
			detail = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Probe, state, code, formatLatency(s.LatencyMS), detail)
	}

	_ = w.Flush()
	return string(buf)
}

func formatStatusJSON(statuses []ProbeStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_ENCODE_FAILED").Wrap(err)
	}
	return string(data), nil
}

func formatLatency(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
