package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	limitsServer  string
	limitsTimeout time.Duration
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Inspect and change category limits on a running server",
}

var limitsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List limits with spending and status",
	Args:  cobra.NoArgs,
	RunE:  runLimitsList,
}

var limitsSetCmd = &cobra.Command{
	Use:   "set <category> <amount>",
	Short: "Set the limit of a category",
	Long: `Set the limit of a category, in major units. Alerts raised by the
change are printed and pushed to every open dashboard.

Example:
  moneyflow limits set Переводы 4000`,
	Args: cobra.ExactArgs(2),
	RunE: runLimitsSet,
}

func init() {
	rootCmd.AddCommand(limitsCmd)
	limitsCmd.AddCommand(limitsListCmd, limitsSetCmd)

	limitsCmd.PersistentFlags().StringVar(&limitsServer, "server", "http://localhost:8081", "Base URL of the moneyflow server")
	limitsCmd.PersistentFlags().DurationVar(&limitsTimeout, "timeout", 10*time.Second, "Request timeout")
}

type apiLimit struct {
	Category          string `json:"category"`
	Spent             string `json:"spent"`
	Limit             string `json:"limit"`
	DisplayPercentage string `json:"display_percentage"`
	Classification    string `json:"classification"`
}

type apiAlert struct {
	Message string `json:"message"`
}

type apiLimits struct {
	Revision uint64     `json:"revision"`
	Limits   []apiLimit `json:"limits"`
	Alerts   []apiAlert `json:"alerts"`
}

type apiError struct {
	Error string `json:"error"`
}

// apiClient talks to the JSON API of a running server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (%d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) Limits(ctx context.Context) (apiLimits, error) {
	var out apiLimits
	err := c.do(ctx, http.MethodGet, "/api/limits", nil, &out)
	return out, err
}

func (c *apiClient) SetLimit(ctx context.Context, category, amount string) (apiLimits, error) {
	var out apiLimits
	err := c.do(ctx, http.MethodPut, "/api/limits/"+url.PathEscape(category),
		map[string]string{"limit": amount}, &out)
	return out, err
}

func printLimits(w io.Writer, ls []apiLimit) {
	for _, l := range ls {
		fmt.Fprintf(w, "%-20s %14s / %-14s %6s%%  %s\n",
			l.Category, l.Spent, l.Limit, l.DisplayPercentage, l.Classification)
	}
}

func runLimitsList(cmd *cobra.Command, _ []string) error {
	res, err := newAPIClient(limitsServer, limitsTimeout).Limits(cmd.Context())
	if err != nil {
		return err
	}
	printLimits(cmd.OutOrStdout(), res.Limits)
	return nil
}

func runLimitsSet(cmd *cobra.Command, args []string) error {
	res, err := newAPIClient(limitsServer, limitsTimeout).SetLimit(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printLimits(out, res.Limits)
	for _, a := range res.Alerts {
		fmt.Fprintln(out, "! "+a.Message)
	}
	return nil
}
