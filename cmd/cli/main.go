package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "creditsctl",
		Short: "Credits service CLI tool",
		Long:  `A command line interface for operating the credits and reconciliation API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the credits API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(earningsCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(sweepPendingCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Show a user's credit balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/users/" + args[0] + "/balance")
		},
	}
}

func earningsCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "earnings <business-id>",
		Short: "Show a business's credit earnings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/businesses/" + args[0] + "/earnings"
			query := ""
			if from != "" {
				query = "?from=" + from
			}
			if to != "" {
				if query == "" {
					query = "?to=" + to
				} else {
					query += "&to=" + to
				}
			}
			return getJSON(path + query)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Range start (RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "Range end (RFC 3339)")

	return cmd
}

func reconcileCmd() *cobra.Command {
	var (
		all     bool
		dryRun  bool
		force   bool
		analyze bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile [user-id]",
		Short: "Reconcile cached balances against the ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return postJSON("/api/v1/admin/reconcile", map[string]any{
					"dry_run":          dryRun,
					"force":            force,
					"include_analysis": analyze,
				})
			}

			if len(args) == 0 {
				return fmt.Errorf("a user id or --all is required")
			}

			path := fmt.Sprintf("/api/v1/admin/reconcile/%s?dry_run=%t&force=%t&include_analysis=%t",
				args[0], dryRun, force, analyze)
			return postJSON(path, nil)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Reconcile every user")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report drift without healing the cache")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass the reconciliation cooldown")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Include named inconsistencies in the output")

	return cmd
}

func sweepPendingCmd() *cobra.Command {
	var (
		olderThan int
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "sweep-pending",
		Short: "Fail stale pending transactions so their keys become retryable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/v1/admin/sweep-pending", map[string]any{
				"older_than_minutes": olderThan,
				"limit":              limit,
			})
		},
	}

	cmd.Flags().IntVar(&olderThan, "older-than", 15, "Pending age in minutes before a transaction counts as stale")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum transactions to sweep")

	return cmd
}

func getJSON(path string) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func postJSON(path string, payload any) error {
	body := &bytes.Buffer{}
	if payload != nil {
		if err := json.NewEncoder(body).Encode(payload); err != nil {
			return err
		}
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(baseURL+path, "application/json", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		fmt.Println(string(body))
		return nil
	}

	printJSON(decoded)
	return nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(out))
}
