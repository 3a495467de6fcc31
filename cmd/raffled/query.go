package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/solraffle/raffle-node/raffleNode/rafflestore"
)

// Output formats
const (
	OutputFormatYAML = "yaml"
	OutputFormatJSON = "json"
)

// StatsOutput represents the output format for platform stats
type StatsOutput struct {
	Stats       rafflestore.PlatformStats `yaml:"stats" json:"stats"`
	LastFetched time.Time                 `yaml:"last_fetched" json:"last_fetched"`
}

// QueryResponse represents the cached query response format from HTTP API
type QueryResponse struct {
	Data        json.RawMessage `json:"data"`
	LastFetched time.Time       `json:"last_fetched"`
}

// ErrorResponse represents an error response from HTTP API
type ErrorResponse struct {
	Error string `json:"error"`
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "query",
		Aliases: []string{"q"},
		Short:   "Query a running node over its HTTP API",
	}

	cmd.AddCommand(
		statsCmd(),
		raffleCmd(),
		rafflesCmd(),
		oddsCmd(),
		winnersCmd(),
	)
	return cmd
}

func statsCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Query cached platform stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp QueryResponse
			if err := getAPI("/api/v1/stats", &resp); err != nil {
				return err
			}
			var stats rafflestore.PlatformStats
			if err := json.Unmarshal(resp.Data, &stats); err != nil {
				return fmt.Errorf("failed to unmarshal stats: %w", err)
			}
			return printOutput(StatsOutput{Stats: stats, LastFetched: resp.LastFetched}, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func raffleCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "raffle <id>",
		Short: "Query one raffle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp map[string]interface{}
			if err := getAPI("/api/raffles/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return printOutput(resp["raffle"], outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func rafflesCmd() *cobra.Command {
	var (
		status       string
		creator      string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "raffles",
		Short: "List raffles",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if creator != "" {
				q.Set("creator", creator)
			}
			path := "/api/raffles"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var resp map[string]interface{}
			if err := getAPI(path, &resp); err != nil {
				return err
			}
			return printOutput(resp["raffles"], outputFormat)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&creator, "creator", "", "Filter by creator wallet")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func oddsCmd() *cobra.Command {
	var (
		wallet       string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "odds <raffle-id>",
		Short: "Query a wallet's chance of winning a raffle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if wallet == "" {
				return fmt.Errorf("--wallet is required")
			}
			path := "/api/raffles/" + url.PathEscape(args[0]) + "/odds?" + url.Values{"wallet": {wallet}}.Encode()
			var resp map[string]interface{}
			if err := getAPI(path, &resp); err != nil {
				return err
			}
			return printOutput(resp["odds"], outputFormat)
		},
	}

	cmd.Flags().StringVar(&wallet, "wallet", "", "Wallet holding the tickets")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func winnersCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "winners",
		Short: "List recent winners",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp map[string]interface{}
			if err := getAPI("/api/winners", &resp); err != nil {
				return err
			}
			return printOutput(resp["winners"], outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

// getAPI fetches path from the local node and decodes the JSON body into out.
func getAPI(path string, out interface{}) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resp, err := httpClient.Get(fmt.Sprintf("http://localhost:%d%s", cfg.APIPort, path))
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("server error: %s", errResp.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// printOutput prints the output in the specified format
func printOutput(data interface{}, format string) error {
	switch format {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)
		return encoder.Encode(data)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
