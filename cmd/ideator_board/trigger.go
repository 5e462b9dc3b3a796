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
	triggerServer      string
	triggerToken       string
	triggerCompanyID   string
	triggerCompanyName string
	triggerUploadID    string
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <blob-url>",
	Short: "Start a pipeline run",
	Long:  `Trigger a pipeline run against a running API server for an uploaded document and print the run ID.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runTrigger,
}

func init() {
	triggerCmd.Flags().StringVar(&triggerServer, "server", "http://localhost:8080", "API server base URL")
	triggerCmd.Flags().StringVar(&triggerToken, "token", "", "JWT bearer token (defaults to API_TOKEN)")
	triggerCmd.Flags().StringVar(&triggerCompanyID, "company-id", "", "Active company ID")
	triggerCmd.Flags().StringVar(&triggerCompanyName, "company-name", "", "Active company display name")
	triggerCmd.Flags().StringVar(&triggerUploadID, "upload-id", "", "Upload ID of the document blob")
	_ = triggerCmd.MarkFlagRequired("company-id")
	_ = triggerCmd.MarkFlagRequired("company-name")
	_ = triggerCmd.MarkFlagRequired("upload-id")
	rootCmd.AddCommand(triggerCmd)
}

func runTrigger(_ *cobra.Command, args []string) error {
	token := triggerToken
	if token == "" {
		token = os.Getenv("API_TOKEN")
	}
	if token == "" {
		return fmt.Errorf("a JWT is required: pass --token or set API_TOKEN")
	}

	body, err := json.Marshal(map[string]string{
		"blob_url":  args[0],
		"upload_id": triggerUploadID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, triggerServer+"/pipeline/run", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.AddCookie(&http.Cookie{Name: "company_id", Value: triggerCompanyID})
	req.AddCookie(&http.Cookie{Name: "company_name", Value: triggerCompanyName})

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("trigger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}

	var result struct {
		RunID  string `json:"run_id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Run started: %s (%s)\n", result.RunID, result.Status)
	return nil
}
