package commands

import (
	"dedupstore/internal/config"
	"dedupstore/internal/models"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Audit asks the running server's admin API for a consistency report and
// prints it to out. It returns an error when inconsistent records exist.
func Audit(cfg *config.Config, out io.Writer) error {
	url := fmt.Sprintf("http://%s/admin/audit", cfg.AdminAddr)
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to call admin API: %w. Is the server running?", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("audit failed (Status: %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Success bool               `json:"success"`
		Data    models.AuditReport `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	report := result.Data

	_, _ = fmt.Fprintf(out, "Records checked:    %d\n", report.Checked)
	_, _ = fmt.Fprintf(out, "Incomplete uploads: %d\n", len(report.Incomplete))
	for _, r := range report.Incomplete {
		_, _ = fmt.Fprintf(out, "  %s  %s  (hash %s)\n", r.ID, r.Name, r.Hash)
	}
	_, _ = fmt.Fprintf(out, "Missing blobs:      %d\n", len(report.MissingBlob))
	for _, r := range report.MissingBlob {
		_, _ = fmt.Fprintf(out, "  %s  %s  (location %s)\n", r.ID, r.Name, r.Location)
	}

	if !report.Healthy() {
		return fmt.Errorf("%d inconsistent records", len(report.Incomplete)+len(report.MissingBlob))
	}
	_, _ = fmt.Fprintln(out, "Store is consistent.")
	return nil
}
