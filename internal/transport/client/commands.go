package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mgriffin/linkpulse/internal/domain"
)

// Commands provides command-line operations for the client
type Commands struct {
	client *Client
}

// NewCommands creates a new Commands instance
func NewCommands(client *Client) *Commands {
	return &Commands{
		client: client,
	}
}

// Create registers a short link and displays the result
func (c *Commands) Create(ctx context.Context, originalURL, customCode string, expiresIn int64) error {
	result, err := c.client.CreateLink(ctx, originalURL, customCode, expiresIn)
	if err != nil {
		return err
	}

	if result.Created {
		fmt.Printf("Short link created:\n")
	} else {
		fmt.Printf("Short link already exists:\n")
	}
	fmt.Printf("Short Code: %s\n", result.ShortCode)
	fmt.Printf("Short URL: %s\n", result.ShortURL)
	fmt.Printf("Original URL: %s\n", result.OriginalURL)
	fmt.Printf("Created At: %s\n", formatMillis(result.CreatedAt))
	if result.ExpiresAt > 0 {
		fmt.Printf("Expires At: %s\n", formatMillis(result.ExpiresAt))
	}

	return nil
}

// Get retrieves and displays information about a short link
func (c *Commands) Get(ctx context.Context, shortCode string) error {
	link, err := c.client.GetLink(ctx, shortCode)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			fmt.Printf("Short code '%s' not found\n", shortCode)
			return nil
		}
		return err
	}

	fmt.Printf("Link Information:\n")
	fmt.Printf("Short Code: %s\n", link.ShortCode)
	fmt.Printf("Original URL: %s\n", link.OriginalURL)
	fmt.Printf("Created At: %s\n", formatMillis(link.CreatedAt))
	if link.ExpiresAt > 0 {
		fmt.Printf("Expires At: %s\n", formatMillis(link.ExpiresAt))
	} else {
		fmt.Printf("Expires At: Never\n")
	}
	if link.LastClickAt > 0 {
		fmt.Printf("Last Click At: %s\n", formatMillis(link.LastClickAt))
	} else {
		fmt.Printf("Last Click At: Never\n")
	}
	fmt.Printf("Click Count: %d\n", link.ClickCount)

	return nil
}

// Stats retrieves and displays the analytics report for a short link
func (c *Commands) Stats(ctx context.Context, shortCode, period string) error {
	report, err := c.client.GetStats(ctx, shortCode, period)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			fmt.Printf("Short code '%s' not found\n", shortCode)
			return nil
		}
		return err
	}

	fmt.Printf("Analytics for %s (%s):\n", report.ShortCode, report.Period)
	fmt.Printf("Total Clicks: %d\n", report.Summary.TotalClicks)
	fmt.Printf("Unique Visitors: %d\n", report.Summary.UniqueVisitors)
	if report.Summary.FirstClick > 0 {
		fmt.Printf("First Click: %s\n", formatMillis(report.Summary.FirstClick))
		fmt.Printf("Last Click: %s\n", formatMillis(report.Summary.LastClick))
	}
	if report.Truncated {
		fmt.Printf("Note: report truncated, counts are a lower bound\n")
	}

	printBreakdown("Top Referrers", report.Referrers)
	printBreakdown("Top Countries", report.Countries)
	printBreakdown("Top Browsers", report.Browsers)

	fmt.Printf("\nDevices: desktop=%d mobile=%d tablet=%d unknown=%d\n",
		report.Devices.Desktop, report.Devices.Mobile, report.Devices.Tablet, report.Devices.Unknown)

	return nil
}

// Limits retrieves and displays the caller's rate limit standing
func (c *Commands) Limits(ctx context.Context, action string) error {
	decision, err := c.client.GetLimits(ctx, action)
	if err != nil {
		return err
	}

	fmt.Printf("Limit: %d\n", decision.Limit)
	fmt.Printf("Remaining: %d\n", decision.Remaining)
	fmt.Printf("Resets At: %s\n", time.Unix(decision.ResetTime, 0).UTC().Format(time.RFC3339))

	return nil
}

func printBreakdown(title string, entries []domain.BreakdownEntry) {
	if len(entries) == 0 {
		return
	}

	fmt.Printf("\n%s:\n", title)
	for _, entry := range entries {
		fmt.Printf("  %-30s %6d (%.1f%%)\n", entry.Value, entry.Clicks, entry.Percentage)
	}
}

func formatMillis(millis int64) string {
	return time.UnixMilli(millis).UTC().Format(time.RFC3339)
}
