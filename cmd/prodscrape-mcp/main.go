package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// productData mirrors the prodscrape API product model.
type productData struct {
	Title      string   `json:"title"`
	Price      string   `json:"price"`
	Photos     []string `json:"photos"`
	ProductURL string   `json:"product_url"`
}

// scrapeResponse mirrors both the success and failure bodies of POST /scrape.
type scrapeResponse struct {
	Data  *productData `json:"data"`
	Error string       `json:"error"`
}

// healthResponse mirrors the prodscrape API health model.
type healthResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	Engine         string `json:"engine"`
	ActiveSessions int    `json:"active_sessions"`
	Version        string `json:"version"`
}

func main() {
	apiURL := os.Getenv("PRODSCRAPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	apiURL = strings.TrimRight(apiURL, "/")

	s := server.NewMCPServer(
		"prodscrape",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	scrapeProductTool := mcp.NewTool("scrape_product",
		mcp.WithDescription("Render a product page in a headless browser and return its title, price, photo URLs and final URL."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the product page to scrape"),
		),
	)
	s.AddTool(scrapeProductTool, handleScrapeProduct(apiURL))

	healthTool := mcp.NewTool("service_health",
		mcp.WithDescription("Report whether the scraping service is up, which render engine it uses and how many browser sessions are open."),
	)
	s.AddTool(healthTool, handleHealth(apiURL))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the prodscrape API and returns the status
// code and response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, path string, payload interface{}) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, err
}

func handleScrapeProduct(apiURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		status, respBody, err := apiPost(ctx, client, apiURL, "/scrape", map[string]string{"url": url})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scrape request failed: %v", err)), nil
		}

		var scrapeResp scrapeResponse
		if err := json.Unmarshal(respBody, &scrapeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response (HTTP %d): %v", status, err)), nil
		}

		if status != http.StatusOK || scrapeResp.Data == nil {
			errMsg := scrapeResp.Error
			if errMsg == "" {
				errMsg = fmt.Sprintf("scrape failed with HTTP %d", status)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatProduct(scrapeResp.Data)), nil
	}
}

func handleHealth(apiURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/health", nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}

		resp, err := client.Do(req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("service unreachable: %v", err)), nil
		}
		defer resp.Body.Close()

		var h healthResponse
		if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse health response: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(
			"Status: %s\nEngine: %s\nActive sessions: %d\nUptime: %s\nVersion: %s",
			h.Status, h.Engine, h.ActiveSessions, h.Uptime, h.Version,
		)), nil
	}
}

// formatProduct renders a product as a short plain-text block.
func formatProduct(p *productData) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Title: %s\n", p.Title))

	price := p.Price
	if price == "" {
		price = "(not found)"
	}
	sb.WriteString(fmt.Sprintf("Price: %s\n", price))
	sb.WriteString(fmt.Sprintf("URL: %s\n", p.ProductURL))

	if len(p.Photos) == 0 {
		sb.WriteString("Photos: none\n")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("Photos (%d):\n", len(p.Photos)))
	for _, u := range p.Photos {
		sb.WriteString("- " + u + "\n")
	}
	return sb.String()
}
