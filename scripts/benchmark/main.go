package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:3000", "prodscrape API base URL")
	urls   = flag.String("urls", "", "Comma-separated product URLs (default: built-in set)")
	runs   = flag.Int("runs", 3, "Number of runs per URL for averaging")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Default product pages covering a few storefront layouts.
var defaultURLs = []string{
	"https://www.amazon.com/dp/B08N5WRWNW",
	"https://www.amazon.fr/dp/B0BDHWDR12",
	"https://www.amazon.de/dp/B09B8V1LZ3",
}

type productData struct {
	Title      string   `json:"title"`
	Price      string   `json:"price"`
	Photos     []string `json:"photos"`
	ProductURL string   `json:"product_url"`
}

type scrapeResponse struct {
	Data  *productData `json:"data"`
	Error string       `json:"error"`
}

// --- Benchmark result types ---

type runResult struct {
	Run        int    `json:"run"`
	LatencyMs  int64  `json:"latency_ms"`
	HTTPStatus int    `json:"http_status"`
	HasPrice   bool   `json:"has_price"`
	PhotoCount int    `json:"photo_count"`
	Redirected bool   `json:"redirected"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

type urlAverages struct {
	LatencyMs   float64 `json:"latency_ms"`
	PhotoCount  float64 `json:"photo_count"`
	PriceRate   float64 `json:"price_rate"`
	SuccessRate float64 `json:"success_rate"`
}

type urlResult struct {
	URL      string       `json:"url"`
	Runs     []runResult  `json:"runs"`
	Averages *urlAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	targets := defaultURLs
	if *urls != "" {
		targets = splitURLs(*urls)
	}

	fmt.Println("=== prodscrape Benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("URLs:      %d\n", len(targets))
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure prodscrape is running (e.g. go run ./cmd/prodscrape)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	client := &http.Client{Timeout: 90 * time.Second}
	for _, u := range targets {
		fmt.Printf("Benchmarking %s ...\n", u)
		ur := urlResult{URL: u}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkURL(client, *apiURL, u, i)
			if rr.Success {
				fmt.Printf("OK  %dms  price=%v photos=%d\n", rr.LatencyMs, rr.HasPrice, rr.PhotoCount)
			} else {
				fmt.Printf("FAILED (%d): %s\n", rr.HTTPStatus, rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Averages = computeAverages(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func splitURLs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func benchmarkURL(client *http.Client, baseURL, target string, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(map[string]string{"url": target})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/scrape", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	rr.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.HTTPStatus = resp.StatusCode

	var sr scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	if sr.Data == nil {
		rr.Error = sr.Error
		return rr
	}

	rr.Success = true
	rr.HasPrice = sr.Data.Price != ""
	rr.PhotoCount = len(sr.Data.Photos)
	rr.Redirected = sr.Data.ProductURL != target
	return rr
}

func computeAverages(runs []runResult) *urlAverages {
	if len(runs) == 0 {
		return nil
	}

	var avg urlAverages
	var successCount, priced int
	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.LatencyMs += float64(r.LatencyMs)
		avg.PhotoCount += float64(r.PhotoCount)
		if r.HasPrice {
			priced++
		}
	}

	avg.SuccessRate = float64(successCount) / float64(len(runs)) * 100
	if successCount == 0 {
		return &avg
	}

	n := float64(successCount)
	avg.LatencyMs /= n
	avg.PhotoCount /= n
	avg.PriceRate = float64(priced) / n * 100
	return &avg
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tSuccess\tPrice Found\tAvg Photos\n")
	fmt.Fprintf(w, "───\t───────────\t───────\t───────────\t──────────\n")

	for _, r := range results {
		if r.Averages == nil || r.Averages.SuccessRate == 0 {
			fmt.Fprintf(w, "%s\tFAILED\t0%%\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%.0f%%\t%.0f%%\t%.1f\n",
			truncateURL(r.URL, 40),
			int64(r.Averages.LatencyMs),
			r.Averages.SuccessRate,
			r.Averages.PriceRate,
			r.Averages.PhotoCount,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
