package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/phishguard/phishguard/internal/adapters/cache"
	"github.com/phishguard/phishguard/internal/adapters/storage"
	"github.com/phishguard/phishguard/internal/config"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/logging"
	"github.com/phishguard/phishguard/internal/settings"
	"github.com/phishguard/phishguard/internal/stats"

	"github.com/phishguard/phishguard/internal/adapters/phishapi"
	"go.uber.org/zap"
)

var (
	// API flags
	apiURL  = flag.String("api-url", "", "Classification API base URL (overrides config)")
	devMode = flag.Bool("dev", false, "Use the development API endpoint")
	timeout = flag.Duration("timeout", 5*time.Second, "Request timeout")

	// Output flags
	explain = flag.Bool("explain", false, "Also fetch human-readable reasoning")
	health  = flag.Bool("health", false, "Probe the API health endpoint and exit")
	verbose = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.New()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	apiCfg, err := cfg.GetAPI()
	if err != nil {
		logger.Fatal("Invalid API configuration", zap.Error(err))
	}
	apiCfg.RequestTimeout = *timeout

	// Wire a one-shot pipeline by hand: memory store, short-lived cache
	ctx := context.Background()
	settingsMgr := settings.NewManager(storage.NewMemoryStore(0), logger)
	settingsMgr.Update(ctx, core.SettingsPatch{
		APIURL:  apiURL,
		DevMode: devMode,
	})

	collector := stats.NewCollector()
	resultCache := cache.NewMemoryCache(logger, 5*time.Minute, 10*time.Minute, 1000)
	defer resultCache.Stop()

	client := phishapi.NewClient(apiCfg, resultCache, settingsMgr, collector, logger)

	if *health {
		runHealth(ctx, client)
		return
	}

	rawURL := flag.Arg(0)
	if rawURL == "" {
		fmt.Println("Usage: phishguard-cli [flags] <url>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	result, err := client.Classify(ctx, rawURL)
	if err != nil {
		logger.Fatal("Classification failed", zap.Error(err))
	}

	printResult(rawURL, result)

	if *explain {
		explanation, err := client.Explain(ctx, rawURL)
		if err != nil {
			logger.Error("Explain failed", zap.Error(err))
			return
		}
		fmt.Printf("\nReasoning:\n%s\n", explanation.Reasoning)
	}
}

func runHealth(ctx context.Context, client *phishapi.Client) {
	status, err := client.Health(ctx)
	if err != nil {
		fmt.Printf("API unhealthy: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("API status: %s", status.Status)
	if status.ModelVersion != "" {
		fmt.Printf(" (model %s)", status.ModelVersion)
	}
	fmt.Println()
}

func printResult(rawURL string, result *core.ClassificationResult) {
	fmt.Printf("\n=== Analysis Result ===\n")
	fmt.Printf("URL: %s\n", rawURL)
	fmt.Printf("Domain: %s\n", core.ExtractDomain(rawURL))
	fmt.Printf("Phishing: %v\n", result.IsPhishing)
	fmt.Printf("Risk level: %s\n", strings.ToUpper(string(result.RiskLevel)))
	fmt.Printf("Confidence: %.0f%%\n", result.Confidence*100)
	if result.IsPopularDomain {
		fmt.Printf("Popular domain: yes\n")
	}
	if result.Recommendation != "" {
		fmt.Printf("Recommendation: %s\n", result.Recommendation)
	}
}
