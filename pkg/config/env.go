package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mosaicswap/escrow-engine/pkg/logger"
)

const (
	// DefaultNodeURLs defines the default ledger REST nodes to probe, in
	// preference order
	DefaultNodeURLs = "https://sym-test-01.opening-line.jp:3001,https://001-sai-dual.symboltest.net:3001"

	// DefaultCurrencyMosaicID defines the settlement currency asset id
	DefaultCurrencyMosaicID = "72C0212E67A08BCE"

	// DefaultFeeRate defines the service fee as a fraction of the price
	DefaultFeeRate = "0.1"

	// DefaultLockStake defines the collateral stake in currency minor units
	DefaultLockStake = 10_000_000

	// DefaultLockDurationBlocks defines the collateral lock validity window
	DefaultLockDurationBlocks = 480

	// DefaultBlockTimeSeconds defines the ledger's block generation target
	DefaultBlockTimeSeconds = 30

	// DefaultEpochAdjustmentSeconds defines the offset between the ledger
	// epoch and the unix epoch
	DefaultEpochAdjustmentSeconds = 1667250467

	// DefaultPollTimeoutSeconds defines how long the confirmation race waits
	// before polling transaction status once
	DefaultPollTimeoutSeconds = 1

	// DefaultSettlingDelaySeconds defines the wait between lock confirmation
	// and bundle announcement, so slower nodes see the lock
	DefaultSettlingDelaySeconds = 5

	// DefaultSignerSpacingSeconds defines the spacing the signer device
	// requires between two signature requests in one session
	DefaultSignerSpacingSeconds = 1

	// DefaultSearchPageSize defines the page size for history searches
	DefaultSearchPageSize = 100

	// DefaultAPIPort defines the default port for the JSON API server
	DefaultAPIPort = "8080"

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "9090"

	// DefaultCircuitBreakerThreshold defines the number of node failures
	// before that node is skipped
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the failure counting window
	DefaultCircuitBreakerWindow = 5

	// DefaultCircuitBreakerReset defines how long a tripped node stays skipped
	DefaultCircuitBreakerReset = 15
)

// GetEnvNodeURLs returns the ledger node URLs from environment variables
func GetEnvNodeURLs() ([]string, error) {
	raw := os.Getenv("NODE_URLS")
	if raw == "" {
		raw = DefaultNodeURLs
	}

	var nodes []string
	for _, part := range strings.Split(raw, ",") {
		node := strings.TrimSpace(part)
		if node == "" {
			continue
		}
		if _, err := url.ParseRequestURI(node); err != nil {
			return nil, fmt.Errorf("invalid NODE_URLS entry: %s, must be a valid URL", node)
		}
		nodes = append(nodes, strings.TrimRight(node, "/"))
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("NODE_URLS must contain at least one URL")
	}
	return nodes, nil
}

// GetEnvSignerURL returns the remote signer bridge URL from environment variables
func GetEnvSignerURL() (string, error) {
	signerURL := os.Getenv("SIGNER_URL")
	if signerURL == "" {
		return "", nil
	}

	if _, err := url.ParseRequestURI(signerURL); err != nil {
		return "", fmt.Errorf("invalid SIGNER_URL value: %s, must be a valid URL", signerURL)
	}
	return strings.TrimRight(signerURL, "/"), nil
}

// GetEnvServiceAddress returns the fee recipient address from environment variables
func GetEnvServiceAddress() (string, error) {
	return os.Getenv("SERVICE_ADDRESS"), nil
}

// GetEnvCurrencyMosaicID returns the settlement currency asset id
func GetEnvCurrencyMosaicID() string {
	id := os.Getenv("CURRENCY_MOSAIC_ID")
	if id == "" {
		return DefaultCurrencyMosaicID
	}
	return id
}

// GetEnvFeeRate returns the service fee rate from environment variables
func GetEnvFeeRate() (float64, error) {
	raw := os.Getenv("FEE_RATE")
	if raw == "" {
		raw = DefaultFeeRate
	}

	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid FEE_RATE value: %s, must be a number", raw)
	}
	if rate <= 0 || rate >= 1 {
		return 0, fmt.Errorf("FEE_RATE must be between 0 and 1 exclusive")
	}
	return rate, nil
}

// GetEnvLockStake returns the collateral stake in minor units
func GetEnvLockStake() (uint64, error) {
	raw := os.Getenv("LOCK_STAKE")
	if raw == "" {
		return DefaultLockStake, nil
	}

	stake, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid LOCK_STAKE value: %s, must be a positive integer", raw)
	}
	if stake == 0 {
		return 0, fmt.Errorf("LOCK_STAKE must be greater than 0")
	}
	return stake, nil
}

// GetEnvLockDurationBlocks returns the lock validity window in blocks
func GetEnvLockDurationBlocks() (uint64, error) {
	raw := os.Getenv("LOCK_DURATION_BLOCKS")
	if raw == "" {
		return DefaultLockDurationBlocks, nil
	}

	blocks, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid LOCK_DURATION_BLOCKS value: %s, must be a positive integer", raw)
	}
	if blocks == 0 {
		return 0, fmt.Errorf("LOCK_DURATION_BLOCKS must be greater than 0")
	}
	return blocks, nil
}

// GetEnvBlockTime returns the block generation target duration
func GetEnvBlockTime() (time.Duration, error) {
	return getEnvSeconds("BLOCK_TIME", DefaultBlockTimeSeconds)
}

// GetEnvEpochAdjustment returns the ledger epoch offset
func GetEnvEpochAdjustment() (time.Duration, error) {
	return getEnvSeconds("EPOCH_ADJUSTMENT", DefaultEpochAdjustmentSeconds)
}

// GetEnvPollTimeout returns the confirmation race poll delay
func GetEnvPollTimeout() (time.Duration, error) {
	return getEnvSeconds("POLL_TIMEOUT", DefaultPollTimeoutSeconds)
}

// GetEnvSettlingDelay returns the post-lock settling delay
func GetEnvSettlingDelay() (time.Duration, error) {
	return getEnvSeconds("SETTLING_DELAY", DefaultSettlingDelaySeconds)
}

// GetEnvSignerSpacing returns the signer inter-request spacing
func GetEnvSignerSpacing() (time.Duration, error) {
	return getEnvSeconds("SIGNER_SPACING", DefaultSignerSpacingSeconds)
}

// GetEnvSearchPageSize returns the history search page size
func GetEnvSearchPageSize() (int, error) {
	raw := os.Getenv("SEARCH_PAGE_SIZE")
	if raw == "" {
		return DefaultSearchPageSize, nil
	}

	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid SEARCH_PAGE_SIZE value: %s, must be an integer", raw)
	}
	if size <= 0 || size > 100 {
		return 0, fmt.Errorf("SEARCH_PAGE_SIZE must be between 1 and 100")
	}
	return size, nil
}

// GetEnvAPIPort returns the JSON API server port from environment variables
func GetEnvAPIPort() (string, error) {
	return getEnvPort("API_PORT", DefaultAPIPort)
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	return getEnvPort("METRICS_PORT", DefaultMetricsPort)
}

// GetEnvCircuitBreakerThreshold returns the node circuit breaker threshold
func GetEnvCircuitBreakerThreshold() (int, error) {
	raw := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if raw == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	threshold, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", raw)
	}
	if threshold <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return threshold, nil
}

// GetEnvCircuitBreakerWindow returns the node circuit breaker window
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	raw := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if raw == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", raw)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the node circuit breaker reset timeout
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	raw := os.Getenv("CIRCUIT_BREAKER_RESET")
	if raw == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", raw)
	}
	return parsed, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	raw := os.Getenv("LOG_LEVEL")
	switch raw {
	case "", "info":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of debug, info, notice, error", raw)
}

// GetEnvLogColoring returns whether log coloring is enabled
func GetEnvLogColoring() (bool, error) {
	raw := os.Getenv("LOG_COLORING")
	switch raw {
	case "", "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", raw)
}

func getEnvSeconds(name string, defaultSeconds int) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return time.Duration(defaultSeconds) * time.Second, nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be an integer number of seconds", name, raw)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnvPort(name, defaultPort string) (string, error) {
	port := os.Getenv(name)
	if port == "" {
		return defaultPort, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid %s value: %s, must be a valid integer", name, port)
	}
	return port, nil
}
