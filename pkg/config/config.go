package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/mosaicswap/escrow-engine/pkg/logger"
	"github.com/mosaicswap/escrow-engine/pkg/models"
)

// Config holds the configuration for the escrow engine
type Config struct {
	NodeURLs         []string
	SignerURL        string
	ServiceAddress   string
	CurrencyMosaicID string

	FeeRate            float64
	LockStake          uint64
	LockDurationBlocks uint64
	BlockTime          time.Duration
	EpochAdjustment    time.Duration

	// Empirically chosen protocol timings; the defaults reproduce the
	// behavior of the deployed protocol and are tunable, not guaranteed.
	PollTimeout   time.Duration
	SettlingDelay time.Duration
	SignerSpacing time.Duration

	SearchPageSize int

	APIPort        string
	MetricsPort    string
	CircuitBreaker CircuitBreakerConfig
	LoggerConfig   LoggerConfig
}

// CircuitBreakerConfig holds the per-node circuit breaker configuration
type CircuitBreakerConfig struct {
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	nodeURLs, err := GetEnvNodeURLs()
	if err != nil {
		return nil, err
	}

	signerURL, err := GetEnvSignerURL()
	if err != nil {
		return nil, err
	}

	serviceAddress, err := GetEnvServiceAddress()
	if err != nil {
		return nil, err
	}

	feeRate, err := GetEnvFeeRate()
	if err != nil {
		return nil, err
	}

	lockStake, err := GetEnvLockStake()
	if err != nil {
		return nil, err
	}

	lockDuration, err := GetEnvLockDurationBlocks()
	if err != nil {
		return nil, err
	}

	blockTime, err := GetEnvBlockTime()
	if err != nil {
		return nil, err
	}

	epochAdjustment, err := GetEnvEpochAdjustment()
	if err != nil {
		return nil, err
	}

	pollTimeout, err := GetEnvPollTimeout()
	if err != nil {
		return nil, err
	}

	settlingDelay, err := GetEnvSettlingDelay()
	if err != nil {
		return nil, err
	}

	signerSpacing, err := GetEnvSignerSpacing()
	if err != nil {
		return nil, err
	}

	pageSize, err := GetEnvSearchPageSize()
	if err != nil {
		return nil, err
	}

	apiPort, err := GetEnvAPIPort()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		NodeURLs:           nodeURLs,
		SignerURL:          signerURL,
		ServiceAddress:     serviceAddress,
		CurrencyMosaicID:   GetEnvCurrencyMosaicID(),
		FeeRate:            feeRate,
		LockStake:          lockStake,
		LockDurationBlocks: lockDuration,
		BlockTime:          blockTime,
		EpochAdjustment:    epochAdjustment,
		PollTimeout:        pollTimeout,
		SettlingDelay:      settlingDelay,
		SignerSpacing:      signerSpacing,
		SearchPageSize:     pageSize,
		APIPort:            apiPort,
		MetricsPort:        metricsPort,
		CircuitBreaker: CircuitBreakerConfig{
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if len(cfg.NodeURLs) == 0 {
		return fmt.Errorf("at least one ledger node URL is required")
	}
	if cfg.ServiceAddress == "" {
		return fmt.Errorf("SERVICE_ADDRESS environment variable is required")
	}
	if !models.IsValidAddress(cfg.ServiceAddress) {
		return fmt.Errorf("SERVICE_ADDRESS %q is not a valid ledger address", cfg.ServiceAddress)
	}
	if cfg.FeeRate <= 0 {
		return fmt.Errorf("FEE_RATE must be greater than 0")
	}
	return nil
}
