package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ClientOptions configures the storefront client.
type ClientOptions struct {
	// ServerURL is the backend base URL.
	ServerURL string `json:"server_url"`
	// CAFile optionally pins the CA used to verify the backend.
	CAFile string `json:"ca_file"`
	// TokenFile is where the session cookie and the pending email live.
	TokenFile string `json:"token_file"`
	// PaymentKey is the publishable key of the hosted payment provider.
	PaymentKey string `json:"payment_key"`
	// AllowInsecure lets the session token travel over plain http.
	AllowInsecure bool `json:"allow_insecure"`
	// Timeout bounds every backend round trip.
	Timeout time.Duration `json:"-"`
	// TimeoutSeconds is the JSON form of Timeout.
	TimeoutSeconds int `json:"timeout_seconds"`
	// LogLevel is passed to logger.Init.
	LogLevel string `json:"log_level"`
}

// DefaultClientOptions returns the options used when no config file exists.
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		ServerURL: "https://localhost:8443",
		TokenFile: "session.json",
		Timeout:   10 * time.Second,
		LogLevel:  "warn",
	}
}

// LoadClient reads the optional JSON config at path over the defaults and
// then applies SHOP_* environment overrides. A missing file is not an error.
func LoadClient(path string) (*ClientOptions, error) {
	options := DefaultClientOptions()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, options); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("error while reading config file: %w", err)
		}
	}
	if options.TimeoutSeconds > 0 {
		options.Timeout = time.Duration(options.TimeoutSeconds) * time.Second
	}

	if v := os.Getenv("SHOP_SERVER_URL"); v != "" {
		options.ServerURL = v
	}
	if v := os.Getenv("SHOP_CA_FILE"); v != "" {
		options.CAFile = v
	}
	if v := os.Getenv("SHOP_TOKEN_FILE"); v != "" {
		options.TokenFile = v
	}
	if v := os.Getenv("SHOP_PAYMENT_KEY"); v != "" {
		options.PaymentKey = v
	}

	return options, nil
}
