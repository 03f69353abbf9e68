// Package config provides functionality for managing configuration options
// for the sandbox server and the storefront client using command-line flags,
// JSON config files and environment variables.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
)

// Options holds the configuration values for the sandbox server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address"`
	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn"`
	// Config is the path to the Config file.
	Config string `json:"-"`
	// JWTSecret signs session tokens.
	JWTSecret string `json:"jwt_secret"`
	// PaymentURL is the hosted payment page online orders redirect to.
	// An empty value makes the sandbox answer without a redirect URL.
	PaymentURL string `json:"payment_url"`
	// CertFile and KeyFile hold the server TLS pair.
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	// UploadDir receives product images uploaded by admins.
	UploadDir string `json:"upload_dir"`
	// LogLevel is passed to logger.Init.
	LogLevel string `json:"log_level"`
	// AdminEmail is granted the admin role when that user signs in.
	AdminEmail string `json:"admin_email"`
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct containing
// the parsed configuration values. Invalid input terminates the process.
func Parse() *Options {
	options, err := ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("error while parsing configuration: %v", err)
	}
	return options
}

// ParseArgs applies, in order: flag defaults and values, the JSON config
// file, and environment variable overrides.
func ParseArgs(args []string) (*Options, error) {
	options := &Options{}

	fs := flag.NewFlagSet("sandbox", flag.ContinueOnError)
	fs.StringVar(&options.Port, "a", "localhost:8443", "run on ip:port server")
	fs.StringVar(&options.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&options.Config, "config", "config.json", "path to config file")
	fs.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
	fs.StringVar(&options.JWTSecret, "jwt-secret", "change-me", "secret used to sign session tokens")
	fs.StringVar(&options.PaymentURL, "payment-url", "", "hosted payment page base URL")
	fs.StringVar(&options.CertFile, "cert", "certs/server.crt", "path to server cert")
	fs.StringVar(&options.KeyFile, "key", "certs/server.key", "path to server key")
	fs.StringVar(&options.UploadDir, "uploads", "uploads", "directory for uploaded product images")
	fs.StringVar(&options.LogLevel, "log-level", "info", "log level")
	fs.StringVar(&options.AdminEmail, "admin", "", "email granted the admin role")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Port = serverAddress
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		options.JWTSecret = secret
	}
	if paymentURL := os.Getenv("PAYMENT_URL"); paymentURL != "" {
		options.PaymentURL = paymentURL
	}
	if admin := os.Getenv("ADMIN_EMAIL"); admin != "" {
		options.AdminEmail = admin
	}

	return options, nil
}
