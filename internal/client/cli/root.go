// Package cli defines the gophshop command line.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/atinyakov/GophShop/internal/client/app"
	"github.com/atinyakov/GophShop/internal/client/shell"
	"github.com/atinyakov/GophShop/internal/config"
	"github.com/atinyakov/GophShop/internal/logger"
)

// Build information, set with -ldflags.
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	ServerURL  string
	CAFile     string
	TokenFile  string
	PaymentKey string
	Insecure   bool
	Timeout    time.Duration
	LogLevel   string
}

// NewRootCommand creates the root command for the storefront client.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gophshop",
		Short: "GophShop storefront client",
		Long:  "Browse the catalog, sign in with a one-time password, fill a cart and check out.",
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "client.json", "client config file")
	cmd.PersistentFlags().StringVar(&opts.ServerURL, "server", "", "backend base URL")
	cmd.PersistentFlags().StringVar(&opts.CAFile, "ca", "", "CA certificate used to verify the backend")
	cmd.PersistentFlags().StringVar(&opts.TokenFile, "token-file", "", "session file")
	cmd.PersistentFlags().StringVar(&opts.PaymentKey, "payment-key", "", "hosted payment publishable key")
	cmd.PersistentFlags().BoolVar(&opts.Insecure, "insecure", false, "allow the session token over plain http")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "backend request timeout")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewProductsCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// clientOptions loads the config file and applies flags set on the command line.
func (o *RootOptions) clientOptions(cmd *cobra.Command) (*config.ClientOptions, error) {
	opts, err := config.LoadClient(o.ConfigFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		opts.ServerURL = o.ServerURL
	}
	if flags.Changed("ca") {
		opts.CAFile = o.CAFile
	}
	if flags.Changed("token-file") {
		opts.TokenFile = o.TokenFile
	}
	if flags.Changed("payment-key") {
		opts.PaymentKey = o.PaymentKey
	}
	if flags.Changed("insecure") {
		opts.AllowInsecure = o.Insecure
	}
	if flags.Changed("timeout") {
		opts.Timeout = o.Timeout
	}
	if flags.Changed("log-level") {
		opts.LogLevel = o.LogLevel
	}
	return opts, nil
}

// newApp builds the engines with output going to the command's stdout.
func (o *RootOptions) newApp(cmd *cobra.Command) (*app.App, *shell.Printer, error) {
	opts, err := o.clientOptions(cmd)
	if err != nil {
		return nil, nil, err
	}

	l := logger.New()
	if err := l.Init(opts.LogLevel); err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}

	printer := shell.NewPrinter(cmd.OutOrStdout())
	a, err := app.New(opts, app.Deps{
		Notifier:  printer,
		Navigator: printer,
		Logger:    l.Log,
	})
	if err != nil {
		return nil, nil, err
	}
	return a, printer, nil
}
