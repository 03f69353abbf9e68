package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atinyakov/GophShop/internal/client/catalog"
	"github.com/atinyakov/GophShop/internal/client/shell"
)

// NewShellCommand creates the interactive shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "shell",
		Short:        "Start the interactive storefront shell",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, printer, err := rootOpts.newApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Log.Sync() }()

			a.Start(ctx)
			if snap := a.Session.Snapshot(); snap.User != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", snap.User.Email)
			}
			return shell.New(a, cmd.InOrStdin(), printer).Run(ctx)
		},
	}
}

// NewProductsCommand creates a one-shot catalog listing command.
func NewProductsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		search   string
		category string
		sort     string
		page     int
	)

	cmd := &cobra.Command{
		Use:          "products",
		Short:        "List one catalog page",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, printer, err := rootOpts.newApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Log.Sync() }()

			ctx := cmd.Context()
			q := catalog.Query{Search: search, Category: category, Sort: sort, Page: page}
			if q == a.Catalog.Query() {
				a.Catalog.FetchProducts(ctx)
			} else if err := a.Catalog.SetQuery(ctx, q); err != nil {
				return err
			}
			a.Catalog.Settle()
			shell.New(a, nil, printer).PrintCatalog()
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "free-text filter")
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	cmd.Flags().StringVar(&sort, "sort", "", "price order (asc|desc)")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")

	return cmd
}

// NewVersionCommand prints build information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show build version and date",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "GophShop Client\nVersion: %s\nBuild Date: %s\n", Version, BuildDate)
		},
	}
}
