package main

import (
	"context"
	"fmt"
	"io"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/repository"
	"storefront/internal/server"

	"github.com/spf13/cobra"
)

// storefront-admin seller
var sellerCmd = &cobra.Command{
	Use:   "seller",
	Short: "Grant or revoke the seller role",
}

// storefront-admin seller grant <externalId>
var sellerGrantCmd = &cobra.Command{
	Use:   "grant <externalId>",
	Short: "Allow a user to create and edit products",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUsers(cmd.Context(), func(users repository.UserRepository) error {
			return setSeller(cmd.Context(), cmd.OutOrStdout(), users, args[0], true)
		})
	},
}

// storefront-admin seller revoke <externalId>
var sellerRevokeCmd = &cobra.Command{
	Use:   "revoke <externalId>",
	Short: "Remove a user's seller role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUsers(cmd.Context(), func(users repository.UserRepository) error {
			return setSeller(cmd.Context(), cmd.OutOrStdout(), users, args[0], false)
		})
	},
}

func init() {
	sellerCmd.AddCommand(sellerGrantCmd, sellerRevokeCmd)
}

// withUsers opens the configured store for the duration of fn
func withUsers(ctx context.Context, fn func(repository.UserRepository) error) error {
	cfg := config.Load()
	if cfg.Store.Driver == "memory" {
		return fmt.Errorf("the memory store is private to a running server")
	}

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	stores, err := server.OpenStores(ctx, cfg, false, log)
	if err != nil {
		return err
	}
	defer stores.Close(context.Background())

	return fn(stores.Users)
}

func setSeller(ctx context.Context, out io.Writer, users repository.UserRepository, externalID string, seller bool) error {
	if err := users.SetSellerRole(ctx, externalID, seller); err != nil {
		return fmt.Errorf("failed to update %s: %w", externalID, err)
	}
	verb := "revoked from"
	if seller {
		verb = "granted to"
	}
	fmt.Fprintf(out, "Seller role %s %s\n", verb, externalID)
	return nil
}
