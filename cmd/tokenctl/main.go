// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// tokenctl manages the API tokens the answers service authenticates with.
// It opens the same BadgerDB the service uses, so run it while the
// service is stopped or point it at a copy.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianAnswers/tokenstore"
)

var (
	storePath string
	userID    string

	rootCmd = &cobra.Command{
		Use:   "tokenctl",
		Short: "Manage API tokens for the Aleutian answers service",
	}

	createCmd = &cobra.Command{
		Use:   "create",
		Short: "Create a new API token for a user",
		RunE:  runCreate,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List all tokens with their usage counts",
		RunE:  runList,
	}

	deleteCmd = &cobra.Command{
		Use:   "delete [token]",
		Short: "Revoke a token",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "",
		"Path to the token store (defaults to TOKEN_STORE_PATH or the service default)")
	createCmd.Flags().StringVar(&userID, "user", "", "User the token belongs to")
	_ = createCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(createCmd, listCmd, deleteCmd)
}

func openStore() (*tokenstore.BadgerStore, error) {
	cfg := tokenstore.DefaultConfig()
	if storePath != "" {
		cfg.Path = storePath
	} else if path := os.Getenv("TOKEN_STORE_PATH"); path != "" {
		cfg.Path = path
	}
	return tokenstore.Open(cfg)
}

func runCreate(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec := &tokenstore.AccessToken{
		Token:  uuid.New().String(),
		UserID: userID,
	}
	if err := store.Put(context.Background(), rec); err != nil {
		return fmt.Errorf("failed to store the token: %w", err)
	}

	fmt.Printf("Created token for %s:\n%s\n", rec.UserID, rec.Token)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	tokens, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tUSER\tAPI CALLS")
	for _, t := range tokens {
		fmt.Fprintf(w, "%s\t%s\t%d\n", t.Token, t.UserID, t.APICallCount)
	}
	return w.Flush()
}

func runDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to delete the token: %w", err)
	}
	fmt.Println("Token deleted")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
