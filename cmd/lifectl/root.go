package main

import (
	"context"
	"errors"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "lifectl",
	Short:         "lifectl manages the Life Dashboard database and users",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to an env file with DB_URL (optional)")
}

// withConn loads the env file, connects to DB_URL, and runs fn.
func withConn(ctx context.Context, fn func(*pgx.Conn) error) error {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		return errors.New("DB_URL is not set")
	}
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	return fn(conn)
}
