package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

var migrationsDir string

// migrateCmd applies pending db/*.sql files in name order. Each file and its
// record in the migrations table are committed in one transaction.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := migrationFiles(migrationsDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		return withConn(ctx, func(conn *pgx.Conn) error {
			applied, err := appliedMigrations(ctx, conn)
			if err != nil {
				return err
			}

			ran := 0
			for _, f := range files {
				filename := filepath.Base(f)
				if applied[filename] {
					fmt.Fprintf(out, "  skip: %s\n", filename)
					continue
				}
				content, err := os.ReadFile(f)
				if err != nil {
					return fmt.Errorf("read %s: %w", filename, err)
				}
				err = pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
					if _, err := tx.Exec(ctx, string(content)); err != nil {
						return fmt.Errorf("run %s: %w", filename, err)
					}
					if _, err := tx.Exec(ctx,
						"INSERT INTO migrations (migration, description) VALUES ($1, $2)",
						filename, descriptionFromFilename(filename)); err != nil {
						return fmt.Errorf("record %s: %w", filename, err)
					}
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  applied: %s\n", filename)
				ran++
			}

			if ran == 0 {
				fmt.Fprintln(out, "No pending migrations.")
			} else {
				fmt.Fprintf(out, "\n%d migration(s) applied.\n", ran)
			}
			return nil
		})
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "db", "Directory containing the .sql migrations")
	rootCmd.AddCommand(migrateCmd)
}

// migrationFiles lists dir/*.sql sorted by name.
func migrationFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migration files found in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

// appliedMigrations returns the recorded migration names. The table does not
// exist before the first migration runs, which counts as none applied.
func appliedMigrations(ctx context.Context, conn *pgx.Conn) (map[string]bool, error) {
	applied := make(map[string]bool)
	var exists bool
	if err := conn.QueryRow(ctx, "SELECT to_regclass('migrations') IS NOT NULL").Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return applied, nil
	}
	rows, err := conn.Query(ctx, "SELECT migration FROM migrations")
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		applied[n] = true
	}
	return applied, nil
}

var migrationPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-\d{3}-`)

// descriptionFromFilename strips the YYYY-MM-DD-NNN- prefix and .sql suffix.
func descriptionFromFilename(filename string) string {
	name := strings.TrimSuffix(filename, ".sql")
	name = migrationPrefix.ReplaceAllString(name, "")
	return strings.ReplaceAll(name, "-", " ")
}
