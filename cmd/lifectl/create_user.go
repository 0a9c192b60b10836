package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"lg/life-dashboard-api/internal/identity"
)

// createUserCmd prompts for the account details and inserts an active user
// with a bcrypt-hashed password and an issued auth token.
var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create an active user interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := promptUser(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		hash, err := identity.HashPassword(in.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		return withConn(ctx, func(conn *pgx.Conn) error {
			if in.Username == "" {
				in.Username, err = identity.DeriveUsername(ctx, in.Email, func(ctx context.Context, name string) (bool, error) {
					var taken bool
					err := conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)", name).Scan(&taken)
					return taken, err
				})
				if err != nil {
					return err
				}
			}

			token := identity.NewToken()
			var userID int
			err := conn.QueryRow(ctx,
				`INSERT INTO users (username, email, first_name, last_name, password, auth_token, is_active)
				 VALUES ($1, $2, $3, $4, $5, $6, true) RETURNING id`,
				in.Username, in.Email, in.FirstName, in.LastName, hash, token,
			).Scan(&userID)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nUser created successfully!\n")
			fmt.Fprintf(out, "  ID:         %d\n", userID)
			fmt.Fprintf(out, "  Username:   %s\n", in.Username)
			fmt.Fprintf(out, "  Auth Token: %s\n", token)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(createUserCmd)
}

type newUser struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// promptUser reads the account fields one line at a time. Username may be
// left blank to derive it from the email.
func promptUser(r io.Reader, w io.Writer) (newUser, error) {
	reader := bufio.NewReader(r)
	ask := func(label string) (string, error) {
		fmt.Fprintf(w, "%s: ", label)
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
		}
		return strings.TrimSpace(line), nil
	}

	var u newUser
	var err error
	if u.Username, err = ask("Username (blank to derive from email)"); err != nil {
		return u, err
	}
	if u.Email, err = ask("Email"); err != nil {
		return u, err
	}
	if !strings.Contains(u.Email, "@") {
		return u, fmt.Errorf("invalid email %q", u.Email)
	}
	if u.FirstName, err = ask("First name"); err != nil {
		return u, err
	}
	if u.LastName, err = ask("Last name"); err != nil {
		return u, err
	}
	if u.Password, err = ask("Password"); err != nil {
		return u, err
	}
	if err := identity.CheckPassword(u.Password); err != nil {
		return u, err
	}
	return u, nil
}
