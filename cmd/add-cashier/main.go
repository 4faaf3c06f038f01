// Command add-cashier creates a staff account and prints a session token for
// it. With -reissue it only prints a fresh token for an existing account.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"feedesk/internal/cli"
	"feedesk/internal/core"
	"feedesk/internal/log"
	"feedesk/internal/session"
	"feedesk/internal/storage"
)

func main() {
	var (
		username = flag.String("username", "", "login name (required)")
		fullName = flag.String("name", "", "full name shown on receipts")
		email    = flag.String("email", "", "email address")
		phone    = flag.String("phone", "", "phone number")
		role     = flag.String("role", core.RoleCashier, "cashier or admin")
		empCode  = flag.String("employee-code", "", "employee code")
		counter  = flag.String("counter", "", "fee counter name")
		joined   = flag.String("joined", "", "joining date, YYYY-MM-DD (default today)")
		reissue  = flag.Bool("reissue", false, "only issue a new token for an existing user")
	)
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	if strings.TrimSpace(*username) == "" {
		fmt.Fprintln(os.Stderr, "add-cashier: -username is required")
		flag.Usage()
		os.Exit(2)
	}
	if *role != core.RoleCashier && *role != core.RoleAdmin {
		fmt.Fprintf(os.Stderr, "add-cashier: unknown role %q\n", *role)
		os.Exit(2)
	}

	var joinedOn core.Date
	if *joined != "" {
		d, err := core.ParseDate(*joined)
		if err != nil {
			fmt.Fprintf(os.Stderr, "add-cashier: invalid -joined %q\n", *joined)
			os.Exit(2)
		}
		joinedOn = d
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !*reissue {
		name := *fullName
		if name == "" {
			name = *username
		}
		if _, err := repo.CreateUser(ctx, storage.NewUser{
			Username:     *username,
			FullName:     name,
			Email:        *email,
			Phone:        *phone,
			Role:         *role,
			EmployeeCode: *empCode,
			Counter:      *counter,
			JoinedOn:     joinedOn,
		}); err != nil {
			logger.Error("Failed to create user", "error", err, "username", *username)
			os.Exit(1)
		}
	}

	id, err := repo.UserByUsername(ctx, *username)
	if err != nil {
		logger.Error("Failed to load user", "error", err, "username", *username)
		os.Exit(1)
	}

	token, err := session.NewManager(cfg.SessionSecret, cfg.SessionCookie, cfg.SessionTTL).Issue(id)
	if err != nil {
		logger.Error("Failed to issue session token", "error", err)
		os.Exit(1)
	}

	fmt.Printf("user %d (%s, %s)\n", id.UserID, *username, id.Role)
	fmt.Printf("token valid for %s:\n%s\n", cfg.SessionTTL, token)
	fmt.Printf("send it as \"Authorization: Bearer <token>\" or set it as the %s cookie\n", cfg.SessionCookie)
}
