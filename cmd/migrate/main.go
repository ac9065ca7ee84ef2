package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gateway/internal/domain"
	"gateway/internal/infra"
	"gateway/internal/sqlinline"
)

func main() {
	var (
		dsnFlag   string
		adminFlag string
		nameFlag  string
	)
	flag.StringVar(&dsnFlag, "dsn", "", "postgres connection string (defaults to DATABASE_URL)")
	flag.StringVar(&adminFlag, "admin", "", "email of an admin user to create or promote after migrating")
	flag.StringVar(&nameFlag, "name", "", "display name for a newly created admin")
	flag.Parse()

	_ = godotenv.Load()
	logger := infra.NewLogger("cli").With().Str("cmd", "migrate").Logger()

	dsn := strings.TrimSpace(dsnFlag)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		exitWithError(errors.New("DATABASE_URL or -dsn is required"))
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		exitWithError(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		exitWithError(fmt.Errorf("connect database: %w", err))
	}

	start := time.Now()
	if _, err := db.ExecContext(ctx, sqlinline.QSchema); err != nil {
		exitWithError(fmt.Errorf("apply schema: %w", err))
	}
	logger.Info().Dur("duration", time.Since(start)).Msg("schema applied")

	email := strings.TrimSpace(adminFlag)
	if email == "" {
		return
	}
	var id string
	err = db.QueryRowContext(ctx, sqlinline.QEnsureUser, email, strings.TrimSpace(nameFlag), string(domain.UserRoleAdmin)).Scan(&id)
	if err != nil {
		exitWithError(fmt.Errorf("ensure admin %s: %w", email, err))
	}
	logger.Info().Str("user_id", id).Str("email", email).Msg("admin ready")
	fmt.Println(id)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
