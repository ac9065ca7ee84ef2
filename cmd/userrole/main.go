package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"gateway/internal/adapter/repo"
	"gateway/internal/domain"
	"gateway/internal/infra"
	"gateway/internal/middleware"
)

func main() {
	var (
		idFlag    string
		emailFlag string
		roleFlag  string
		tokenFlag bool
		ttlFlag   time.Duration
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update (UUID)")
	flag.StringVar(&emailFlag, "email", "", "user email to update")
	flag.StringVar(&roleFlag, "role", "", "role to assign (user, admin); empty leaves it unchanged")
	flag.BoolVar(&tokenFlag, "token", false, "print a signed access token for the user")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "lifetime of the printed token")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(idFlag)
	email := strings.TrimSpace(emailFlag)
	if userID == "" && email == "" {
		exitWithError(errors.New("either -id or -email must be provided"))
	}

	var role domain.UserRole
	if strings.TrimSpace(roleFlag) != "" {
		parsed, err := domain.ParseUserRole(roleFlag)
		if err != nil {
			exitWithError(err)
		}
		role = parsed
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "userrole").Logger()
	users := repo.NewUserRepository(infra.NewSQLRunner(pool, logger, nil))

	var user *domain.User
	if userID != "" {
		user, err = users.GetByID(ctx, userID)
	} else {
		user, err = users.GetByEmail(ctx, email)
	}
	if err != nil {
		exitWithError(fmt.Errorf("failed to load user: %w", err))
	}

	if role != "" && role != user.Role {
		user, err = users.SetRole(ctx, user.ID, role)
		if err != nil {
			exitWithError(fmt.Errorf("failed to update role: %w", err))
		}
		fmt.Printf("User %s (%s) updated to role %s\n", user.ID, user.Email, user.Role)
	} else {
		fmt.Printf("User %s (%s) has role %s\n", user.ID, user.Email, user.Role)
	}

	if !tokenFlag {
		return
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		exitWithError(errors.New("JWT_SECRET is required to sign a token"))
	}
	token, err := middleware.SignJWT(middleware.JWTConfig{
		Secret:   secret,
		Issuer:   os.Getenv("JWT_ISSUER"),
		Audience: os.Getenv("JWT_AUDIENCE"),
	}, middleware.TokenClaims{Email: user.Email, Role: string(user.Role), RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID}}, ttlFlag)
	if err != nil {
		exitWithError(fmt.Errorf("failed to sign token: %w", err))
	}
	fmt.Println(token)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
