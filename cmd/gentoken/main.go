// Package main provides a simple tool to generate bearer tokens for local use
// of the organization API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/narvanalabs/expense-orgs/internal/auth"
	"github.com/narvanalabs/expense-orgs/internal/models"
)

func main() {
	userID := flag.String("user", "admin", "User ID for the token")
	email := flag.String("email", "admin@localhost", "Email for the token")
	name := flag.String("name", "", "Display name for the token")
	issuer := flag.String("issuer", os.Getenv("JWT_ISSUER"), "Token issuer (or set JWT_ISSUER env var)")
	secret := flag.String("secret", "", "JWT secret (or set JWT_SECRET env var)")
	expiry := flag.Duration("expiry", 24*time.Hour, "Token expiry duration")
	flag.Parse()

	jwtSecret := *secret
	if jwtSecret == "" {
		jwtSecret = os.Getenv("JWT_SECRET")
	}
	if jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "Error: JWT secret required. Use -secret flag or set JWT_SECRET env var")
		fmt.Fprintln(os.Stderr, "Example: go run ./cmd/gentoken -secret 'your-secret-at-least-32-chars-long' -user u1 -email u1@example.com")
		os.Exit(1)
	}
	if len(jwtSecret) < 32 {
		fmt.Fprintln(os.Stderr, "Error: JWT secret must be at least 32 characters")
		os.Exit(1)
	}

	svc := auth.NewService(&auth.Config{
		JWTSecret:   []byte(jwtSecret),
		TokenExpiry: *expiry,
		Issuer:      *issuer,
	}, nil)

	token, err := svc.GenerateToken(models.Principal{ID: *userID, Email: *email, Name: *name})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
