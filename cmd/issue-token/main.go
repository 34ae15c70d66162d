package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/SwiftTim/hub2/internal/config"
	"github.com/SwiftTim/hub2/internal/service"
	"github.com/google/uuid"
)

// issue-token mints a JWT for local testing against the API.
//
//	go run ./cmd/issue-token -user <uuid> -role lecturer -name "Dr. Mwangi"
func main() {
	var (
		userID string
		role   string
		name   string
	)
	flag.StringVar(&userID, "user", "", "User ID (UUID); generated when empty")
	flag.StringVar(&role, "role", string(service.RoleStudent), "Role: student, lecturer or admin")
	flag.StringVar(&name, "name", "", "Display name carried in the token")
	flag.Parse()

	cfg := config.Load()
	auth := service.NewAuthService(cfg)

	id := uuid.New()
	if userID != "" {
		parsed, err := uuid.Parse(userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid user id %q\n", userID)
			os.Exit(2)
		}
		id = parsed
	}

	r := service.Role(role)
	if !r.Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown role %q\n", role)
		os.Exit(2)
	}

	token, err := auth.IssueToken(id, r, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "user=%s role=%s expires_in=%s\n", id, r, cfg.JWTExpiry)
	fmt.Println(token)
}
