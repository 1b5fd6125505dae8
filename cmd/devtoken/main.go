package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/tenantry/tenantry/internal/config"
	"github.com/tenantry/tenantry/internal/models"
	"github.com/tenantry/tenantry/pkg/utils"
)

// devtoken mints a bearer token signed with the server's JWT_SECRET, for
// local testing of the chat client against a development server.
func main() {
	fs := pflag.NewFlagSet("devtoken", pflag.ExitOnError)
	userID := fs.String("user", "", "participant id to embed in the token")
	role := fs.String("role", models.RoleTenant, "participant role: landlord or tenant")
	ttl := fs.Duration("ttl", 72*time.Hour, "token lifetime")
	_ = fs.Parse(os.Args[1:])

	if *userID == "" {
		log.Fatal("--user is required")
	}
	if *role != models.RoleLandlord && *role != models.RoleTenant {
		log.Fatalf("unknown role %q", *role)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	token, err := utils.GenerateTokenWithTTL(*userID, *role, cfg.JWTSecret, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
