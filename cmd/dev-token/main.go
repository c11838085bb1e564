package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/config"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/localserve/booking-backend/pkg/jwt"
)

// dev-token signs an access token with the local JWT_SECRET so the API can be
// exercised without the identity provider.
func main() {
	var userFlag, roleFlag string
	flag.StringVar(&userFlag, "user", "", "user ID (a new UUID when empty)")
	flag.StringVar(&roleFlag, "role", string(models.UserRoleCustomer), "CUSTOMER, PROVIDER or ADMIN")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Environment == "production" {
		log.Fatal("dev-token refuses to run with ENVIRONMENT=production")
	}

	role := models.UserRole(strings.ToUpper(roleFlag))
	if !role.IsValid() {
		log.Fatalf("Unknown role %q", roleFlag)
	}

	userID := uuid.New()
	if userFlag != "" {
		if userID, err = uuid.Parse(userFlag); err != nil {
			log.Fatalf("Invalid -user: %v", err)
		}
	}

	token, err := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry).
		GenerateAccessToken(userID, string(role))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Printf("user_id: %s\nrole:    %s\nexpires: in %s\n\n", userID, role, cfg.JWT.AccessTokenExpiry)
	fmt.Printf("Authorization: Bearer %s\n", token)
}
