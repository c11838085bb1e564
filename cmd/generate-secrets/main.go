package main

import (
	"fmt"
	"log"

	"github.com/localserve/booking-backend/internal/utils"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("Secret Generator for LocalServe bookings")
	fmt.Println("===========================================")
	fmt.Println()

	jwtSecret, err := utils.GenerateSecret(32)
	if err != nil {
		log.Fatalf("Failed to generate JWT secret: %v", err)
	}

	adminKey, err := utils.GenerateSecret(24)
	if err != nil {
		log.Fatalf("Failed to generate admin key: %v", err)
	}
	adminKeyHash, err := utils.HashAPIKey(adminKey)
	if err != nil {
		log.Fatalf("Failed to hash admin key: %v", err)
	}

	fmt.Println("Add these to your .env file or deployment secrets:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	fmt.Printf("ADMIN_API_KEY_HASH=%s\n", adminKeyHash)
	fmt.Println()
	fmt.Println("Admin key (send as X-Admin-Key, shown only once):")
	fmt.Println(adminKey)
	fmt.Println()
	fmt.Println("IMPORTANT: Keep these secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}
