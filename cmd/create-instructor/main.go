package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/dvmnase/onlinecourses-backend/internal/config"
	"github.com/dvmnase/onlinecourses-backend/internal/database"
	"github.com/dvmnase/onlinecourses-backend/internal/logger"
	"github.com/dvmnase/onlinecourses-backend/internal/model"
	"github.com/dvmnase/onlinecourses-backend/internal/repository"
	"github.com/dvmnase/onlinecourses-backend/internal/service"
)

// Provisions an instructor account from the command line, for deployments
// where open instructor registration is disabled at the edge.
func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	authService := service.NewAuthService(cfg, userRepo)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Instructor ===")

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println()
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// ─── Create Account ────────────────────────────────────────────────
	user, err := authService.Register(ctx, model.RegisterRequest{
		Email:    email,
		Name:     name,
		Password: password,
		Role:     string(model.RoleInstructor),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create instructor")
	}

	fmt.Printf("\nSuccess! Instructor '%s' (%s) created with ID: %s\n", user.Name, user.Email, user.ID)
}
