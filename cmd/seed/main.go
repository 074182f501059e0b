// Package main implements a one-shot seed command that creates users
// directly in the Causerie database. It lives inside the server module so
// it can access internal packages.
//
// Usage:
//
//	go run ./cmd/seed --username alice --email alice@example.com --password password123 --color "#FF5733"
//
// Or insert the two demo users (alice and bob) in one go:
//
//	go run ./cmd/seed --demo
//
// Environment variables:
//
//	CAUSERIE_DB_DSN  SQLite file path or Postgres DSN (default: ./causerie.db)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/causerie-app/causerie/internal/auth"
	"github.com/causerie-app/causerie/internal/db"
	"github.com/causerie-app/causerie/internal/repository"
)

// demoUsers are the accounts inserted by --demo for local development.
var demoUsers = []struct {
	username, email, password, color string
}{
	{"alice", "alice@example.com", "password123", "#FF5733"},
	{"bob", "bob@example.com", "securepass456", "#3366FF"},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	username := flag.String("username", "", "Username (required unless --demo)")
	email := flag.String("email", "", "Email address (required unless --demo)")
	password := flag.String("password", "", "Plain-text password (required unless --demo)")
	color := flag.String("color", "#888888", "Display color")
	demo := flag.Bool("demo", false, "Insert the demo users alice and bob")
	flag.Parse()

	if !*demo {
		if *username == "" {
			return fmt.Errorf("--username is required")
		}
		if *email == "" {
			return fmt.Errorf("--email is required")
		}
		if *password == "" {
			return fmt.Errorf("--password is required")
		}
	}

	dsn := envOrDefault("CAUSERIE_DB_DSN", "./causerie.db")

	logger, _ := zap.NewDevelopment()

	database, err := db.New(db.Config{
		Driver:   envOrDefault("CAUSERIE_DB_DRIVER", "sqlite"),
		DSN:      dsn,
		Logger:   logger,
		LogLevel: gormlogger.Silent, // suppress GORM query logs in seed output
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	defer sqlDB.Close()

	users := repository.NewUserRepository(database)

	if *demo {
		for _, u := range demoUsers {
			if err := createUser(users, u.username, u.email, u.password, u.color); err != nil {
				return err
			}
		}
		return nil
	}

	return createUser(users, *username, *email, *password, *color)
}

func createUser(users repository.UserRepository, username, email, password, color string) error {
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &db.User{
		Username: username,
		Email:    email,
		Password: hashed,
		Color:    color,
	}

	if err := users.Create(context.Background(), user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			fmt.Printf("- user %q already exists, skipping\n", username)
			return nil
		}
		return fmt.Errorf("create user %q: %w", username, err)
	}

	fmt.Printf("✓ User created\n")
	fmt.Printf("  ID:       %s\n", user.ID)
	fmt.Printf("  Username: %s\n", user.Username)
	fmt.Printf("  Email:    %s\n", user.Email)
	fmt.Printf("  Color:    %s\n", user.Color)
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
