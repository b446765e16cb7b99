package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/client"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/repository"
	"github.com/DanielTwine/dloperOS/internal/service"
	"github.com/DanielTwine/dloperOS/internal/yamlstore"
)

// resetPassword implements "dloperos reset-password -user NAME". It edits
// users.yaml directly, so it works while the server is down.
func resetPassword(args []string) error {
	fset := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	username := fset.String("user", service.SeedUsername, "user whose password to reset")
	configDir := fset.String("config", envOr("DLOPER_CONFIG_DIR", "./config"), "config directory")
	if err := fset.Parse(args); err != nil {
		return err
	}

	in := bufio.NewReader(os.Stdin)
	fd := int(os.Stdin.Fd())
	password, err := client.ReadPassword(os.Stderr, "New password: ", fd, in)
	if err != nil {
		return err
	}
	confirm, err := client.ReadPassword(os.Stderr, "Repeat password: ", fd, in)
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	users := repository.NewUserRepository(yamlstore.NewCollection[models.User](
		afero.NewOsFs(), filepath.Join(*configDir, "users.yaml"), "users"))
	auth := service.NewAuthService(users, nil, zap.NewNop())
	if err := auth.SetPassword(context.Background(), *username, password); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Password for %q updated.\n", *username)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
