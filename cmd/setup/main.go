// Setup authorizes the automation user account and writes the session file
// used by the bot factory server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ashureev/botfactory/internal/config"
	"github.com/ashureev/botfactory/internal/mtproto"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	// The server's BOT_TOKEN is not needed here, so only automation settings
	// are read.
	auto := config.LoadAutomation()
	if !auto.Configured() {
		fmt.Fprintln(os.Stderr, "TELEGRAM_API_ID and TELEGRAM_API_HASH must be set.")
		fmt.Fprintln(os.Stderr, "Get them from https://my.telegram.org/apps and add them to .env")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := mtproto.New(mtproto.Config{
		APIID:       auto.APIID,
		APIHash:     auto.APIHash,
		SessionPath: auto.SessionPath,
		BotFather:   auto.BotFather,
	}, slog.Default())

	user, err := client.Authorize(ctx, &mtproto.Prompter{
		PhoneNumber: os.Getenv("TELEGRAM_PHONE"),
		In:          os.Stdin,
		Out:         os.Stdout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Authorization failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Authorized as %s (id %d)\n", user.FirstName, user.ID)
	fmt.Printf("Session saved to %s\n", auto.SessionPath)
}
