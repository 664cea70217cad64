// Package main provides account administration utilities for api-insta.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/kazumasamatsumoto/api-insta/internal/config"
	"github.com/kazumasamatsumoto/api-insta/internal/database"
	"github.com/kazumasamatsumoto/api-insta/internal/featureflags"
	"github.com/kazumasamatsumoto/api-insta/internal/repository"
	"github.com/kazumasamatsumoto/api-insta/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin createsuperuser <email> <password> - Create a staff superuser")
	fmt.Println("  go run ./cmd/admin promote <account_id>              - Grant staff")
	fmt.Println("  go run ./cmd/admin demote <account_id>               - Revoke staff and superuser")
	fmt.Println("  go run ./cmd/admin list-staff                        - List staff accounts")
	fmt.Println("  go run ./cmd/admin delete-account <account_id>       - Delete an account and everything it owns")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	repo := repository.NewAccountRepository(db)
	media := service.NewMediaService(cfg, featureflags.Parse(cfg.FeatureFlags))
	accounts := service.NewAccountManager(repo, media, cfg.PasswordMinLength)

	if err := run(ctx, accounts, repo, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, accounts *service.AccountManager, repo repository.AccountRepository, command string, args []string) error {
	switch command {
	case "createsuperuser":
		if len(args) < 2 {
			return fmt.Errorf("usage: createsuperuser <email> <password>")
		}
		account, err := accounts.CreateSuperuser(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Superuser %s created (ID: %d)\n", account.Email, account.ID)

	case "promote", "demote":
		if len(args) < 1 {
			return fmt.Errorf("usage: %s <account_id>", command)
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		staff := command == "promote"
		in := service.AccountFlagsInput{IsStaff: &staff}
		if !staff {
			in.IsSuperuser = &staff
		}
		account, err := accounts.UpdateFlags(ctx, id, in)
		if err != nil {
			return err
		}
		fmt.Printf("Account %s (ID: %d) staff=%t\n", account.Email, account.ID, account.IsStaff)

	case "list-staff":
		staff, err := repo.ListStaff(ctx)
		if err != nil {
			return err
		}
		if len(staff) == 0 {
			fmt.Println("No staff accounts found")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tEMAIL\tSUPERUSER\tACTIVE")
		for _, a := range staff {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%t\t%t\n", a.ID, a.Email, a.IsSuperuser, a.IsActive)
		}
		return w.Flush()

	case "delete-account":
		if len(args) < 1 {
			return fmt.Errorf("usage: delete-account <account_id>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := accounts.DeleteAccount(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Account %d deleted\n", id)

	default:
		usage()
		return fmt.Errorf("unknown command: %s", command)
	}
	return nil
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid account id %q", raw)
	}
	return uint(id), nil
}
