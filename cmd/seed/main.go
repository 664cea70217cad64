// Command main runs the database seeder for api-insta.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/kazumasamatsumoto/api-insta/internal/config"
	"github.com/kazumasamatsumoto/api-insta/internal/database"
	"github.com/kazumasamatsumoto/api-insta/internal/seed"
)

func main() {
	numAccounts := flag.Int("accounts", 20, "Number of accounts to create")
	numPosts := flag.Int("posts", 60, "Number of posts to create")
	comments := flag.Int("comments", 2, "Comments per post")
	likes := flag.Int("likes", 5, "Maximum likes per post")
	shouldClean := flag.Bool("clean", false, "Delete every account before seeding")
	fixture := flag.String("fixture", "", "Load a YAML fixture instead of generating fake data")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	s := seed.NewSeeder(db, *randSeed)

	var sum seed.Summary
	if *fixture != "" {
		f, err := seed.LoadFixture(*fixture)
		if err != nil {
			log.Fatalf("Fixture load failed: %v", err)
		}
		if *shouldClean {
			if err := s.ClearAll(ctx); err != nil {
				log.Fatalf("Cleanup failed: %v", err)
			}
		}
		sum, err = s.ApplyFixture(ctx, f)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
	} else {
		sum, err = s.Run(ctx, seed.Options{
			Accounts:        *numAccounts,
			Posts:           *numPosts,
			CommentsPerPost: *comments,
			MaxLikesPerPost: *likes,
			Clean:           *shouldClean,
		})
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Printf("All generated accounts have the password: %s", seed.DefaultPassword)
	}

	log.Printf("Seeded %d accounts, %d profiles, %d posts, %d likes, %d comments",
		sum.Accounts, sum.Profiles, sum.Posts, sum.Likes, sum.Comments)
}
