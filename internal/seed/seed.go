// Package seed fills a development database with fake accounts, profiles,
// posts, likes and comments.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kazumasamatsumoto/api-insta/internal/middleware"
	"github.com/kazumasamatsumoto/api-insta/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated account.
const DefaultPassword = "password123"

// Options configuration for the seeder
type Options struct {
	Accounts        int
	Posts           int
	CommentsPerPost int
	// MaxLikesPerPost bounds the random like set of each post.
	MaxLikesPerPost int
	Clean           bool
}

// Summary counts what a run created.
type Summary struct {
	Accounts int
	Profiles int
	Posts    int
	Likes    int
	Comments int
}

// Seeder writes generated rows straight through GORM.
type Seeder struct {
	db       *gorm.DB
	faker    *gofakeit.Faker
	hashCost int
}

// NewSeeder builds a Seeder. A zero seed picks a random one.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	return &Seeder{db: db, faker: gofakeit.New(seed), hashCost: bcrypt.DefaultCost}
}

// ClearAll deletes every account. Profiles, posts, likes and comments follow
// through the ON DELETE CASCADE foreign keys.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Account{}).Error; err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	middleware.Logger.InfoContext(ctx, "existing data cleared")
	return nil
}

// Run generates data according to opts.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	if opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return sum, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), s.hashCost)
	if err != nil {
		return sum, fmt.Errorf("hash password: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts, err := s.createAccounts(tx, opts.Accounts, string(hash))
		if err != nil {
			return err
		}
		sum.Accounts = len(accounts)
		sum.Profiles = len(accounts)
		if len(accounts) == 0 {
			return nil
		}

		for i := 0; i < opts.Posts; i++ {
			author := accounts[s.faker.Number(0, len(accounts)-1)]
			post := &models.Post{Title: truncate(s.faker.Sentence(5), models.MaxTitleLength), AuthorID: author.ID}
			if err := tx.Omit("Author").Create(post).Error; err != nil {
				return fmt.Errorf("create post: %w", err)
			}
			sum.Posts++

			likes, err := s.likePost(tx, post.ID, accounts, opts.MaxLikesPerPost)
			if err != nil {
				return err
			}
			sum.Likes += likes

			for j := 0; j < opts.CommentsPerPost; j++ {
				commenter := accounts[s.faker.Number(0, len(accounts)-1)]
				comment := &models.Comment{
					Text:     truncate(s.faker.Sentence(8), models.MaxCommentLength),
					AuthorID: commenter.ID,
					PostID:   post.ID,
				}
				if err := tx.Omit("Author", "Post").Create(comment).Error; err != nil {
					return fmt.Errorf("create comment: %w", err)
				}
				sum.Comments++
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	middleware.Logger.InfoContext(ctx, "seeding complete",
		slog.Int("accounts", sum.Accounts),
		slog.Int("posts", sum.Posts),
		slog.Int("likes", sum.Likes),
		slog.Int("comments", sum.Comments),
	)
	return sum, nil
}

func (s *Seeder) createAccounts(tx *gorm.DB, count int, hash string) ([]models.Account, error) {
	accounts := make([]models.Account, 0, count)
	for i := 0; i < count; i++ {
		nick := truncate(strings.ToLower(s.faker.Username()), models.MaxNickNameLength-4)
		account := models.Account{
			Email:        fmt.Sprintf("%s%d@example.com", strings.ToLower(s.faker.FirstName()), i),
			PasswordHash: hash,
			IsActive:     true,
		}
		account.Email = truncate(account.Email, models.MaxEmailLength)
		if err := tx.Create(&account).Error; err != nil {
			return nil, fmt.Errorf("create account %s: %w", account.Email, err)
		}
		profile := models.Profile{NickName: fmt.Sprintf("%s%d", nick, i), OwnerID: account.ID}
		if err := tx.Omit("Owner").Create(&profile).Error; err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (s *Seeder) likePost(tx *gorm.DB, postID uint, accounts []models.Account, maxLikes int) (int, error) {
	if maxLikes <= 0 {
		return 0, nil
	}
	n := s.faker.Number(0, min(maxLikes, len(accounts)))
	if n == 0 {
		return 0, nil
	}
	likes := make([]models.PostLike, 0, n)
	seen := make(map[uint]bool, n)
	for len(likes) < n {
		a := accounts[s.faker.Number(0, len(accounts)-1)]
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		likes = append(likes, models.PostLike{PostID: postID, AccountID: a.ID})
	}
	if err := tx.Omit("Post", "Account").Create(&likes).Error; err != nil {
		return 0, fmt.Errorf("create likes: %w", err)
	}
	return len(likes), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
