package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kazumasamatsumoto/api-insta/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Fixture is a hand-written data set, typically loaded from a YAML file:
//
//	accounts:
//	  - email: alice@example.com
//	    password: password123
//	    nick_name: alice
//	    staff: true
//	    posts:
//	      - title: first light
//	        liked_by: [bob@example.com]
//	        comments:
//	          - author: bob@example.com
//	            text: nice
type Fixture struct {
	Accounts []FixtureAccount `yaml:"accounts"`
}

type FixtureAccount struct {
	Email    string        `yaml:"email"`
	Password string        `yaml:"password"`
	NickName string        `yaml:"nick_name"`
	Staff    bool          `yaml:"staff"`
	Posts    []FixturePost `yaml:"posts"`
}

type FixturePost struct {
	Title    string           `yaml:"title"`
	LikedBy  []string         `yaml:"liked_by"`
	Comments []FixtureComment `yaml:"comments"`
}

type FixtureComment struct {
	Author string `yaml:"author"`
	Text   string `yaml:"text"`
}

// LoadFixture reads and parses a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(raw)
}

// ParseFixture decodes a YAML fixture. Unknown keys are rejected.
func ParseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// ApplyFixture inserts every account first so that likes and comments may
// reference accounts declared later in the file.
func (s *Seeder) ApplyFixture(ctx context.Context, f *Fixture) (Summary, error) {
	var sum Summary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make(map[string]uint, len(f.Accounts))
		for _, fa := range f.Accounts {
			email := models.NormalizeEmail(fa.Email)
			if email == "" {
				return errors.New("fixture account without email")
			}
			password := fa.Password
			if password == "" {
				password = DefaultPassword
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			account := models.Account{Email: email, PasswordHash: string(hash), IsActive: true,
				IsStaff: fa.Staff}
			if err := tx.Create(&account).Error; err != nil {
				return fmt.Errorf("create account %s: %w", email, err)
			}
			ids[email] = account.ID
			sum.Accounts++

			if fa.NickName != "" {
				profile := models.Profile{NickName: truncate(fa.NickName, models.MaxNickNameLength), OwnerID: account.ID}
				if err := tx.Omit("Owner").Create(&profile).Error; err != nil {
					return fmt.Errorf("create profile for %s: %w", email, err)
				}
				sum.Profiles++
			}
		}

		lookup := func(email string) (uint, error) {
			id, ok := ids[models.NormalizeEmail(email)]
			if !ok {
				return 0, fmt.Errorf("fixture references unknown account %q", email)
			}
			return id, nil
		}

		for _, fa := range f.Accounts {
			authorID := ids[models.NormalizeEmail(fa.Email)]
			for _, fp := range fa.Posts {
				post := models.Post{Title: truncate(fp.Title, models.MaxTitleLength), AuthorID: authorID}
				if err := tx.Omit("Author").Create(&post).Error; err != nil {
					return fmt.Errorf("create post %q: %w", fp.Title, err)
				}
				sum.Posts++

				seen := map[uint]bool{}
				for _, email := range fp.LikedBy {
					id, err := lookup(email)
					if err != nil {
						return err
					}
					if seen[id] {
						continue
					}
					seen[id] = true
					if err := tx.Omit("Post", "Account").Create(&models.PostLike{PostID: post.ID, AccountID: id}).Error; err != nil {
						return fmt.Errorf("create like: %w", err)
					}
					sum.Likes++
				}

				for _, fc := range fp.Comments {
					id, err := lookup(fc.Author)
					if err != nil {
						return err
					}
					comment := models.Comment{Text: truncate(fc.Text, models.MaxCommentLength), AuthorID: id, PostID: post.ID}
					if err := tx.Omit("Author", "Post").Create(&comment).Error; err != nil {
						return fmt.Errorf("create comment: %w", err)
					}
					sum.Comments++
				}
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}
