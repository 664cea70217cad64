package models

import "time"

// MaxTitleLength is the storage limit for Post.Title.
const MaxTitleLength = 100

// Post is an image post authored by an Account.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:100;not null" json:"title"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    *Account  `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedOn time.Time `gorm:"autoCreateTime;<-:create" json:"created_on"`
	Image     *string   `gorm:"size:255" json:"image"`
	// LikedBy is loaded from post_likes by the repository, ordered by account id.
	LikedBy []uint `gorm:"-" json:"liked_by"`
}

// IsLikedBy reports whether accountID is in the post's liked set.
func (p *Post) IsLikedBy(accountID uint) bool {
	for _, id := range p.LikedBy {
		if id == accountID {
			return true
		}
	}
	return false
}

// PostLike is the join row between a Post and an Account that liked it.
// Both sides cascade so likes disappear with either the post or the account.
type PostLike struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false"`
	AccountID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	Account   *Account  `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for PostLike.
func (PostLike) TableName() string {
	return "post_likes"
}
