package models

import "time"

// MaxNickNameLength is the storage limit for Profile.NickName.
const MaxNickNameLength = 20

// Profile is the public face of an Account. Each account owns at most one.
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	NickName  string    `gorm:"size:20;not null" json:"nick_name"`
	OwnerID   uint      `gorm:"not null;uniqueIndex" json:"owner_id"`
	Owner     *Account  `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedOn time.Time `gorm:"autoCreateTime;<-:create" json:"created_on"`
	Avatar    *string   `gorm:"size:255" json:"avatar"`
}
