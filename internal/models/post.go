package models

import "github.com/google/uuid"

type Post struct {
	BaseModel
	Content  string    `json:"content" gorm:"type:text;not null"`
	AuthorID uuid.UUID `json:"authorID" gorm:"type:uuid;not null;index"`

	Author   User      `json:"author,omitempty" gorm:"foreignKey:AuthorID;references:ID"`
	Comments []Comment `json:"comments,omitempty" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

func (Post) TableName() string {
	return "posts"
}

type Comment struct {
	BaseModel
	Content  string    `json:"content" gorm:"type:text;not null"`
	AuthorID uuid.UUID `json:"authorID" gorm:"type:uuid;not null;index"`
	PostID   uuid.UUID `json:"postID" gorm:"type:uuid;not null;index"`

	Author User `json:"author,omitempty" gorm:"foreignKey:AuthorID;references:ID"`
	Post   Post `json:"-" gorm:"foreignKey:PostID;references:ID"`
}

func (Comment) TableName() string {
	return "comments"
}

// CanComment enforces the feed policy: only the post's author or a user
// holding the mechanic role may comment.
func (p *Post) CanComment(user *User) bool {
	if user == nil {
		return false
	}
	return user.ID == p.AuthorID || user.IsMechanic()
}
