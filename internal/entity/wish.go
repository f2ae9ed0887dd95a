package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccessType string

const (
	AccessEveryone    AccessType = "everyone"
	AccessSubscribers AccessType = "subscribers"
	AccessOnlyMe      AccessType = "only_me"
)

var ErrWishProvenance = errors.New("wish must have exactly one of author, brand author or news author")

// Brand and News are provenance sources for editorial wishes.
type Brand struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"size:128;not null" json:"name"`
}

type News struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title string    `gorm:"size:256;not null" json:"title"`
}

type Wish struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string     `gorm:"size:128;not null" json:"name"`
	AuthorID      *uuid.UUID `gorm:"type:uuid;index" json:"author_id,omitempty"`
	Author        *User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	BrandAuthorID *uuid.UUID `gorm:"type:uuid;index" json:"brand_author_id,omitempty"`
	BrandAuthor   *Brand     `gorm:"foreignKey:BrandAuthorID;constraint:OnDelete:CASCADE" json:"-"`
	NewsAuthorID  *uuid.UUID `gorm:"type:uuid;index" json:"news_author_id,omitempty"`
	NewsAuthor    *News      `gorm:"foreignKey:NewsAuthorID;constraint:OnDelete:CASCADE" json:"-"`
	AccessType    AccessType `gorm:"size:20;not null;default:everyone" json:"access_type"`
	IsFulfilled   bool       `gorm:"default:false;not null" json:"is_fulfilled"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (w *Wish) BeforeCreate(tx *gorm.DB) (err error) {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.AccessType == "" {
		w.AccessType = AccessEveryone
	}
	if w.ID == uuid.Nil {
		w.ID, err = uuid.NewV7()
	}
	return
}

// Validate enforces mutually exclusive provenance.
func (w *Wish) Validate() error {
	n := 0
	for _, id := range []*uuid.UUID{w.AuthorID, w.BrandAuthorID, w.NewsAuthorID} {
		if id != nil {
			n++
		}
	}
	if n != 1 {
		return ErrWishProvenance
	}
	return nil
}

// IsEditorial reports whether the wish comes from a brand or news source
// rather than an individual.
func (w *Wish) IsEditorial() bool {
	return w.AuthorID == nil
}

// OwnerID is the individual author, uuid.Nil for editorial wishes.
func (w *Wish) OwnerID() uuid.UUID {
	if w.AuthorID == nil {
		return uuid.Nil
	}
	return *w.AuthorID
}
