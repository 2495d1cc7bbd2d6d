package models

import (
	"time"
)

type Account struct {
	DID              string     `json:"did" gorm:"primaryKey;type:text"`
	Handle           string     `json:"handle" gorm:"type:text;uniqueIndex"`
	Address          *string    `json:"address" gorm:"type:text;uniqueIndex"`
	Email            string     `json:"email" gorm:"type:text"`
	PasswordHash     string     `json:"-" gorm:"type:text"`
	CDate            time.Time  `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	DeactivatedAt    *time.Time `json:"deactivatedAt" gorm:"type:timestamp with time zone"`
	TakendownAt      *time.Time `json:"takendownAt" gorm:"type:timestamp with time zone"`
	EmailConfirmedAt *time.Time `json:"emailConfirmedAt" gorm:"type:timestamp with time zone"`
}

// RepoRoot is the single mutable pointer per account. Every apply locks
// this row, so the compare-and-swap is serialized with persistence.
type RepoRoot struct {
	DID   string    `json:"did" gorm:"primaryKey;type:text"`
	CID   string    `json:"cid" gorm:"type:text;not null"`
	Rev   string    `json:"rev" gorm:"type:text;not null"`
	MDate time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

// RepoBlock holds canonical record bytes, addressed by content.
type RepoBlock struct {
	DID     string    `json:"did" gorm:"primaryKey;type:text"`
	CID     string    `json:"cid" gorm:"primaryKey;type:text"`
	Content []byte    `json:"content" gorm:"type:bytea"`
	CDate   time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// RepoEntry maps a collection/rkey path to the block currently holding
// its record.
type RepoEntry struct {
	DID        string    `json:"did" gorm:"primaryKey;type:text"`
	Collection string    `json:"collection" gorm:"primaryKey;type:text"`
	RKey       string    `json:"rkey" gorm:"primaryKey;type:text"`
	CID        string    `json:"cid" gorm:"type:text;not null"`
	MDate      time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

type CommitLog struct {
	DID       string    `json:"did" gorm:"primaryKey;type:text"`
	Rev       string    `json:"rev" gorm:"primaryKey;type:text"`
	CID       string    `json:"cid" gorm:"type:text;not null"`
	Prev      *string   `json:"prev" gorm:"type:text"`
	Data      string    `json:"data" gorm:"type:text;not null"`
	Signature []byte    `json:"signature" gorm:"type:bytea"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
