package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Well-known page types. Any other string is a valid type; behaviour for it is
// looked up in the tree's manager registry.
const (
	TypeDefault = "default"
	TypeHome    = "home"
	TypeTrash   = "trash"
)

// RootPath is the materialized path of the root page. It is the only path
// that ends with the separator.
const RootPath = "/"

// PathSeparator separates materialized path and slug segments.
const PathSeparator = "/"

// ParkedRankBase is the start of the rank range reserved for parked pages.
// Ordinary siblings are appended with small ranks and sort before them.
const ParkedRankBase = 1000000

// Position names where a moved page goes relative to its target.
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
	PositionInside Position = "inside"
)

// Valid reports whether p is one of the three known positions.
func (p Position) Valid() bool {
	switch p {
	case PositionBefore, PositionAfter, PositionInside:
		return true
	}
	return false
}

// JSONMap is a flexible key-value map for page properties. It is stored as
// JSONB in PostgreSQL, as an object in SurrealDB and as an embedded document
// in MongoDB.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = make(map[string]any)
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("cannot scan type %T into JSONMap", value)
	}
}

// Page is one node of the tree, stored as a flat record.
//
// Topology lives in Path, Level and Rank. Ancestors and Children are never
// persisted; the tree builder fills them for read-side callers.
type Page struct {
	ID         PageID    `gorm:"type:uuid;primary_key" json:"id" bson:"_id"`
	Title      string    `gorm:"not null" json:"title" bson:"title"`
	Type       string    `gorm:"not null;default:'default'" json:"type" bson:"type"`
	Path       string    `gorm:"uniqueIndex;not null" json:"path" bson:"path"`
	Slug       string    `gorm:"index;not null" json:"slug" bson:"slug"`
	Level      int       `gorm:"index:idx_pages_level_rank;not null" json:"level" bson:"level"`
	Rank       int       `gorm:"index:idx_pages_level_rank;not null" json:"rank" bson:"rank"`
	Trash      bool      `gorm:"not null;default:false" json:"trash" bson:"trash"`
	Parked     bool      `gorm:"not null;default:false" json:"parked" bson:"parked"`
	Published  bool      `gorm:"not null;default:false" json:"published" bson:"published"`
	Properties JSONMap   `gorm:"type:jsonb" json:"properties,omitempty" bson:"properties,omitempty"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`

	Ancestors []*Page `gorm:"-" json:"_ancestors,omitempty" bson:"-" cbor:"-"`
	Children  []*Page `gorm:"-" json:"_children,omitempty" bson:"-" cbor:"-"`
}

// BeforeCreate hook to generate ID if not set
func (p *Page) BeforeCreate(tx *gorm.DB) error {
	if p.ID.IsZero() {
		p.ID = NewPageID()
	}
	return nil
}

// IsRoot reports whether p is the root of the tree.
func (p *Page) IsRoot() bool {
	return p.Level == 0
}

// IsTrashRoot reports whether p is the root of the trash subtree.
func (p *Page) IsTrashRoot() bool {
	return p.Type == TypeTrash
}

// Clone returns a shallow copy of p without its expanded ancestors and
// children. Properties are copied so the clone can be mutated safely.
func (p *Page) Clone() *Page {
	c := *p
	c.Ancestors = nil
	c.Children = nil
	if p.Properties != nil {
		c.Properties = make(JSONMap, len(p.Properties))
		for k, v := range p.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}

// ChildPrefix returns the prefix shared by the paths of every descendant of
// the page at path.
func ChildPrefix(path string) string {
	if path == RootPath {
		return RootPath
	}
	return path + PathSeparator
}

// JoinPath appends a segment to a parent path.
func JoinPath(parent, segment string) string {
	return ChildPrefix(parent) + segment
}

// ParentPath returns the path of the parent of the page at path, or "" for
// the root.
func ParentPath(path string) string {
	if path == RootPath || path == "" {
		return ""
	}
	i := strings.LastIndex(path, PathSeparator)
	if i <= 0 {
		return RootPath
	}
	return path[:i]
}

// LastSegment returns the trailing segment of a path or slug.
func LastSegment(path string) string {
	return path[strings.LastIndex(path, PathSeparator)+1:]
}

// AncestorPaths lists the paths of every ancestor of path, root first.
func AncestorPaths(path string) []string {
	var paths []string
	for p := ParentPath(path); p != ""; p = ParentPath(p) {
		paths = append(paths, p)
	}
	for i, j := 0, len(paths)-1; i < j; i, j = i+1, j-1 {
		paths[i], paths[j] = paths[j], paths[i]
	}
	return paths
}
