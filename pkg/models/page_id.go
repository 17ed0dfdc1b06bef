package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// PagesTable is the table (SurrealDB), relation (PostgreSQL) and collection (MongoDB)
// that holds page records.
const PagesTable = "pages"

// PageID is a typed ID for pages.
//
// The same value travels through every backend: as a UUID column in PostgreSQL,
// as a RecordID (pages:<uuid>) in SurrealDB, as a string _id in MongoDB and as
// a plain string in JSON.
type PageID struct {
	uuid uuid.UUID
}

func NewPageID() PageID {
	return PageID{uuid: uuid.New()}
}

func NewPageIDFromUUID(id uuid.UUID) PageID {
	return PageID{uuid: id}
}

func ParsePageID(s string) (PageID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return PageID{}, fmt.Errorf("invalid page ID: %w", err)
	}
	return PageID{uuid: id}, nil
}

// MustParsePageID is ParsePageID for constants in tests and fixtures.
func MustParsePageID(s string) PageID {
	id, err := ParsePageID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (p PageID) UUID() uuid.UUID { return p.uuid }
func (p PageID) String() string  { return p.uuid.String() }
func (p PageID) IsZero() bool    { return p.uuid == uuid.Nil }

// Less orders ids by their byte representation. Keyset pagination relies on it.
func (p PageID) Less(other PageID) bool {
	for i := range p.uuid {
		if p.uuid[i] != other.uuid[i] {
			return p.uuid[i] < other.uuid[i]
		}
	}
	return false
}

func (p PageID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: PagesTable,
		ID:    p.uuid.String(),
	}
}

func (p PageID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.uuid.String())
}

func (p *PageID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	p.uuid = id
	return nil
}

func (p PageID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{PagesTable, p.uuid.String()},
	})
}

func (p *PageID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, PagesTable, &p.uuid)
}

func (p PageID) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, nil
	}
	return p.uuid.String(), nil
}

func (p *PageID) Scan(value any) error {
	return scanUUID(value, &p.uuid)
}

func (PageID) GormDataType() string { return "uuid" }

func (p PageID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(p.uuid.String())
}

func (p *PageID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	s, ok := bson.RawValue{Type: t, Value: data}.StringValueOK()
	if !ok {
		return fmt.Errorf("cannot decode BSON %s into page ID", t)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid page ID: %w", err)
	}
	p.uuid = id
	return nil
}

// scanUUID is a helper for implementing sql.Scanner interface for PostgreSQL/GORM
func scanUUID(value any, target *uuid.UUID) error {
	if value == nil {
		*target = uuid.Nil
		return nil
	}

	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*target = id
	case []byte:
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		*target = id
	default:
		return fmt.Errorf("cannot scan type %T into UUID", value)
	}
	return nil
}

// unmarshalCBORID decodes a SurrealDB RecordID (CBOR tag 8 wrapping [table, id]).
func unmarshalCBORID(data []byte, expectedTable string, target *uuid.UUID) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR tag: %w", err)
	}
	if tag.Number != 8 {
		return fmt.Errorf("expected RecordID tag (8), got %d", tag.Number)
	}

	arr, ok := tag.Content.([]any)
	if !ok || len(arr) != 2 {
		return fmt.Errorf("invalid RecordID format: expected [table, id] array")
	}
	table, ok := arr[0].(string)
	if !ok || table != expectedTable {
		return fmt.Errorf("expected table %s, got %v", expectedTable, arr[0])
	}
	idStr, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: ID must be string")
	}

	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("invalid UUID in RecordID: %w", err)
	}
	*target = parsed
	return nil
}
