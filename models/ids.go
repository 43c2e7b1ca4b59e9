package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Typed IDs keep property, listing, and lease identifiers from being mixed
// up at compile time while staying storable everywhere the harness writes:
// string UUIDs for JSON and relational columns, tag-8 record ids for
// SurrealDB.

// PropertyID identifies a Property.
type PropertyID struct {
	uuid uuid.UUID
}

func NewPropertyID() PropertyID {
	return PropertyID{uuid: uuid.New()}
}

func NewPropertyIDFromUUID(id uuid.UUID) PropertyID {
	return PropertyID{uuid: id}
}

func ParsePropertyID(s string) (PropertyID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return PropertyID{}, fmt.Errorf("invalid property ID: %w", err)
	}
	return PropertyID{uuid: id}, nil
}

func (p PropertyID) UUID() uuid.UUID { return p.uuid }
func (p PropertyID) String() string  { return p.uuid.String() }
func (p PropertyID) IsZero() bool    { return p.uuid == uuid.Nil }

func (p PropertyID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: "properties",
		ID:    p.uuid.String(),
	}
}

func (p PropertyID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.uuid.String())
}

func (p *PropertyID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &p.uuid)
}

func (p PropertyID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{"properties", p.uuid.String()},
	})
}

func (p *PropertyID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, "properties", &p.uuid)
}

func (p PropertyID) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, nil
	}
	return p.uuid.String(), nil
}

func (p *PropertyID) Scan(value any) error {
	return scanUUID(value, &p.uuid)
}

func (PropertyID) GormDataType() string { return "uuid" }

// ListingID identifies a Listing.
type ListingID struct {
	uuid uuid.UUID
}

func NewListingID() ListingID {
	return ListingID{uuid: uuid.New()}
}

func NewListingIDFromUUID(id uuid.UUID) ListingID {
	return ListingID{uuid: id}
}

func ParseListingID(s string) (ListingID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ListingID{}, fmt.Errorf("invalid listing ID: %w", err)
	}
	return ListingID{uuid: id}, nil
}

func (l ListingID) UUID() uuid.UUID { return l.uuid }
func (l ListingID) String() string  { return l.uuid.String() }
func (l ListingID) IsZero() bool    { return l.uuid == uuid.Nil }

func (l ListingID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: "listings",
		ID:    l.uuid.String(),
	}
}

func (l ListingID) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.uuid.String())
}

func (l *ListingID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &l.uuid)
}

func (l ListingID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{"listings", l.uuid.String()},
	})
}

func (l *ListingID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, "listings", &l.uuid)
}

func (l ListingID) Value() (driver.Value, error) {
	if l.IsZero() {
		return nil, nil
	}
	return l.uuid.String(), nil
}

func (l *ListingID) Scan(value any) error {
	return scanUUID(value, &l.uuid)
}

func (ListingID) GormDataType() string { return "uuid" }

// LeaseID identifies a Lease.
type LeaseID struct {
	uuid uuid.UUID
}

func NewLeaseID() LeaseID {
	return LeaseID{uuid: uuid.New()}
}

func NewLeaseIDFromUUID(id uuid.UUID) LeaseID {
	return LeaseID{uuid: id}
}

func ParseLeaseID(s string) (LeaseID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return LeaseID{}, fmt.Errorf("invalid lease ID: %w", err)
	}
	return LeaseID{uuid: id}, nil
}

func (l LeaseID) UUID() uuid.UUID { return l.uuid }
func (l LeaseID) String() string  { return l.uuid.String() }
func (l LeaseID) IsZero() bool    { return l.uuid == uuid.Nil }

func (l LeaseID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: "leases",
		ID:    l.uuid.String(),
	}
}

func (l LeaseID) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.uuid.String())
}

func (l *LeaseID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &l.uuid)
}

func (l LeaseID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{"leases", l.uuid.String()},
	})
}

func (l *LeaseID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, "leases", &l.uuid)
}

func (l LeaseID) Value() (driver.Value, error) {
	if l.IsZero() {
		return nil, nil
	}
	return l.uuid.String(), nil
}

func (l *LeaseID) Scan(value any) error {
	return scanUUID(value, &l.uuid)
}

func (LeaseID) GormDataType() string { return "uuid" }

func unmarshalJSONID(data []byte, target *uuid.UUID) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*target = id
	return nil
}

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

// unmarshalCBORID decodes a SurrealDB RecordID, which arrives as CBOR tag 8
// wrapping a [table, id] pair. Plain string UUIDs are accepted as well since
// relational rows round-trip through the same models.
func unmarshalCBORID(data []byte, expectedTable string, target *uuid.UUID) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	majorType := data[0] >> 5
	if majorType != 6 {
		var uuidStr string
		if err := cbor.Unmarshal(data, &uuidStr); err != nil {
			return err
		}
		parsed, err := uuid.Parse(uuidStr)
		if err != nil {
			return err
		}
		*target = parsed
		return nil
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
	if !ok {
		return fmt.Errorf("invalid RecordID format: table name must be string")
	}
	if table != expectedTable {
		return fmt.Errorf("expected table %s, got %s", expectedTable, table)
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
