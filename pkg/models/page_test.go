package models_test

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/pagetree/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
)

func TestPathHelpers(t *testing.T) {
	tests := []struct {
		path      string
		parent    string
		prefix    string
		ancestors []string
	}{
		{path: "/", parent: "", prefix: "/", ancestors: nil},
		{path: "/a", parent: "/", prefix: "/a/", ancestors: []string{"/"}},
		{path: "/a/b/c", parent: "/a/b", prefix: "/a/b/c/", ancestors: []string{"/", "/a", "/a/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.parent, models.ParentPath(tt.path))
			assert.Equal(t, tt.prefix, models.ChildPrefix(tt.path))
			assert.Equal(t, tt.ancestors, models.AncestorPaths(tt.path))
		})
	}

	assert.Equal(t, "/home", models.JoinPath("/", "home"))
	assert.Equal(t, "/a/b", models.JoinPath("/a", "b"))
	assert.Equal(t, "post-1", models.LastSegment("/blog/post-1"))
	assert.Equal(t, "", models.LastSegment("/"))
}

func TestPosition(t *testing.T) {
	assert.True(t, models.PositionBefore.Valid())
	assert.True(t, models.PositionAfter.Valid())
	assert.True(t, models.PositionInside.Valid())
	assert.False(t, models.Position("beside").Valid())
}

func TestPageIDEncodings(t *testing.T) {
	id := models.MustParsePageID("7f0c1a52-8f57-4d5e-9f0d-4f0b8a5d2c11")

	t.Run("json", func(t *testing.T) {
		data, err := json.Marshal(id)
		require.NoError(t, err)
		assert.Equal(t, `"7f0c1a52-8f57-4d5e-9f0d-4f0b8a5d2c11"`, string(data))

		var decoded models.PageID
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, id, decoded)
	})

	t.Run("cbor record id", func(t *testing.T) {
		data, err := cbor.Marshal(id)
		require.NoError(t, err)

		var tag cbor.Tag
		require.NoError(t, cbor.Unmarshal(data, &tag))
		assert.Equal(t, uint64(8), tag.Number)
		assert.Equal(t, []any{"pages", id.String()}, tag.Content)

		var decoded models.PageID
		require.NoError(t, cbor.Unmarshal(data, &decoded))
		assert.Equal(t, id, decoded)
	})

	t.Run("cbor wrong table", func(t *testing.T) {
		data, err := cbor.Marshal(cbor.Tag{Number: 8, Content: []any{"users", id.String()}})
		require.NoError(t, err)
		var decoded models.PageID
		assert.Error(t, cbor.Unmarshal(data, &decoded))
	})

	t.Run("bson", func(t *testing.T) {
		data, err := bson.Marshal(bson.M{"_id": id})
		require.NoError(t, err)

		var doc struct {
			ID models.PageID `bson:"_id"`
		}
		require.NoError(t, bson.Unmarshal(data, &doc))
		assert.Equal(t, id, doc.ID)

		raw, err := bson.Raw(data).LookupErr("_id")
		require.NoError(t, err)
		assert.Equal(t, id.String(), raw.StringValue())
	})

	t.Run("sql", func(t *testing.T) {
		v, err := id.Value()
		require.NoError(t, err)
		assert.Equal(t, id.String(), v)

		var scanned models.PageID
		require.NoError(t, scanned.Scan([]byte(id.String())))
		assert.Equal(t, id, scanned)

		zero, err := models.PageID{}.Value()
		require.NoError(t, err)
		assert.Nil(t, zero)
	})
}

func TestPageIDLess(t *testing.T) {
	a := models.MustParsePageID("00000000-0000-0000-0000-000000000001")
	b := models.MustParsePageID("00000000-0000-0000-0000-000000000002")
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

func TestPageClone(t *testing.T) {
	p := &models.Page{
		ID:         models.NewPageID(),
		Path:       "/a",
		Properties: models.JSONMap{"color": "red"},
		Children:   []*models.Page{{Path: "/a/b"}},
	}
	c := p.Clone()
	c.Properties["color"] = "blue"

	assert.Equal(t, "red", p.Properties["color"])
	assert.Nil(t, c.Children)
	assert.Equal(t, p.ID, c.ID)
}
