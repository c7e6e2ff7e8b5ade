package firemirror_test

import (
	"context"
	"testing"

	"github.com/illmade-knight/go-integrations/pkg/firemirror"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMirror(t *testing.T, cfg firemirror.CollectionConfig) *firemirror.Mirror {
	t.Helper()
	mirror, err := firemirror.NewMirror(&firemirror.MirrorConfig{
		Collections: map[string]firemirror.CollectionConfig{
			"settings": cfg,
		},
	}, nil, zerolog.Nop())
	require.NoError(t, err)
	return mirror
}

func TestMirror_ApplyChangeAddAndRemove(t *testing.T) {
	mirror := newTestMirror(t, firemirror.CollectionConfig{})

	_, err := mirror.ApplyChange("settings", firemirror.ChangeAdded, "doc1", firemirror.Document{"name": "alpha"})
	require.NoError(t, err)

	doc, ok := mirror.Document("settings", "doc1")
	require.True(t, ok)
	assert.Equal(t, "alpha", doc["name"])

	_, err = mirror.ApplyChange("settings", firemirror.ChangeRemoved, "doc1", nil)
	require.NoError(t, err)

	_, ok = mirror.Document("settings", "doc1")
	assert.False(t, ok)
}

func TestMirror_ApplyChangeUnknownCollection(t *testing.T) {
	mirror := newTestMirror(t, firemirror.CollectionConfig{})

	_, err := mirror.ApplyChange("unknown", firemirror.ChangeAdded, "doc1", firemirror.Document{})
	require.Error(t, err)
}

func TestMirror_NullDocumentPatching(t *testing.T) {
	mirror := newTestMirror(t, firemirror.CollectionConfig{
		NullDocument: firemirror.Document{
			"name":    "",
			"enabled": false,
			"limits":  firemirror.Document{"daily": 0, "burst": 0},
		},
	})

	patched, err := mirror.ApplyChange("settings", firemirror.ChangeAdded, "doc1", firemirror.Document{
		"name":   "alpha",
		"limits": firemirror.Document{"daily": 100},
	})
	require.NoError(t, err)
	assert.True(t, patched, "missing keys must be reported as a patch")

	doc, ok := mirror.Document("settings", "doc1")
	require.True(t, ok)
	assert.Equal(t, "alpha", doc["name"], "existing values are never overwritten")
	assert.Equal(t, false, doc["enabled"])
	limits, ok := doc["limits"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 100, limits["daily"])
	assert.Equal(t, 0, limits["burst"], "nested missing keys are filled from the template")
}

func TestMirror_CompleteDocumentNotPatched(t *testing.T) {
	mirror := newTestMirror(t, firemirror.CollectionConfig{
		NullDocument: firemirror.Document{"name": ""},
	})

	patched, err := mirror.ApplyChange("settings", firemirror.ChangeAdded, "doc1", firemirror.Document{"name": "alpha"})
	require.NoError(t, err)
	assert.False(t, patched)
}

func TestMirror_OnUpdateHandler(t *testing.T) {
	type update struct {
		collection, docID string
		doc               firemirror.Document
	}
	var updates []update

	mirror := newTestMirror(t, firemirror.CollectionConfig{
		OnUpdate: func(collection, docID string, doc firemirror.Document) {
			updates = append(updates, update{collection, docID, doc})
		},
	})

	_, err := mirror.ApplyChange("settings", firemirror.ChangeAdded, "doc1", firemirror.Document{"name": "alpha"})
	require.NoError(t, err)
	_, err = mirror.ApplyChange("settings", firemirror.ChangeModified, "doc1", firemirror.Document{"name": "beta"})
	require.NoError(t, err)
	_, err = mirror.ApplyChange("settings", firemirror.ChangeRemoved, "doc1", nil)
	require.NoError(t, err)

	require.Len(t, updates, 2, "removals do not dispatch the update handler")
	assert.Equal(t, "alpha", updates[0].doc["name"])
	assert.Equal(t, "beta", updates[1].doc["name"])
}

func TestMirror_AccessorsReturnCopies(t *testing.T) {
	mirror := newTestMirror(t, firemirror.CollectionConfig{})

	_, err := mirror.ApplyChange("settings", firemirror.ChangeAdded, "doc1", firemirror.Document{
		"nested": firemirror.Document{"value": 1},
	})
	require.NoError(t, err)

	doc, ok := mirror.Document("settings", "doc1")
	require.True(t, ok)
	doc["nested"].(map[string]any)["value"] = 99

	fresh, ok := mirror.Document("settings", "doc1")
	require.True(t, ok)
	assert.Equal(t, 1, fresh["nested"].(map[string]any)["value"], "mutating a returned document must not affect the mirror")

	all := mirror.Collection("settings")
	delete(all, "doc1")
	_, ok = mirror.Document("settings", "doc1")
	assert.True(t, ok)
}

func TestMirror_StartRequiresClient(t *testing.T) {
	mirror := newTestMirror(t, firemirror.CollectionConfig{})
	err := mirror.Start(context.Background())
	require.Error(t, err)
}

func TestNewMirror_RequiresCollections(t *testing.T) {
	_, err := firemirror.NewMirror(&firemirror.MirrorConfig{}, nil, zerolog.Nop())
	require.Error(t, err)
}
