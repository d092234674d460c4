package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fuseerrors "github.com/searchworks/partfuse/internal/errors"
	"github.com/searchworks/partfuse/internal/search"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := OpenCatalog(filepath.Join(t.TempDir(), CatalogName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCatalog_UpsertAndLookup(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	docs := []ProductDoc{
		{ID: "p1", Product: search.Product{
			PartNumber:    "RAD-5083",
			MfrPartNumber: "KY-5083",
			Description:   "radial ball bearing",
			Brand:         "Koyo",
			Price:         14.95,
			ImageURL:      "https://img.example.com/p1.jpg",
		}},
		{ID: "p2", Product: search.Product{
			PartNumber:  "HYP220479",
			Description: "hydraulic gear pump",
		}},
	}
	require.NoError(t, c.Upsert(ctx, docs))

	products, err := c.Products(ctx, []string{"p1", "p2"})
	require.NoError(t, err)
	require.Len(t, products, 2)

	p1 := products["p1"]
	assert.Equal(t, "RAD-5083", p1.PartNumber)
	assert.Equal(t, "KY-5083", p1.MfrPartNumber)
	assert.Equal(t, "radial ball bearing", p1.Description)
	assert.Equal(t, "Koyo", p1.Brand)
	assert.InDelta(t, 14.95, p1.Price, 0.001)
	assert.Equal(t, "https://img.example.com/p1.jpg", p1.ImageURL)
}

func TestCatalog_MissingIDsAreAbsent(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, []ProductDoc{
		{ID: "p1", Product: search.Product{PartNumber: "RAD-5083"}},
	}))

	products, err := c.Products(ctx, []string{"p1", "ghost"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	_, ok := products["ghost"]
	assert.False(t, ok)
}

func TestCatalog_EmptyIDs(t *testing.T) {
	c := newTestCatalog(t)

	products, err := c.Products(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCatalog_UpsertReplaces(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, []ProductDoc{
		{ID: "p1", Product: search.Product{PartNumber: "RAD-5083", Price: 10}},
	}))
	require.NoError(t, c.Upsert(ctx, []ProductDoc{
		{ID: "p1", Product: search.Product{PartNumber: "RAD-5083", Price: 12.5}},
	}))

	count, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	products, err := c.Products(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.InDelta(t, 12.5, products["p1"].Price, 0.001)
}

func TestCatalog_Delete(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, []ProductDoc{
		{ID: "p1", Product: search.Product{PartNumber: "RAD-5083"}},
		{ID: "p2", Product: search.Product{PartNumber: "HYP220479"}},
	}))
	require.NoError(t, c.Delete(ctx, []string{"p1"}))

	count, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCatalog_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), CatalogName)
	ctx := context.Background()

	c, err := OpenCatalog(path)
	require.NoError(t, err)
	require.NoError(t, c.Upsert(ctx, []ProductDoc{
		{ID: "p1", Product: search.Product{PartNumber: "RAD-5083"}},
	}))
	require.NoError(t, c.Close())

	reopened, err := OpenCatalog(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	products, err := reopened.Products(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, "RAD-5083", products["p1"].PartNumber)
}

func TestCatalog_ErrorsCarryCatalogCode(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.Close())

	_, err := c.Products(context.Background(), []string{"p1"})
	require.Error(t, err)

	var fe *fuseerrors.FuseError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fuseerrors.ErrCodeCatalogUnavailable, fe.Code)
}
