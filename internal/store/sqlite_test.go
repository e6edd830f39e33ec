package store

import (
	"path/filepath"
	"testing"

	"patchbay/internal/entities/bundle"

	"github.com/stretchr/testify/require"
)

// gatewayContract exercises the Gateway semantics shared by both
// implementations.
func gatewayContract(t *testing.T, gw Gateway) {
	t.Helper()

	records, err := gw.ListAll()
	require.NoError(t, err)
	require.Empty(t, records)

	_, ok, err := gw.MaxSortOrder()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, gw.Upsert(bundle.Source{UID: 0, Name: "official", Kind: bundle.KindRemote, URL: "https://example.com/feed.json", SortOrder: 0, CreatedAt: 1, AutoUpdate: true}))
	require.NoError(t, gw.Upsert(bundle.Source{UID: 42, Name: "community", Kind: bundle.KindRemote, URL: "https://example.com/other.json", SortOrder: 2, CreatedAt: 2}))
	require.NoError(t, gw.Upsert(bundle.Source{UID: 17, Name: "mine", Kind: bundle.KindLocal, SortOrder: 1, CreatedAt: 3}))

	records, err = gw.ListAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []int64{0, 17, 42}, []int64{records[0].UID, records[1].UID, records[2].UID})

	max, ok, err := gw.MaxSortOrder()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, max)

	record, err := gw.GetProperties(42)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "community", record.Name)

	record, err = gw.GetProperties(999)
	require.NoError(t, err)
	require.Nil(t, record)

	// upsert updates, not duplicates
	require.NoError(t, gw.Upsert(bundle.Source{UID: 42, Name: "community", Kind: bundle.KindRemote, URL: "https://example.com/other.json", VersionHash: "v9", SortOrder: 2, CreatedAt: 2}))
	records, err = gw.ListAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	record, err = gw.GetProperties(42)
	require.NoError(t, err)
	require.Equal(t, "v9", record.VersionHash)

	require.NoError(t, gw.UpdateSortOrder(42, 0))
	require.NoError(t, gw.UpdateSortOrder(0, 2))
	records, err = gw.ListAll()
	require.NoError(t, err)
	require.Equal(t, int64(42), records[0].UID)
	require.Equal(t, int64(0), records[2].UID)

	require.NoError(t, gw.UpsertAll([]bundle.Source{
		{UID: 42, Name: "community", Kind: bundle.KindRemote, URL: "https://example.com/other.json", VersionHash: "v10", SortOrder: 0, CreatedAt: 2},
		{UID: 17, Name: "mine", Kind: bundle.KindLocal, VersionHash: "hash", SortOrder: 1, CreatedAt: 3},
	}))
	record, err = gw.GetProperties(17)
	require.NoError(t, err)
	require.Equal(t, "hash", record.VersionHash)

	require.NoError(t, gw.Remove(17))
	record, err = gw.GetProperties(17)
	require.NoError(t, err)
	require.Nil(t, record)
	records, err = gw.ListAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestSQLiteGateway(t *testing.T) {
	gw, err := OpenSQLite(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	defer gw.Close()
	gatewayContract(t, gw)
}

func TestMemoryGateway(t *testing.T) {
	gatewayContract(t, NewMemory())
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	gw, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, gw.Upsert(bundle.Source{UID: 5, Name: "kept", Kind: bundle.KindLocal, SortOrder: 0, CreatedAt: 1}))
	require.NoError(t, gw.Close())

	gw, err = OpenSQLite(path)
	require.NoError(t, err)
	defer gw.Close()
	record, err := gw.GetProperties(5)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "kept", record.Name)
}
