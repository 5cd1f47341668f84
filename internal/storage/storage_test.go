package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Pawan459/url-shortener/pkg/logx"
)

func openDrivers(t *testing.T) map[string]Store {
	t.Helper()
	stores := map[string]Store{}

	mem, err := Open(Config{Driver: "memory"}, logx.Nop())
	require.NoError(t, err)
	stores["memory"] = mem

	file, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "links.db")}, logx.Nop())
	require.NoError(t, err)
	stores["file"] = file

	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestPutGetRoundTrip(t *testing.T) {
	for name, st := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			link := Link{Code: "abc1234", URL: "https://example.com/long", CreatedAt: 1700000000000}
			require.NoError(t, st.Put(ctx, link))

			got, err := st.Get(ctx, "abc1234")
			require.NoError(t, err)
			require.Equal(t, link, got)

			_, err = st.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestPutRejectsDuplicateCode(t *testing.T) {
	for name, st := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, st.Put(ctx, Link{Code: "dup", URL: "https://a.example"}))
			require.Error(t, st.Put(ctx, Link{Code: "dup", URL: "https://b.example"}))
		})
	}
}

func TestLookupByURL(t *testing.T) {
	for name, st := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, st.Put(ctx, Link{Code: "x1", URL: "https://one.example"}))
			require.NoError(t, st.Put(ctx, Link{Code: "x2", URL: "https://two.example"}))

			got, err := st.LookupByURL(ctx, "https://two.example")
			require.NoError(t, err)
			require.Equal(t, "x2", got.Code)

			_, err = st.LookupByURL(ctx, "https://three.example")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRecordVisit(t *testing.T) {
	for name, st := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, st.Put(ctx, Link{Code: "v1", URL: "https://v.example"}))
			require.NoError(t, st.RecordVisit(ctx, "v1"))
			require.NoError(t, st.RecordVisit(ctx, "v1"))
			require.NoError(t, st.RecordVisit(ctx, "unknown"))

			got, err := st.Get(ctx, "v1")
			require.NoError(t, err)
			require.Equal(t, int64(2), got.Visits)
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "links.db")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, Link{Code: "keep", URL: "https://keep.example", CreatedAt: 42}))
	require.NoError(t, st.RecordVisit(ctx, "keep"))
	require.NoError(t, st.Close())

	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	got, err := st.Get(ctx, "keep")
	require.NoError(t, err)
	require.Equal(t, "https://keep.example", got.URL)
	require.Equal(t, int64(1), got.Visits)

	byURL, err := st.LookupByURL(ctx, "https://keep.example")
	require.NoError(t, err)
	require.Equal(t, "keep", byURL.Code)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "cassandra"}, logx.Nop())
	require.Error(t, err)
}

func TestOpenDefaultsToMemory(t *testing.T) {
	st, err := Open(Config{}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.Put(context.Background(), Link{Code: "m", URL: "https://m.example"}))
}
