package shortener

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Pawan459/url-shortener/internal/storage"
	"github.com/Pawan459/url-shortener/pkg/logx"
)

func newService(t *testing.T) *Service {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "memory"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(st, nil, logx.Nop())
}

func TestShortenMintsSevenCharCode(t *testing.T) {
	svc := newService(t)

	link, created, err := svc.Shorten(context.Background(), "https://example.com/some/long/path", "client-a")
	require.NoError(t, err)
	require.True(t, created)
	require.Len(t, link.Code, 7)
	require.Equal(t, "https://example.com/some/long/path", link.URL)
	require.Equal(t, "client-a", link.ClientID)
	require.NotZero(t, link.CreatedAt)
}

func TestShortenReusesExistingCode(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	first, created, err := svc.Shorten(ctx, "https://example.com/page", "")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.Shorten(ctx, "https://example.com/page", "")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.Code, second.Code)
}

func TestShortenNormalizesBeforeDedup(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	first, _, err := svc.Shorten(ctx, "https://EXAMPLE.com/page", "")
	require.NoError(t, err)

	// Host case and fragments do not produce distinct links.
	second, created, err := svc.Shorten(ctx, "https://example.com/page#section", "")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.Code, second.Code)
}

func TestShortenDefaultsScheme(t *testing.T) {
	svc := newService(t)

	link, _, err := svc.Shorten(context.Background(), "example.com/bare", "")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/bare", link.URL)
}

func TestShortenRejectsBadURLs(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for _, raw := range []string{"", "   ", "ftp://example.com", "not a url", "https://"} {
		_, _, err := svc.Shorten(ctx, raw, "")
		require.ErrorIs(t, err, ErrInvalidURL, "input %q", raw)
	}
}

func TestResolveRecordsVisit(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	link, _, err := svc.Shorten(ctx, "https://example.com/visited", "")
	require.NoError(t, err)

	got, err := svc.Resolve(ctx, link.Code)
	require.NoError(t, err)
	require.Equal(t, link.URL, got.URL)

	again, err := svc.Resolve(ctx, link.Code)
	require.NoError(t, err)
	require.Equal(t, int64(1), again.Visits)
}

func TestResolveUnknownCode(t *testing.T) {
	svc := newService(t)
	_, err := svc.Resolve(context.Background(), "nope")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCodeAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := newCode()
		require.NoError(t, err)
		require.Len(t, code, codeLength)
		for _, r := range code {
			require.Contains(t, codeAlphabet, string(r))
		}
	}
}
