package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "pages/b.html", "text/html", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://pages/b.html", uri)

	payload[0] = 'C'
	got, ok := store.Object("pages/b.html")
	require.True(t, ok)
	require.Equal(t, "content", string(got))

	_, err = store.PutObject(context.Background(), "pages/a.html", "text/html", bytes.NewReader(nil))
	require.NoError(t, err)
	require.Equal(t, []string{"pages/a.html", "pages/b.html"}, store.Keys())
}
