package gcs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "pages"})
	require.ErrorContains(t, err, "client")
}

func TestCloseWithoutOwnedClient(t *testing.T) {
	t.Parallel()

	var s *BlobStore
	require.NoError(t, s.Close())
	require.NoError(t, (&BlobStore{}).Close())
}
