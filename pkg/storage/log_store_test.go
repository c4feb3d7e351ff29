package storage

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogStoreWriteOnce(t *testing.T) {
	store, err := NewLogStore(t.TempDir())
	require.NoError(t, err)

	rel := LogPath("TVB1", "2024-05-01", "json")
	require.Equal(t, "TVB1/2024-05-01.json", rel)

	_, err = store.Save(rel, []byte(`{"a":1}`))
	require.NoError(t, err)
	_, err = store.Save(rel, []byte(`{"a":1}`))
	require.NoError(t, err)

	_, err = store.Save(rel, []byte(`{"a":2}`))
	require.True(t, errors.Is(err, ErrContentMismatch))

	rc, err := store.Open(rel)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(data))
}

func TestLogStoreRejectsTraversal(t *testing.T) {
	store, err := NewLogStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../escape.json", []byte("x"))
	require.Error(t, err)
	_, err = store.Read("/etc/passwd")
	require.Error(t, err)
}
