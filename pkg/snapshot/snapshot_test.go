package snapshot_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rhdl/rhdl/pkg/snapshot"
)

func TestRoundTrip(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	savedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := snapshot.New("memory", 0x1000, data, savedAt)

	var buf bytes.Buffer
	require.NoError(t, snapshot.Encode(&buf, s))
	require.Contains(t, buf.String(), `"dataB64"`)
	require.Contains(t, buf.String(), `"savedAtIso": "2026-01-02T03:04:05Z"`)

	got, err := snapshot.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, data, got.Data)
	require.Equal(t, 0x1000, got.Offset)
	require.Equal(t, 4, got.Length)
	require.Equal(t, snapshot.CurrentVersion, got.Version)
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	bad := `{"kind":"memory","version":1,"offset":0,"length":99,"savedAtMs":0,"savedAtIso":"x","dataB64":"3q2+7w=="}`
	_, err := snapshot.Decode(bytes.NewBufferString(bad))
	require.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/snap.json"
	s := snapshot.New("memory", 0, []byte{1, 2, 3}, time.Unix(0, 0))
	require.NoError(t, snapshot.Save(path, s))

	got, err := snapshot.Load(path)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got.Data)
}
