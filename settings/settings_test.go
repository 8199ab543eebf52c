package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavryk-network/mvsign/review"
	"github.com/mavryk-network/mvsign/wallet"
)

var (
	_ review.Settings = (*Store)(nil)
	_ wallet.Settings = (*Store)(nil)
)

func testPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "settings.toml")
}

func TestOpenCreatesDefaults(t *testing.T) {
	path := testPath(t)

	s, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, Defaults(), s.Snapshot())
	assert.False(t, s.ExpertMode())
	assert.False(t, s.Blindsign())
	assert.Equal(t, ProfileButton, s.Profile())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestTogglesPersist(t *testing.T) {
	path := testPath(t)

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetExpertMode(true))
	require.NoError(t, s.SetBlindsign(true))
	require.NoError(t, s.SetProfile(ProfileTouch))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, Snapshot{ExpertMode: true, Blindsign: true, Profile: ProfileTouch}, reopened.Snapshot())
}

func TestUnknownProfile(t *testing.T) {
	s, err := Open(testPath(t))
	require.NoError(t, err)

	err = s.SetProfile("stax")
	assert.ErrorIs(t, err, ErrUnknownProfile)
	assert.Equal(t, ProfileButton, s.Profile())
}

func TestOpenRejectsBadFile(t *testing.T) {
	path := testPath(t)
	require.NoError(t, os.WriteFile(path, []byte("profile = \"weird\"\n"), 0o600))
	_, err := Open(path)
	assert.ErrorIs(t, err, ErrUnknownProfile)

	require.NoError(t, os.WriteFile(path, []byte("{not toml"), 0o600))
	_, err = Open(path)
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	path := testPath(t)

	s, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, s.Ping())

	require.NoError(t, os.WriteFile(path, []byte("{not toml"), 0o600))
	assert.Error(t, s.Ping())

	require.NoError(t, os.Remove(path))
	assert.NoError(t, s.Ping())
}

func TestOnChange(t *testing.T) {
	s, err := Open(testPath(t))
	require.NoError(t, err)

	var got []Snapshot
	s.OnChange(func(snap Snapshot) { got = append(got, snap) })

	require.NoError(t, s.SetBlindsign(true))
	require.NoError(t, s.SetBlindsign(true)) // no-op, same value

	require.Len(t, got, 1)
	assert.True(t, got[0].Blindsign)
}

func TestWatchPicksUpExternalEdit(t *testing.T) {
	path := testPath(t)
	s, err := Open(path)
	require.NoError(t, err)

	ch := make(chan Snapshot, 4)
	s.OnChange(func(snap Snapshot) { ch <- snap })

	require.NoError(t, s.Watch())
	defer s.Close()

	edited := "expert_mode = true\nblindsign = true\nprofile = \"touch\"\n"
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o600))

	select {
	case snap := <-ch:
		assert.Equal(t, Snapshot{ExpertMode: true, Blindsign: true, Profile: ProfileTouch}, snap)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after external edit")
	}
	assert.True(t, s.ExpertMode())
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	path := testPath(t)
	s, err := Open(path)
	require.NoError(t, err)

	ch := make(chan Snapshot, 4)
	s.OnChange(func(snap Snapshot) { ch <- snap })

	require.NoError(t, s.Watch())
	defer s.Close()

	other := filepath.Join(filepath.Dir(path), "unrelated.toml")
	require.NoError(t, os.WriteFile(other, []byte("blindsign = true\n"), 0o600))

	select {
	case snap := <-ch:
		t.Fatalf("unexpected reload: %+v", snap)
	case <-time.After(300 * time.Millisecond):
	}
	assert.False(t, s.Blindsign())
}

func TestSaveRestoresOnFailure(t *testing.T) {
	path := testPath(t)
	s, err := Open(path)
	require.NoError(t, err)

	// make the directory read-only so the temp file write fails
	dir := filepath.Dir(path)
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	err = s.SetBlindsign(true)
	if err == nil {
		t.Skip("running as privileged user, write not denied")
	}
	assert.False(t, s.Blindsign())
}
