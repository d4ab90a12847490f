package signing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFeedTokenSignerGenerateAndParse(t *testing.T) {
	signer := NewFeedTokenSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("user-1", "calendar")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	userID, scope, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)
	require.Equal(t, "calendar", scope)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestFeedTokenSignerExpired(t *testing.T) {
	signer := NewFeedTokenSigner("secret", time.Millisecond*10)
	token, _, err := signer.Generate("user-1", "calendar")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 20)

	_, _, _, err = signer.Parse(token)
	require.Error(t, err)
}

func TestFeedTokenSignerTampered(t *testing.T) {
	signer := NewFeedTokenSigner("secret", time.Hour)
	token, _, err := signer.Generate("user-1", "calendar")
	require.NoError(t, err)

	_, _, _, err = signer.Parse("user-2" + token[len("user-1"):])
	require.Error(t, err)
}
