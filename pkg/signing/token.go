package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FeedTokenSigner creates and validates signed calendar feed tokens. The
// token embeds the subject user so feed URLs work without session auth.
type FeedTokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewFeedTokenSigner constructs a signer with the provided secret and TTL.
func NewFeedTokenSigner(secret string, ttl time.Duration) *FeedTokenSigner {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &FeedTokenSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate returns a signed token for the user and feed scope.
func (s *FeedTokenSigner) Generate(userID, scope string) (string, time.Time, error) {
	if userID == "" || scope == "" {
		return "", time.Time{}, fmt.Errorf("userID and scope required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	encodedScope := base64.RawURLEncoding.EncodeToString([]byte(scope))
	payload := fmt.Sprintf("%s|%d|%s", userID, expiresAt.Unix(), encodedScope)
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))
	token := strings.Join([]string{userID, strconv.FormatInt(expiresAt.Unix(), 10), encodedScope, signature}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded user and scope.
func (s *FeedTokenSigner) Parse(token string) (userID, scope string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("invalid token format")
	}
	userID = parts[0]
	ts := parts[1]
	encodedScope := parts[2]
	signature := parts[3]

	rawScope, err := base64.RawURLEncoding.DecodeString(encodedScope)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode scope: %w", err)
	}

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid timestamp")
	}
	expiresAt = time.Unix(expUnix, 0)

	payload := fmt.Sprintf("%s|%s|%s", userID, ts, encodedScope)
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}
	if time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return userID, string(rawScope), expiresAt, nil
}
