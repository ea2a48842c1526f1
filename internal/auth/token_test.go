package auth

import (
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTokens(t *testing.T, clock *fakeClock) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager("super-secret", "HS256", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	return tm
}

func TestIssueAndValidate_Success(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	tm := newTestTokens(t, clock)

	tok, exp, err := tm.Issue("alice", 7, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(30*time.Minute), exp)

	claims, err := tm.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, int64(7), claims.UserID)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, clock.now.Unix(), claims.IssuedAt.Unix())
}

func TestIssue_DefaultTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	tm := newTestTokens(t, clock)

	_, exp, err := tm.Issue("alice", 7, 0)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(time.Hour), exp)
	assert.Equal(t, time.Hour, tm.TTL())
}

func TestIssue_EmptySubject(t *testing.T) {
	tm := newTestTokens(t, &fakeClock{now: time.Now()})

	_, _, err := tm.Issue("", 7, time.Minute)
	assert.Error(t, err)
}

func TestIssue_RequiresAccountID(t *testing.T) {
	tm := newTestTokens(t, &fakeClock{now: time.Now()})

	_, _, err := tm.Issue("alice", 0, time.Minute)
	assert.Error(t, err)
}

func TestValidate_Expired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	tm := newTestTokens(t, clock)

	tok, _, err := tm.Issue("alice", 7, time.Minute)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = tm.Validate(tok)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = tm.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_TamperedByte(t *testing.T) {
	tm := newTestTokens(t, &fakeClock{now: time.Now()})

	tok, _, err := tm.Issue("alice", 7, time.Hour)
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		// The final character of each base64 segment may only carry padding bits.
		if tok[i] == '.' || i == len(tok)-1 || tok[i+1] == '.' {
			continue
		}
		replacement := byte('A')
		if tok[i] == 'A' {
			replacement = 'B'
		}
		tampered := tok[:i] + string(replacement) + tok[i+1:]

		_, err := tm.Validate(tampered)
		assert.ErrorIs(t, err, ErrInvalidToken, "position %d", i)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestTokens(t, clock)
	other, err := NewTokenManager("another-secret", "HS256", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)

	tok, _, err := issuer.Issue("alice", 7, time.Hour)
	require.NoError(t, err)

	_, err = other.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_WrongAlgorithm(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	hs512, err := NewTokenManager("super-secret", "HS512", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	hs256 := newTestTokens(t, clock)

	tok, _, err := hs512.Issue("alice", 7, time.Hour)
	require.NoError(t, err)

	_, err = hs256.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_NoneAlgorithm(t *testing.T) {
	tm := newTestTokens(t, &fakeClock{now: time.Now()})

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_MissingExpiryOrSubject(t *testing.T) {
	tm := newTestTokens(t, &fakeClock{now: time.Now()})

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).
		SignedString([]byte("super-secret"))
	require.NoError(t, err)
	_, err = tm.Validate(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("super-secret"))
	require.NoError(t, err)
	_, err = tm.Validate(noSub)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noAccount, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("super-secret"))
	require.NoError(t, err)
	_, err = tm.Validate(noAccount)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_Malformed(t *testing.T) {
	tm := newTestTokens(t, &fakeClock{now: time.Now()})

	for _, tok := range []string{"", "not.a.jwt", "abc", strings.Repeat(".", 3)} {
		_, err := tm.Validate(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestNewTokenManager_Rejects(t *testing.T) {
	_, err := NewTokenManager("", "HS256", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenManager("secret", "RS256", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenManager("secret", "none", time.Hour)
	assert.Error(t, err)
}
