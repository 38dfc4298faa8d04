package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{Secret: testSecret, Issuer: "pinpoint-test", Lifetime: time.Hour})
	require.NoError(t, err)
	return m
}

// TestPurpose: Validates issue/verify round trip of the organization claim.
// Scope: Unit Test
// Security: Organization claims originate only from server-signed tokens
// Expected: Verified session carries the issued user and organization.
// Test Case ID: SES-01
func TestManager_IssueVerify(t *testing.T) {
	m := newTestManager(t)

	raw, issued, err := m.Issue("user-1", "org-a")
	require.NoError(t, err)

	s, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, "org-a", s.OrganizationID)
	assert.Equal(t, issued.ID, s.ID)
	assert.False(t, s.IsExpired())
}

// TestPurpose: Validates that a token whose payload was edited by the client is rejected.
// Scope: Unit Test
// Security: Client cannot rewrite its own organization claim (privilege escalation)
// Expected: ErrSessionInvalid.
// Test Case ID: SES-02
func TestManager_TamperedToken(t *testing.T) {
	m := newTestManager(t)
	raw, _, err := m.Issue("user-1", "org-a")
	require.NoError(t, err)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		OrganizationID: "org-b",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "pinpoint-test",
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	forgedRaw, err := forged.SignedString([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)

	_, err = m.Verify(forgedRaw)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	parts := strings.Split(raw, ".")
	_, err = m.Verify(parts[0] + "." + strings.Split(forgedRaw, ".")[1] + "." + parts[2])
	assert.ErrorIs(t, err, ErrSessionInvalid)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}})
	noneRaw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Verify(noneRaw)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestManager_Expired(t *testing.T) {
	m := newTestManager(t)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	raw, _, err := m.Issue("user-1", "")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(raw)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestNewManager_ShortSecret(t *testing.T) {
	_, err := NewManager(Config{Secret: []byte("short")})
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	ctx := WithSession(context.Background(), &Session{UserID: "u"})
	assert.Equal(t, "u", FromContext(ctx).UserID)
}
