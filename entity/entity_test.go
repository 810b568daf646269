package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessCodeRedeemable(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	cases := []struct {
		name string
		code AccessCode
		want bool
	}{
		{"fresh single use", AccessCode{SingleUse: true}, true},
		{"used single use", AccessCode{SingleUse: true, Used: true}, false},
		{"used multi use", AccessCode{SingleUse: false, Used: true}, true},
		{"expired unused", AccessCode{SingleUse: true, ExpiresAt: &past}, false},
		{"expired multi use", AccessCode{ExpiresAt: &past}, false},
		{"not yet expired", AccessCode{SingleUse: true, ExpiresAt: &future}, true},
		{"expires exactly now", AccessCode{SingleUse: true, ExpiresAt: &now}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.code.Redeemable(now))
		})
	}
}

func TestIssueSpecDefaults(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	var spec IssueSpec
	assert.True(t, spec.IsSingleUse())
	assert.Nil(t, spec.ExpiresAt(now))

	multi := false
	spec = IssueSpec{SingleUse: &multi, ExpiresInDays: 2}
	assert.False(t, spec.IsSingleUse())
	require.NotNil(t, spec.ExpiresAt(now))
	assert.Equal(t, now.Add(48*time.Hour), *spec.ExpiresAt(now))
}

func TestIssueSpecBind(t *testing.T) {
	spec := IssueSpec{IssuedToEmail: " a@b.io ", ExpiresInDays: -1}
	assert.Error(t, spec.Bind(nil))

	spec = IssueSpec{IssuedToEmail: " a@b.io "}
	require.NoError(t, spec.Bind(nil))
	assert.Equal(t, "a@b.io", spec.IssuedToEmail)
}

func TestAdminCredentialsUsernameFallback(t *testing.T) {
	c := AdminCredentials{Username: " Root@Alpha.io ", Password: "pw"}
	require.NoError(t, c.Bind(nil))
	assert.Equal(t, "root@alpha.io", c.Email)

	c = AdminCredentials{Password: "pw"}
	assert.Error(t, c.Bind(nil))
}

func TestLoginRequestBind(t *testing.T) {
	l := LoginRequest{
		Name: "Jane", CountryCode: "+91", Mobile: "9876543210", Email: "jane@example.com",
		City: "Pune", AlphaCode: " alpha@1a2b3c4d ", CaptchaId: "id", CaptchaAnswer: "ab12c",
	}
	require.NoError(t, l.Bind(nil))
	assert.Equal(t, "alpha@1a2b3c4d", l.AlphaCode)

	l.City = "  "
	err := l.Bind(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "city required")
}

func TestAccessRequestBindRequiresAnswers(t *testing.T) {
	r := AccessRequest{Name: "Jane", CountryCode: "+91", Mobile: "1", Email: "jane@example.com"}
	err := r.Bind(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "q1 required")
	assert.Equal(t, "+911", r.FullMobile())
}

func TestPrincipalIdentity(t *testing.T) {
	var p *Principal
	assert.Equal(t, "", p.Identity())
	assert.Equal(t, "42", (&Principal{ID: "42"}).Identity())
	assert.Equal(t, "a@b.io", (&Principal{ID: "42", Email: "a@b.io"}).Identity())
}
