package remote

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(remoteAddr string, headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = remoteAddr
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestResolveIgnoresHeadersFromUntrustedPeer(t *testing.T) {
	trusted, err := ParseTrusted([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	r := request("192.0.2.7:51000", map[string]string{
		"X-Forwarded-For": "203.0.113.9",
		"X-Real-IP":       "198.51.100.2",
	})
	assert.Equal(t, "192.0.2.7", Resolve(r, trusted))
	assert.Equal(t, "192.0.2.7", Resolve(r, nil))
}

func TestResolveBehindTrustedProxy(t *testing.T) {
	trusted, err := ParseTrusted([]string{"10.0.0.0/8", "172.16.0.1"})
	require.NoError(t, err)

	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"no headers", nil, "10.0.0.5"},
		{"single hop", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "203.0.113.9"},
		{"spoofed leftmost hop", map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.9"}, "203.0.113.9"},
		{"trusted chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 172.16.0.1"}, "203.0.113.9"},
		{"garbage hop", map[string]string{"X-Forwarded-For": "nonsense"}, "10.0.0.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(request("10.0.0.5:443", tc.headers), trusted))
		})
	}
}

func TestParseTrusted(t *testing.T) {
	prefixes, err := ParseTrusted([]string{" 127.0.0.1 ", "", "::1", "192.168.0.0/16"})
	require.NoError(t, err)
	assert.Len(t, prefixes, 3)

	_, err = ParseTrusted([]string{"proxy.local"})
	assert.Error(t, err)
	_, err = ParseTrusted([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}

func TestIPUsesResolverResult(t *testing.T) {
	trusted, err := ParseTrusted([]string{"10.0.0.1"})
	require.NoError(t, err)

	var seen string
	h := Resolver(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IP(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), request("10.0.0.1:80", map[string]string{"X-Forwarded-For": "203.0.113.9"}))
	assert.Equal(t, "203.0.113.9", seen)

	assert.Equal(t, "192.0.2.1", IP(request("192.0.2.1:80", map[string]string{"X-Forwarded-For": "203.0.113.9"})))
	assert.Equal(t, "pipe", IP(request("pipe", nil)))
}
