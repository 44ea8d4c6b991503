package dahua

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Valid(t *testing.T) {
	for _, port := range []int{1, 80, 443, 65535} {
		base, err := Normalize("10.1.1.200", port)
		assert.NoError(t, err, "port %d", port)
		assert.Contains(t, base, "http://10.1.1.200:")
	}

	base, err := Normalize("  nvr.example.lan  ", 8080)
	assert.NoError(t, err)
	assert.Equal(t, "http://nvr.example.lan:8080", base)

	// Leading and trailing control characters trim away before validation.
	base, err = Normalize("10.1.1.200\r\n", 80)
	assert.NoError(t, err)
	assert.Equal(t, "http://10.1.1.200:80", base)
}

func TestNormalize_BadPorts(t *testing.T) {
	for _, port := range []int{0, 65536, -1, 37777} {
		_, err := Normalize("10.1.1.200", port)
		assert.Error(t, err, "port %d", port)
		assert.Equal(t, CodeInvalidTarget, ErrorCode(err))
	}
}

func TestNormalize_BadHosts(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"10.1.1.200; rm -rf /",
		"10.1.1.200 80",
		"host'name",
		`host"name`,
		"a|b",
		"a&b",
		"ho\rst",
		"ho\nst",
	}
	for _, host := range cases {
		_, err := Normalize(host, 80)
		assert.Error(t, err, "host %q", host)
		assert.Equal(t, CodeInvalidTarget, ErrorCode(err))
	}
}
