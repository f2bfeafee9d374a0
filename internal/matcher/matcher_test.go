package matcher

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPv4(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0.0.0.0", true},
		{"10.0.0.1", true},
		{"192.168.1.254", true},
		{"255.255.255.255", true},
		{"010.001.1.1", true},
		{"256.1.1.1", false},
		{"1.1.1.300", false},
		{"1.2.3", false},
		{"1.2.3.4.5", false},
		{"1..2.3", false},
		{"a.b.c.d", false},
		{"1.2.3.4 ", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IPv4.Matches(tt.in))
		})
	}
}

// 命中时每段都在 0~255；超范围或段数不对必须拒绝
func TestIPv4_OctetRange(t *testing.T) {
	for _, v := range []int{0, 1, 9, 10, 99, 100, 199, 200, 249, 250, 255, 256, 299, 300, 999} {
		addr := fmt.Sprintf("%d.%d.%d.%d", v, 1, 2, v)
		got := IPv4.Matches(addr)
		assert.Equal(t, v <= 255, got, addr)
		if got {
			for _, part := range strings.Split(addr, ".") {
				n, err := strconv.Atoi(part)
				require.NoError(t, err)
				assert.True(t, n >= 0 && n <= 255)
			}
		}
	}
	assert.False(t, IPv4.Matches("1.2.3.4.5"))
	assert.False(t, IPv4.Matches("1.2.3"))
}

func TestHostname(t *testing.T) {
	long := strings.Repeat("a", 63)
	tests := []struct {
		in   string
		want bool
	}{
		{"db1", true},
		{"db1.example.com", true},
		{"existing-host", true},
		{"a-b-c.d", true},
		{long + ".com", true},
		{long + "a.com", false},
		{"-bad.com", false},
		{"bad-.com", false},
		{"bad..com", false},
		{".com", false},
		{"under_score", false},
		{"space host", false},
		{strings.Repeat("a.", 127) + "a", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Hostname.Matches(tt.in))
		})
	}
}

func TestDownLevelLogon(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"bare user", "alice", true},
		{"domain user", `DOMAIN\bob`, true},
		{"user with space", `CORP\John Smith`, true},
		{"15 char domain", `ABCDEFGHIJKLMNO\bob`, true},
		{"16 char domain", `ABCDEFGHIJKLMNOP\bob`, false},
		{"dot in domain", `corp.local\bob`, false},
		{"star in domain", `CO*RP\bob`, false},
		{"empty domain", `\bob`, false},
		{"empty user", `CORP\`, false},
		{"two backslashes", `A\B\c`, false},
		{"at sign", "bob@corp", false},
		{"only dots", "...", false},
		{"only spaces", "   ", false},
		{"64 chars", strings.Repeat("u", 64), true},
		{"65 chars", strings.Repeat("u", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DownLevelLogon.Matches(tt.in))
		})
	}
}

func TestUPN(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"bare user", "alice", true},
		{"full upn", "alice@corp.example.com", true},
		{"single label suffix", "bob@corp", true},
		{"empty suffix", "bob@", false},
		{"bad suffix", "bob@-corp", false},
		{"two at signs", "a@b@c", false},
		{"backslash", `CORP\bob@corp`, false},
		{"only dots before at", "..@corp", false},
		{"empty user", "@corp", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UPN.Matches(tt.in))
		})
	}
}

func TestAny(t *testing.T) {
	assert.True(t, Any("10.0.0.1", Hostname, IPv4))
	assert.True(t, Any(`CORP\bob`, DownLevelLogon, UPN))
	assert.False(t, Any("bad host!", Hostname, IPv4))
	assert.False(t, Any("x"))
}
