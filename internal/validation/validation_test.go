package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrherrera/mysql-notifier/internal/notice"
)

type fakeRegistry map[string]bool

func (f fakeRegistry) HasHostNamed(name string) bool { return f[strings.ToLower(name)] }

func TestValidate_Host(t *testing.T) {
	reg := fakeRegistry{"existing-host": true}
	tests := []struct {
		name       string
		in         Input
		wantValid  bool
		wantReason HostReason
	}{
		{"empty not judged", Input{Host: ""}, false, HostOK},
		{"localhost", Input{Host: "localhost"}, false, LocalHost},
		{"localhost upper", Input{Host: "LocalHost"}, false, LocalHost},
		{"loopback ip", Input{Host: "127.0.0.1"}, false, LocalHost},
		{"dot shorthand", Input{Host: "."}, false, LocalHost},
		{"local wins over duplicate", Input{Host: "localhost"}, false, LocalHost},
		{"duplicate", Input{Host: "existing-host"}, false, DuplicateHost},
		{"duplicate case insensitive", Input{Host: " EXISTING-HOST "}, false, DuplicateHost},
		{"edit mode same host", Input{Host: "existing-host", EditMode: true, EditingHost: "Existing-Host"}, true, HostOK},
		{"edit mode renamed onto other", Input{Host: "existing-host", EditMode: true, EditingHost: "web1"}, false, DuplicateHost},
		{"hostname", Input{Host: "db1.example.com"}, true, HostOK},
		{"ipv4", Input{Host: "10.1.2.3"}, true, HostOK},
		{"bad syntax", Input{Host: "db_1!"}, false, HostBadSyntax},
		{"whitespace only", Input{Host: "   "}, false, HostBadSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.in, reg)
			assert.Equal(t, tt.wantValid, res.HostValid)
			assert.Equal(t, tt.wantReason, res.HostReason)
		})
	}
}

func TestValidate_LocalHostAlwaysWins(t *testing.T) {
	reg := fakeRegistry{"localhost": true, "127.0.0.1": true, ".": true}
	for _, h := range []string{"localhost", "LOCALHOST", "127.0.0.1", "."} {
		for _, edit := range []bool{false, true} {
			res := Validate(Input{Host: h, User: "alice", EditMode: edit}, reg)
			assert.Equal(t, LocalHost, res.HostReason, h)
			assert.False(t, res.HostValid, h)
		}
	}
}

func TestValidate_User(t *testing.T) {
	tests := []struct {
		user       string
		wantValid  bool
		wantReason UserReason
	}{
		{"", false, UserOK},
		{"alice", true, UserOK},
		{`DOMAIN\bob`, true, UserOK},
		{"bob@corp.example.com", true, UserOK},
		{"bob@", false, UserBadSyntax},
		{`A\B\c`, false, UserBadSyntax},
		{"...", false, UserBadSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			res := Validate(Input{Host: "db1", User: tt.user}, nil)
			assert.Equal(t, tt.wantValid, res.UserValid)
			assert.Equal(t, tt.wantReason, res.UserReason)
		})
	}
}

func TestValidate_Idempotent(t *testing.T) {
	reg := fakeRegistry{"existing-host": true}
	for _, in := range []Input{
		{Host: "db1.example.com", User: `DOMAIN\bob`},
		{Host: "existing-host", User: "x@y"},
		{Host: "localhost", User: "alice"},
		{Host: "", User: ""},
	} {
		assert.Equal(t, Validate(in, reg), Validate(in, reg))
	}
}

func TestCommitEnabled(t *testing.T) {
	reg := fakeRegistry{"existing-host": true}
	hosts := []string{"", "localhost", "existing-host", "db1.example.com", "bad host"}
	users := []string{"", "alice", `DOMAIN\bob`, `A\B\c`}
	passwords := []string{"", "x"}
	for _, h := range hosts {
		for _, u := range users {
			for _, p := range passwords {
				res := Validate(Input{Host: h, User: u}, reg)
				want := res.HostValid && res.UserValid && h != "" && u != "" && p != ""
				assert.Equal(t, want, CommitEnabled(Fields{Host: h, User: u, Password: p}, res), "%q %q %q", h, u, p)
			}
		}
	}

	res := Validate(Input{Host: "localhost", User: "alice"}, reg)
	assert.False(t, CommitEnabled(Fields{Host: "localhost", User: "alice", Password: "x"}, res))
	res = Validate(Input{Host: "db1.example.com", User: `DOMAIN\bob`}, fakeRegistry{})
	assert.True(t, CommitEnabled(Fields{Host: "db1.example.com", User: `DOMAIN\bob`, Password: "x"}, res))
}

func TestEngine_NoticeDedup(t *testing.T) {
	q := notice.NewQueue()
	e := NewEngine(fakeRegistry{"existing-host": true}, q, false)

	e.Run(Input{Host: "localhost"})
	e.Run(Input{Host: "localhost"})
	e.Run(Input{Host: "localhost"})
	assert.Equal(t, 1, q.Len())

	e.Run(Input{Host: "existing-host"})
	assert.Equal(t, 2, q.Len())

	// 条件消失后再次出现，需要重新提示
	e.Run(Input{Host: "db1"})
	e.Run(Input{Host: "existing-host"})
	assert.Equal(t, 3, q.Len())

	got := q.Drain()
	assert.Equal(t, notice.Error, got[0].Kind)
	assert.Equal(t, 0, q.Len())
}

func TestEngine_RepeatNotices(t *testing.T) {
	q := notice.NewQueue()
	e := NewEngine(nil, q, true)
	for i := 0; i < 3; i++ {
		res := e.Run(Input{Host: "."})
		assert.Equal(t, LocalHost, res.HostReason)
	}
	assert.Equal(t, 3, q.Len())
}

func TestEngine_NoticeDoesNotChangeResult(t *testing.T) {
	reg := fakeRegistry{"existing-host": true}
	e := NewEngine(reg, notice.NewQueue(), false)
	in := Input{Host: "existing-host", User: "alice"}
	assert.Equal(t, Validate(in, reg), e.Run(in))
	assert.Equal(t, Validate(in, reg), e.Run(in))
}
