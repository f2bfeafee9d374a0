package service

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrherrera/mysql-notifier/internal/crypto"
	"github.com/ahrherrera/mysql-notifier/internal/db"
	"github.com/ahrherrera/mysql-notifier/internal/models"
	"github.com/ahrherrera/mysql-notifier/internal/monitor"
	"github.com/ahrherrera/mysql-notifier/internal/notice"
	"github.com/ahrherrera/mysql-notifier/internal/repo"
	"github.com/ahrherrera/mysql-notifier/internal/session"
	"github.com/ahrherrera/mysql-notifier/internal/validation"
	"github.com/ahrherrera/mysql-notifier/internal/workflow"
)

type stubProbe struct {
	online bool
	calls  int
}

func (p *stubProbe) Test(context.Context, workflow.Target, bool) workflow.ProbeResult {
	p.calls++
	return workflow.ProbeResult{Online: p.online, Detail: "stub"}
}

type countingScheduler struct{ refreshes int }

func (c *countingScheduler) Refresh() error { c.refreshes++; return nil }
func (c *countingScheduler) CheckAll(context.Context) ([]monitor.Status, error) {
	return []monitor.Status{{ID: 1, Online: true}}, nil
}
func (c *countingScheduler) CheckOne(_ context.Context, id uint) (monitor.Status, error) {
	return monitor.Status{ID: id}, nil
}

type fixture struct {
	repo     *repo.MachineRepo
	box      *crypto.Box
	probe    *stubProbe
	sched    *countingScheduler
	clk      *testclock.Clock
	machines *MachinesService
	sessions *SessionsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := db.Open(filepath.Join(t.TempDir(), "svc.db"), nil)
	require.NoError(t, err)
	box, err := crypto.NewBox(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("m", 32))))
	require.NoError(t, err)

	f := &fixture{
		repo:  repo.NewMachineRepo(gdb, nil),
		box:   box,
		probe: &stubProbe{online: true},
		sched: &countingScheduler{},
		clk:   testclock.NewClock(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.machines = NewMachinesService(f.repo, f.sched, nil)
	f.sessions = NewSessionsService(session.Config{QuietWindow: 300 * time.Millisecond}, SessionsDeps{
		Machines: f.machines,
		Registry: f.repo,
		Probe:    f.probe,
		Box:      box,
		Store:    NewSessionStore(time.Minute, f.clk),
		Clock:    f.clk,
	})
	return f
}

func (f *fixture) seed(t *testing.T, host, pass string, online bool) *models.Machine {
	t.Helper()
	sealed, err := f.box.Seal(pass)
	require.NoError(t, err)
	m := &models.Machine{Host: host, User: "root", Password: sealed, Online: online}
	require.NoError(t, f.repo.Create(m))
	return m
}

func strp(s string) *string { return &s }

func TestSessions_AddAndCommit(t *testing.T) {
	f := newFixture(t)
	v, err := f.sessions.Open(0)
	require.NoError(t, err)
	assert.False(t, v.EditMode)
	assert.False(t, v.CommitEnabled)
	assert.Equal(t, f.clk.Now(), v.OpenedAt)

	v, err = f.sessions.Update(v.ID, Patch{Host: strp("db1.example.com"), User: strp("root"), Password: strp("pw")})
	require.NoError(t, err)
	assert.True(t, v.Pending)
	assert.False(t, v.CommitEnabled)

	v, err = f.sessions.Leave(v.ID)
	require.NoError(t, err)
	assert.False(t, v.Pending)
	assert.True(t, v.Validation.HostValid)
	assert.True(t, v.CommitEnabled)

	res, err := f.sessions.Commit(context.Background(), v.ID, false, false)
	require.NoError(t, err)
	assert.Equal(t, workflow.Committed, res.Outcome.Kind)
	assert.True(t, res.Closed)
	require.NotNil(t, res.Outcome.Entry)
	assert.NotZero(t, res.Outcome.Entry.ID)
	assert.Equal(t, 1, f.probe.calls)
	assert.Equal(t, 1, f.sched.refreshes)

	saved, err := f.repo.Get(res.Outcome.Entry.ID)
	require.NoError(t, err)
	assert.True(t, saved.Online)
	assert.NotEqual(t, "pw", saved.Password)
	assert.Equal(t, "pw", f.box.MustOpen(saved.Password))

	_, err = f.sessions.Get(v.ID)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestSessions_QuietWindowElapses(t *testing.T) {
	f := newFixture(t)
	v, _ := f.sessions.Open(0)
	v, _ = f.sessions.Update(v.ID, Patch{Host: strp("web1"), User: strp("u"), Password: strp("p")})
	require.True(t, v.Pending)

	f.clk.Advance(300 * time.Millisecond)
	v, err := f.sessions.Get(v.ID)
	require.NoError(t, err)
	assert.False(t, v.Pending)
	assert.True(t, v.CommitEnabled)
}

func TestSessions_DuplicateHostNotice(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "db1", "x", true)

	v, _ := f.sessions.Open(0)
	f.sessions.Update(v.ID, Patch{Host: strp("DB1"), User: strp("root"), Password: strp("p")})
	v, err := f.sessions.Leave(v.ID)
	require.NoError(t, err)
	assert.Equal(t, validation.DuplicateHost, v.Validation.HostReason)
	assert.False(t, v.CommitEnabled)
	require.Len(t, v.Notices, 1)
	assert.Equal(t, notice.Error, v.Notices[0].Kind)

	// 提示已取走；同一原因不重复
	v, _ = f.sessions.Leave(v.ID)
	assert.Empty(t, v.Notices)

	res, err := f.sessions.Commit(context.Background(), v.ID, false, false)
	require.NoError(t, err)
	assert.Equal(t, workflow.Failure, res.Outcome.Kind)
	assert.Equal(t, workflow.Refused, res.Outcome.Reason)
	assert.Equal(t, 0, f.probe.calls)
}

func TestSessions_EditTrustsKnownStatus(t *testing.T) {
	f := newFixture(t)
	m := f.seed(t, "db1", "secret", true)

	v, err := f.sessions.Open(m.ID)
	require.NoError(t, err)
	assert.True(t, v.EditMode)
	assert.Equal(t, m.ID, v.EditingID)
	assert.Equal(t, "db1", v.Host)
	assert.True(t, v.PasswordSet)
	assert.True(t, v.CommitEnabled)

	f.sessions.Update(v.ID, Patch{User: strp("admin"), IntervalValue: uintp(5), IntervalUnit: strp("minutes")})
	res, err := f.sessions.Commit(context.Background(), v.ID, false, false)
	require.NoError(t, err)
	assert.Equal(t, workflow.Committed, res.Outcome.Kind)
	assert.Equal(t, 0, f.probe.calls)

	got, _ := f.repo.Get(m.ID)
	assert.Equal(t, "admin", got.User)
	assert.Equal(t, 5*time.Minute, got.AutoTestInterval())
	assert.Equal(t, "secret", f.box.MustOpen(got.Password))
	ms, _ := f.repo.List()
	assert.Len(t, ms, 1)
}

func uintp(u uint) *uint { return &u }

func TestSessions_OverwriteConfirmed(t *testing.T) {
	f := newFixture(t)
	f.probe.online = false

	v, _ := f.sessions.Open(0)
	f.sessions.Update(v.ID, Patch{Host: strp("db2"), User: strp("new"), Password: strp("p2")})
	v, _ = f.sessions.Leave(v.ID)
	require.True(t, v.CommitEnabled)

	// 校验之后别处登记了同名机器
	existing := f.seed(t, "db2", "p1", true)

	res, err := f.sessions.Commit(context.Background(), v.ID, false, true)
	require.NoError(t, err)
	assert.Equal(t, workflow.Committed, res.Outcome.Kind)
	assert.True(t, res.Outcome.Overwritten)
	assert.Equal(t, existing.ID, res.Outcome.Entry.ID)
	require.NotEmpty(t, res.View.Notices)
	assert.Equal(t, notice.Yes, res.View.Notices[len(res.View.Notices)-1].Answer)

	got, _ := f.repo.Get(existing.ID)
	assert.Equal(t, "new", got.User)
	assert.Equal(t, "p2", f.box.MustOpen(got.Password))
}

func TestSessions_OverwriteDeclined(t *testing.T) {
	f := newFixture(t)
	f.probe.online = false

	v, _ := f.sessions.Open(0)
	f.sessions.Update(v.ID, Patch{Host: strp("db2"), User: strp("new"), Password: strp("p2")})
	f.sessions.Leave(v.ID)
	existing := f.seed(t, "db2", "p1", true)

	res, err := f.sessions.Commit(context.Background(), v.ID, false, false)
	require.NoError(t, err)
	assert.Equal(t, workflow.Aborted, res.Outcome.Kind)
	assert.False(t, res.Closed)

	got, _ := f.repo.Get(existing.ID)
	assert.Equal(t, "root", got.User)
}

func TestSessions_TestAction(t *testing.T) {
	f := newFixture(t)
	v, _ := f.sessions.Open(0)
	f.sessions.Update(v.ID, Patch{Host: strp("web1"), User: strp("u"), Password: strp("p")})

	res, err := f.sessions.Test(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Success, res.Outcome.Kind)
	require.Len(t, res.View.Notices, 1)
	assert.Equal(t, notice.Info, res.View.Notices[0].Kind)

	f.probe.online = false
	res, _ = f.sessions.Test(context.Background(), v.ID)
	assert.Equal(t, workflow.ProbeFailure, res.Outcome.Reason)
}

func TestSessions_InvalidUnitAndMissing(t *testing.T) {
	f := newFixture(t)
	v, _ := f.sessions.Open(0)
	_, err := f.sessions.Update(v.ID, Patch{IntervalUnit: strp("days")})
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = f.sessions.Open(404)
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.True(t, errors.Is(f.sessions.Close("nope"), errors.NotFound))
	require.NoError(t, f.sessions.Close(v.ID))
}

func TestSessions_Expire(t *testing.T) {
	f := newFixture(t)
	a, _ := f.sessions.Open(0)
	b, _ := f.sessions.Open(0)

	f.clk.Advance(40 * time.Second)
	_, err := f.sessions.Get(a.ID)
	require.NoError(t, err)

	f.clk.Advance(40 * time.Second)
	assert.Equal(t, 1, f.sessions.Sweep())
	_, err = f.sessions.Get(b.ID)
	assert.True(t, errors.Is(err, errors.NotFound))
	_, err = f.sessions.Get(a.ID)
	assert.NoError(t, err)
}

func TestMachines_DeleteRefreshes(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, "a", "", false)
	b := f.seed(t, "b", "", false)

	require.NoError(t, f.machines.Delete(a.ID))
	assert.True(t, errors.Is(f.machines.Delete(a.ID), errors.NotFound))
	n, err := f.machines.BatchDelete([]uint{b.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2, f.sched.refreshes)

	st, err := f.machines.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, st, 1)
}

func TestMachines_PersistDuplicate(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a", "", false)
	_, err := f.machines.Persist(&models.Machine{Host: "A"})
	assert.True(t, errors.Is(err, errors.AlreadyExists))

	_, err = NewMachinesService(f.repo, nil, nil).CheckAll(context.Background())
	assert.True(t, errors.Is(err, errors.NotSupported))
}
