package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/ahrherrera/mysql-notifier/internal/notice"
	"github.com/ahrherrera/mysql-notifier/internal/session"
)

// Live 一个打开中的添加 / 编辑会话
type Live struct {
	ID       string
	S        *session.Session
	Notices  *notice.Queue
	Opened   time.Time
	lastUsed time.Time
}

// SessionStore 内存存储，闲置超过 ttl 的会话被清理
type SessionStore struct {
	mu  sync.Mutex
	m   map[string]*Live
	ttl time.Duration
	clk clock.Clock
}

func NewSessionStore(ttl time.Duration, clk clock.Clock) *SessionStore {
	if clk == nil {
		clk = clock.WallClock
	}
	return &SessionStore{m: map[string]*Live{}, ttl: ttl, clk: clk}
}

func (st *SessionStore) Add(s *session.Session, q *notice.Queue) *Live {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.clk.Now()
	ls := &Live{ID: uuid.NewString(), S: s, Notices: q, Opened: now, lastUsed: now}
	st.m[ls.ID] = ls
	return ls
}

// Get 命中即续期
func (st *SessionStore) Get(id string) (*Live, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	ls, ok := st.m[id]
	if !ok || st.expiredLocked(ls) {
		delete(st.m, id)
		return nil, errors.NotFoundf("session %q", id)
	}
	ls.lastUsed = st.clk.Now()
	return ls, nil
}

func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.m[id]
	delete(st.m, id)
	return ok
}

// Sweep 返回清理掉的数量
func (st *SessionStore) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, ls := range st.m {
		if st.expiredLocked(ls) {
			delete(st.m, id)
			n++
		}
	}
	return n
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.m)
}

func (st *SessionStore) expiredLocked(ls *Live) bool {
	return st.ttl > 0 && st.clk.Now().Sub(ls.lastUsed) > st.ttl
}
