// Package debounce 把一串连续的输入事件合并成一次校验。
//
// 状态只有 Idle / Pending 两种，判断依据是截止时间戳而不是计时器回调，
// 所以注入 testclock 即可在测试里推进时间。计时器通道只用来唤醒调用方的事件循环。
package debounce

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

type State int

const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}

type Scheduler struct {
	mu       sync.Mutex
	clk      clock.Clock
	quiet    time.Duration
	fire     func()
	state    State
	deadline time.Time
	timer    clock.Timer
}

// New quiet 为静默窗口；fire 在窗口结束或强制校验时被调用
func New(clk clock.Clock, quiet time.Duration, fire func()) *Scheduler {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Scheduler{clk: clk, quiet: quiet, fire: fire}
}

// Touch 输入变化：进入 Pending 并重新计时，不做校验
func (s *Scheduler) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Pending
	s.deadline = s.clk.Now().Add(s.quiet)
	// 每次换新计时器，旧通道不会再收到值
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clk.NewTimer(s.quiet)
}

// Poll 窗口已过则回到 Idle 并校验一次，返回是否触发
func (s *Scheduler) Poll() bool {
	s.mu.Lock()
	if s.state != Pending || s.clk.Now().Before(s.deadline) {
		s.mu.Unlock()
		return false
	}
	s.settle()
	s.mu.Unlock()
	s.invoke()
	return true
}

// Flush 强制校验（如离开输入框）；只有 Pending 时才生效
func (s *Scheduler) Flush() bool {
	s.mu.Lock()
	if s.state != Pending {
		s.mu.Unlock()
		return false
	}
	s.settle()
	s.mu.Unlock()
	s.invoke()
	return true
}

func (s *Scheduler) settle() {
	s.state = Idle
	s.deadline = time.Time{}
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Scheduler) invoke() {
	if s.fire != nil {
		s.fire()
	}
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Pending() bool { return s.State() == Pending }

// Deadline Idle 时为零值
func (s *Scheduler) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

// C 当前计时器的唤醒通道，收到后调用 Poll；每轮循环都要重新取。从未 Touch 过时返回 nil
func (s *Scheduler) C() <-chan time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return nil
	}
	return s.timer.Chan()
}
