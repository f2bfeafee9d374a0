// Package notice 面向操作者的一次性提示（弹窗的抽象）。
package notice

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Kind string

const (
	Info    Kind = "info"
	Warning Kind = "warning"
	Error   Kind = "error"
)

// Choice 用户对提示的回应；纯提示返回 None
type Choice string

const (
	None Choice = ""
	Yes  Choice = "yes"
	No   Choice = "no"
)

type Notifier interface {
	Notify(kind Kind, title, message string) Choice
}

type Notice struct {
	Kind    Kind      `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Answer  Choice    `json:"answer,omitempty"`
	At      time.Time `json:"at"`
}

// Queue 把提示攒起来交给调用方（HTTP 轮询时取走）。
// Warning 视为确认框，用预设的 answer 作答。
type Queue struct {
	mu      sync.Mutex
	items   []Notice
	confirm Choice
	now     func() time.Time
}

func NewQueue() *Queue { return &Queue{confirm: No, now: time.Now} }

// SetConfirm 预设下一次确认框的回答
func (q *Queue) SetConfirm(c Choice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.confirm = c
}

func (q *Queue) Notify(kind Kind, title, message string) Choice {
	q.mu.Lock()
	defer q.mu.Unlock()
	answer := None
	if kind == Warning {
		answer = q.confirm
		if answer == None {
			answer = No
		}
	}
	q.items = append(q.items, Notice{Kind: kind, Title: title, Message: message, Answer: answer, At: q.now()})
	return answer
}

// Drain 取走并清空
func (q *Queue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Log 只记日志的实现，确认框一律回答 No
type Log struct{ L *zap.Logger }

func (l Log) Notify(kind Kind, title, message string) Choice {
	lg := l.L
	if lg == nil {
		lg = zap.NewNop()
	}
	lg.Info("提示", zap.String("kind", string(kind)), zap.String("title", title), zap.String("message", message))
	if kind == Warning {
		return No
	}
	return None
}

// Tee 依次转给多个 Notifier，以第一个非空回答为准
type Tee []Notifier

func (t Tee) Notify(kind Kind, title, message string) Choice {
	answer := None
	for _, n := range t {
		if c := n.Notify(kind, title, message); answer == None {
			answer = c
		}
	}
	return answer
}
