// Package validation 把主机 / 用户输入判定为一份显式的校验结果。
//
// Validate 是纯函数：同样的输入和未变化的 Registry 总得到同样的 Result。
// Engine 在其上加一层一次性提示（本机 / 重复主机），提示不影响结果。
package validation

import (
	"strings"

	"github.com/ahrherrera/mysql-notifier/internal/matcher"
	"github.com/ahrherrera/mysql-notifier/internal/models"
	"github.com/ahrherrera/mysql-notifier/internal/notice"
)

type HostReason string

const (
	HostOK        HostReason = "none"
	LocalHost     HostReason = "local_host"
	DuplicateHost HostReason = "duplicate_host"
	HostBadSyntax HostReason = "bad_syntax"
)

type UserReason string

const (
	UserOK        UserReason = "none"
	UserBadSyntax UserReason = "bad_syntax"
)

// 本机的几种写法，比较时忽略大小写
var localHostTokens = []string{"localhost", "127.0.0.1", "."}

// Registry 已登记机器的只读视图
type Registry interface {
	HasHostNamed(name string) bool
}

type Input struct {
	Host string
	User string
	// 编辑模式下主机名未变不查重；改成另一台已登记机器的名字仍报 DuplicateHost
	// （host_key 唯一索引也不允许两条记录同名）
	EditMode    bool
	EditingHost string
}

type Result struct {
	HostValid  bool       `json:"host_valid"`
	HostReason HostReason `json:"host_reason"`
	UserValid  bool       `json:"user_valid"`
	UserReason UserReason `json:"user_reason"`
}


func Validate(in Input, reg Registry) Result {
	res := Result{HostReason: HostOK, UserReason: UserOK}
	res.HostValid, res.HostReason = checkHost(in, reg)
	res.UserValid, res.UserReason = checkUser(in.User)
	return res
}

func checkHost(in Input, reg Registry) (bool, HostReason) {
	if in.Host == "" {
		return false, HostOK
	}
	host := strings.TrimSpace(in.Host)
	if IsLocalHost(host) {
		return false, LocalHost
	}
	if reg != nil && needsDuplicateCheck(in, host) && reg.HasHostNamed(host) {
		return false, DuplicateHost
	}
	if !matcher.Any(host, matcher.Hostname, matcher.IPv4) {
		return false, HostBadSyntax
	}
	return true, HostOK
}

func needsDuplicateCheck(in Input, host string) bool {
	if !in.EditMode {
		return true
	}
	return models.HostKey(host) != models.HostKey(in.EditingHost)
}

func checkUser(user string) (bool, UserReason) {
	if user == "" {
		return false, UserOK
	}
	if !matcher.Any(user, matcher.DownLevelLogon, matcher.UPN) {
		return false, UserBadSyntax
	}
	return true, UserOK
}

func IsLocalHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	for _, tok := range localHostTokens {
		if h == tok {
			return true
		}
	}
	return false
}

// Fields 决定提交开关的三个原始输入
type Fields struct {
	Host     string
	User     string
	Password string
}

// CommitEnabled 每次都从当前输入与结果重新推导，不缓存
func CommitEnabled(f Fields, r Result) bool {
	return r.HostValid && r.UserValid && f.Host != "" && f.User != "" && f.Password != ""
}

// ============ Engine ============

type noticeKey struct {
	reason HostReason
	host   string
}

type Engine struct {
	reg      Registry
	notifier notice.Notifier
	// true 时每次校验都重复弹提示
	repeat bool
	last   noticeKey
}

func NewEngine(reg Registry, n notice.Notifier, repeat bool) *Engine {
	return &Engine{reg: reg, notifier: n, repeat: repeat}
}

func (e *Engine) Run(in Input) Result {
	res := Validate(in, e.reg)
	e.notify(in, res)
	return res
}

func (e *Engine) notify(in Input, res Result) {
	if res.HostReason != LocalHost && res.HostReason != DuplicateHost {
		e.last = noticeKey{}
		return
	}
	key := noticeKey{reason: res.HostReason, host: models.HostKey(in.Host)}
	if !e.repeat && key == e.last {
		return
	}
	e.last = key
	if e.notifier == nil {
		return
	}
	switch res.HostReason {
	case LocalHost:
		e.notifier.Notify(notice.Error, "Cannot add the local machine",
			"Only remote machines can be added here. Enter the name or IP address of a remote host.")
	case DuplicateHost:
		e.notifier.Notify(notice.Error, "Machine already registered",
			"A machine with host name \""+strings.TrimSpace(in.Host)+"\" is already in the list.")
	}
}
