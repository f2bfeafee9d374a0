// Package matcher 提供主机名 / 登录名的几种固定语法，全部是纯函数。
package matcher

import (
	"regexp"
	"strings"
)

type Matcher interface {
	Name() string
	Matches(text string) bool
}

var (
	ipv4Re      = regexp.MustCompile(`^(25[0-5]|2[0-4]\d|[01]?\d?\d)(\.(25[0-5]|2[0-4]\d|[01]?\d?\d)){3}$`)
	labelRe     = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)
	downLevelRe = regexp.MustCompile(`^(?:[^\\/:*?"<>|.]{1,15}\\)?([^\\@]{1,64})$`)
	upnRe       = regexp.MustCompile(`^([^\\@]{1,64})(?:@(.+))?$`)
)

const maxHostnameLen = 253

// ============ IPv4 ============
type ipv4 struct{}

func (ipv4) Name() string             { return "ipv4" }
func (ipv4) Matches(text string) bool { return ipv4Re.MatchString(text) }

// ============ DNS 主机名 ============
type hostname struct{}

func (hostname) Name() string { return "hostname" }

// Matches: 按 '.' 拆 label，每段 1~63，字母数字开头结尾，中间允许 '-'
func (hostname) Matches(text string) bool {
	if text == "" || len(text) > maxHostnameLen {
		return false
	}
	for _, label := range strings.Split(text, ".") {
		if !labelRe.MatchString(label) {
			return false
		}
	}
	return true
}

// ============ DOMAIN\user ============
type downLevel struct{}

func (downLevel) Name() string { return "downlevel" }
func (downLevel) Matches(text string) bool {
	m := downLevelRe.FindStringSubmatch(text)
	return m != nil && !onlyDotsOrSpaces(m[1])
}

// ============ user@domain ============
type upn struct{}

func (upn) Name() string { return "upn" }
func (upn) Matches(text string) bool {
	m := upnRe.FindStringSubmatch(text)
	if m == nil || onlyDotsOrSpaces(m[1]) {
		return false
	}
	// 没有 @ 后缀时只校验登录名部分
	if !strings.Contains(text, "@") {
		return true
	}
	return Hostname.Matches(m[2])
}

var (
	IPv4           Matcher = ipv4{}
	Hostname       Matcher = hostname{}
	DownLevelLogon Matcher = downLevel{}
	UPN            Matcher = upn{}
)

// All 按固定顺序返回全部语法
func All() []Matcher { return []Matcher{IPv4, Hostname, DownLevelLogon, UPN} }

// Any 任一语法命中即为 true
func Any(text string, ms ...Matcher) bool {
	for _, m := range ms {
		if m.Matches(text) {
			return true
		}
	}
	return false
}

func onlyDotsOrSpaces(s string) bool {
	return strings.Trim(s, ". ") == ""
}
