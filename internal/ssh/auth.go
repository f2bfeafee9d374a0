package ssh

import (
	"os"

	"github.com/juju/errors"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/ahrherrera/mysql-notifier/internal/workflow"
)

// authMethods 密码 + keyboard-interactive（部分 Windows OpenSSH 只开后者）
func authMethods(t workflow.Target) []gossh.AuthMethod {
	pass := t.Password
	return []gossh.AuthMethod{
		gossh.Password(pass),
		gossh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = pass
			}
			return answers, nil
		}),
	}
}

// KnownHostsCallback 从 known_hosts 文件校验主机公钥
func KnownHostsCallback(path string) (gossh.HostKeyCallback, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Annotatef(err, "known_hosts %s", path)
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, errors.Annotatef(err, "parse known_hosts %s", path)
	}
	return cb, nil
}
