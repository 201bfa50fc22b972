// Package sshexec runs commands on remote hosts over ssh with key
// authentication.
package sshexec

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/canonical/cloudsupport/pkg/hostport"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Defaults for Config
const (
	DefaultUser    = "ubuntu"
	DefaultPort    = "22"
	DefaultTimeout = 10 * time.Second
)

type (
	// Config configures an Executor. Hosts are verified against
	// KnownHostsFile when it is set.
	Config struct {
		User           string
		KeyFile        string
		KnownHostsFile string
		Port           string
		Timeout        time.Duration
	}

	// Executor runs one command per ssh connection
	Executor struct {
		port   string
		config *ssh.ClientConfig
	}
)

// New creates an Executor, loading the private key from cfg.KeyFile
func New(cfg Config) (*Executor, error) {
	key, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("invalid private key %s: %w", cfg.KeyFile, err)
	}
	return NewWithSigner(cfg, signer)
}

// NewWithSigner creates an Executor authenticating with signer
func NewWithSigner(cfg Config, signer ssh.Signer) (*Executor, error) {
	if cfg.User == "" {
		cfg.User = DefaultUser
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsFile != "" {
		var err error
		hostKeys, err = knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, err
		}
	}

	return &Executor{
		port: cfg.Port,
		config: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeys,
			Timeout:         cfg.Timeout,
		},
	}, nil
}

// Run executes cmd on host. A non-zero exit status is reported through the
// returned output, not as an error.
func (e *Executor) Run(host, cmd string) (string, string, error) {
	addr, err := hostport.WithDefaultPort(host, e.port)
	if err != nil {
		return "", "", err
	}

	client, err := ssh.Dial("tcp", addr, e.config)
	if err != nil {
		return "", "", fmt.Errorf("dial %s: %w", addr, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.WithFields(log.Fields{
				"addr":  addr,
				"error": err,
			}).Debug("failed to close ssh connection")
		}
	}()

	session, err := client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("new session: %w", err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	log.WithFields(log.Fields{
		"addr": addr,
		"cmd":  cmd,
	}).Debug("running remote command")

	if err := session.Run(cmd); err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), err
		}
		log.WithFields(log.Fields{
			"addr":   addr,
			"status": exitErr.ExitStatus(),
		}).Debug("remote command exited non-zero")
	}
	return stdout.String(), stderr.String(), nil
}
