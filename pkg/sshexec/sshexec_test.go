package sshexec_test

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/canonical/cloudsupport/pkg/sshexec"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type SSHExecSuite struct {
	suite.Suite
	Listener  net.Listener
	HostKey   ssh.Signer
	ClientKey ed25519.PrivateKey
	Signer    ssh.Signer
	Dir       string
}

func TestSSHExec(t *testing.T) {
	suite.Run(t, new(SSHExecSuite))
}

func (s *SSHExecSuite) SetupTest() {
	s.Dir = s.T().TempDir()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	s.HostKey, err = ssh.NewSignerFromKey(hostPriv)
	s.Require().NoError(err)

	_, s.ClientKey, err = ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	s.Signer, err = ssh.NewSignerFromKey(s.ClientKey)
	s.Require().NoError(err)

	authorized := s.Signer.PublicKey().Marshal()
	config := &ssh.ServerConfig{
		PublicKeyCallback: func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if meta.User() == "ubuntu" && bytes.Equal(key.Marshal(), authorized) {
				return nil, nil
			}
			return nil, os.ErrPermission
		},
	}
	config.AddHostKey(s.HostKey)

	s.Listener, err = net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	go serve(s.Listener, config)
}

func (s *SSHExecSuite) TearDownTest() {
	_ = s.Listener.Close()
}

func (s *SSHExecSuite) TestRun() {
	e, err := sshexec.NewWithSigner(sshexec.Config{}, s.Signer)
	s.Require().NoError(err)

	stdout, stderr, err := e.Run(s.Listener.Addr().String(), "echo ok")
	s.Require().NoError(err)
	s.Equal("ok\n", stdout)
	s.Empty(stderr)
}

func (s *SSHExecSuite) TestRunNonZeroExit() {
	e, err := sshexec.NewWithSigner(sshexec.Config{}, s.Signer)
	s.Require().NoError(err)

	stdout, stderr, err := e.Run(s.Listener.Addr().String(), "fail")
	s.Require().NoError(err)
	s.Empty(stdout)
	s.Equal("boom\n", stderr)
}

func (s *SSHExecSuite) TestRunWrongUser() {
	e, err := sshexec.NewWithSigner(sshexec.Config{User: "root"}, s.Signer)
	s.Require().NoError(err)

	_, _, err = e.Run(s.Listener.Addr().String(), "echo ok")
	s.Error(err)
}

func (s *SSHExecSuite) TestRunBadHost() {
	e, err := sshexec.NewWithSigner(sshexec.Config{}, s.Signer)
	s.Require().NoError(err)

	_, _, err = e.Run("[127.0.0.1", "echo ok")
	s.Error(err)
}

func (s *SSHExecSuite) TestNewFromKeyFile() {
	block, err := ssh.MarshalPrivateKey(s.ClientKey, "")
	s.Require().NoError(err)
	keyFile := filepath.Join(s.Dir, "id_rsa_cloudsupport")
	s.Require().NoError(os.WriteFile(keyFile, pem.EncodeToMemory(block), 0600))

	e, err := sshexec.New(sshexec.Config{KeyFile: keyFile})
	s.Require().NoError(err)
	stdout, _, err := e.Run(s.Listener.Addr().String(), "echo ok")
	s.Require().NoError(err)
	s.Equal("ok\n", stdout)

	_, err = sshexec.New(sshexec.Config{KeyFile: filepath.Join(s.Dir, "missing")})
	s.Error(err)

	garbage := filepath.Join(s.Dir, "garbage")
	s.Require().NoError(os.WriteFile(garbage, []byte("not a key"), 0600))
	_, err = sshexec.New(sshexec.Config{KeyFile: garbage})
	s.Error(err)
}

func (s *SSHExecSuite) TestKnownHosts() {
	addr := s.Listener.Addr().String()

	known := filepath.Join(s.Dir, "known_hosts")
	line := knownhosts.Line([]string{addr}, s.HostKey.PublicKey())
	s.Require().NoError(os.WriteFile(known, []byte(line+"\n"), 0600))

	e, err := sshexec.NewWithSigner(sshexec.Config{KnownHostsFile: known}, s.Signer)
	s.Require().NoError(err)
	_, _, err = e.Run(addr, "echo ok")
	s.NoError(err)

	other, err := ssh.NewSignerFromKey(s.ClientKey)
	s.Require().NoError(err)
	line = knownhosts.Line([]string{addr}, other.PublicKey())
	s.Require().NoError(os.WriteFile(known, []byte(line+"\n"), 0600))

	e, err = sshexec.NewWithSigner(sshexec.Config{KnownHostsFile: known}, s.Signer)
	s.Require().NoError(err)
	_, _, err = e.Run(addr, "echo ok")
	s.Error(err)
}

// serve accepts ssh connections and answers exec requests. "echo ok" prints
// to stdout, anything else prints to stderr and exits 1.
func serve(l net.Listener, config *ssh.ServerConfig) {
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		go handle(conn, config)
	}
}

func handle(conn net.Conn, config *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		_ = conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			return
		}
		go func() {
			for req := range requests {
				if req.Type != "exec" {
					_ = req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
					_ = req.Reply(false, nil)
					continue
				}
				_ = req.Reply(true, nil)

				var status uint32
				if payload.Command == "echo ok" {
					_, _ = ch.Write([]byte("ok\n"))
				} else {
					_, _ = ch.Stderr().Write([]byte("boom\n"))
					status = 1
				}
				_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
				_ = ch.Close()
			}
		}()
	}
}
