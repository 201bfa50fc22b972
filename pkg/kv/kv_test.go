package kv_test

import (
	"testing"

	"github.com/canonical/cloudsupport/pkg/kv"
	"github.com/stretchr/testify/suite"
)

type KVSuite struct {
	suite.Suite
}

func TestKV(t *testing.T) {
	suite.Run(t, new(KVSuite))
}

func (s *KVSuite) TestNewUnknownScheme() {
	_, err := kv.New("etcd://127.0.0.1:2379")
	s.Error(err)

	_, err = kv.New("://bad")
	s.Error(err)
}

func (s *KVSuite) TestRegister() {
	called := ""
	kv.Register("kvtest-register", func(addr string) (kv.KV, error) {
		called = addr
		return nil, nil
	})
	_, err := kv.New("kvtest-register:///tmp/x")
	s.NoError(err)
	s.Equal("kvtest-register:///tmp/x", called)

	s.Panics(func() {
		kv.Register("kvtest-register", nil)
	})
}

func (s *KVSuite) TestPath() {
	tests := []struct {
		addr     string
		expected string
	}{
		{"file:///var/lib/state.yaml", "/var/lib/state.yaml"},
		{"file://state.yaml", "state.yaml"},
		{"file://rel/state.yaml", "rel/state.yaml"},
		{"badger://", ""},
	}

	for _, test := range tests {
		path, err := kv.Path(test.addr)
		s.NoError(err, test.addr)
		s.Equal(test.expected, path, test.addr)
	}
}
