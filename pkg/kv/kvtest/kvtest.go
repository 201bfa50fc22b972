// Package kvtest contains a test suite every kv backend is expected to pass
package kvtest

import (
	"github.com/canonical/cloudsupport/pkg/kv"
	"github.com/stretchr/testify/suite"
)

// Suite exercises a kv backend. Embedding suites set New.
type Suite struct {
	suite.Suite
	New func() (kv.KV, error)
	KV  kv.KV
}

// SetupTest opens a fresh store.
func (s *Suite) SetupTest() {
	var err error
	s.KV, err = s.New()
	s.Require().NoError(err)
}

// TearDownTest closes the store.
func (s *Suite) TearDownTest() {
	s.NoError(s.KV.Close())
}

func (s *Suite) TestSetGet() {
	s.Require().NoError(s.KV.Set("stopped-vms/node-1", `["a","b"]`))
	v, err := s.KV.Get("stopped-vms/node-1")
	s.NoError(err)
	s.Equal(`["a","b"]`, string(v.Data))

	s.Require().NoError(s.KV.Set("stopped-vms/node-1", `[]`))
	v, err = s.KV.Get("stopped-vms/node-1")
	s.NoError(err)
	s.Equal(`[]`, string(v.Data))
}

func (s *Suite) TestGetMissing() {
	_, err := s.KV.Get("missing")
	s.Error(err)
	s.True(s.KV.IsKeyNotFound(err))
}

func (s *Suite) TestDelete() {
	s.Require().NoError(s.KV.Set("a", "1"))
	s.NoError(s.KV.Delete("a", false))
	_, err := s.KV.Get("a")
	s.True(s.KV.IsKeyNotFound(err))

	err = s.KV.Delete("a", false)
	s.True(s.KV.IsKeyNotFound(err))
}

func (s *Suite) TestDeleteRecurse() {
	s.Require().NoError(s.KV.Set("dir/a", "1"))
	s.Require().NoError(s.KV.Set("dir/b", "2"))
	s.Require().NoError(s.KV.Set("dirty", "3"))

	s.NoError(s.KV.Delete("dir", true))
	keys, err := s.KV.Keys("")
	s.NoError(err)
	s.Equal([]string{"dirty"}, keys)
}

func (s *Suite) TestKeys() {
	s.Require().NoError(s.KV.Set("stopped-vms/node-2", "[]"))
	s.Require().NoError(s.KV.Set("stopped-vms/node-1", "[]"))
	s.Require().NoError(s.KV.Set("other", "x"))

	keys, err := s.KV.Keys("stopped-vms/")
	s.NoError(err)
	s.Equal([]string{"stopped-vms/node-1", "stopped-vms/node-2"}, keys)

	keys, err = s.KV.Keys("nothing/")
	s.NoError(err)
	s.Empty(keys)
}
