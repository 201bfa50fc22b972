package badger_test

import (
	"testing"

	"github.com/canonical/cloudsupport/pkg/kv"
	_ "github.com/canonical/cloudsupport/pkg/kv/badger"
	"github.com/canonical/cloudsupport/pkg/kv/kvtest"
	"github.com/stretchr/testify/suite"
)

type BadgerSuite struct {
	kvtest.Suite
}

func TestBadger(t *testing.T) {
	suite.Run(t, new(BadgerSuite))
}

func (s *BadgerSuite) SetupTest() {
	s.New = func() (kv.KV, error) {
		return kv.New("badger://")
	}
	s.Suite.SetupTest()
}

type BadgerDiskSuite struct {
	kvtest.Suite
}

func TestBadgerDisk(t *testing.T) {
	suite.Run(t, new(BadgerDiskSuite))
}

func (s *BadgerDiskSuite) SetupTest() {
	dir := s.T().TempDir()
	s.New = func() (kv.KV, error) {
		return kv.New("badger://" + dir)
	}
	s.Suite.SetupTest()
}
