package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/canonical/cloudsupport/pkg/kv"
	"github.com/canonical/cloudsupport/pkg/kv/file"
	"github.com/canonical/cloudsupport/pkg/kv/kvtest"
	"github.com/stretchr/testify/suite"
)

type FileSuite struct {
	kvtest.Suite
	Dir string
}

func TestFile(t *testing.T) {
	suite.Run(t, new(FileSuite))
}

func (s *FileSuite) SetupTest() {
	s.Dir = s.T().TempDir()
	s.New = func() (kv.KV, error) {
		return kv.New("file://" + filepath.Join(s.Dir, "state.yaml"))
	}
	s.Suite.SetupTest()
}

func (s *FileSuite) TestPersists() {
	s.Require().NoError(s.KV.Set("stopped-vms/node-1", `["a"]`))

	reopened, err := file.New("file://" + filepath.Join(s.Dir, "state.yaml"))
	s.Require().NoError(err)
	v, err := reopened.Get("stopped-vms/node-1")
	s.NoError(err)
	s.Equal(`["a"]`, string(v.Data))

	info, err := os.Stat(filepath.Join(s.Dir, "state.yaml"))
	s.Require().NoError(err)
	s.Equal(os.FileMode(0600), info.Mode().Perm())
}

func (s *FileSuite) TestBadDocument() {
	path := filepath.Join(s.Dir, "bad.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("- not\n- a map\n"), 0600))
	_, err := file.New("file://" + path)
	s.Error(err)

	_, err = file.New("file://")
	s.Error(err)
}
