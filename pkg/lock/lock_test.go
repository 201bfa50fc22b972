package lock_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/canonical/cloudsupport/internal/tests/common"
	"github.com/canonical/cloudsupport/pkg/lock"
	"github.com/stretchr/testify/suite"
)

type LockTestSuite struct {
	suite.Suite
	Dir string
}

func TestLockTestSuite(t *testing.T) {
	suite.Run(t, new(LockTestSuite))
}

func (s *LockTestSuite) SetupTest() {
	s.Dir = s.T().TempDir()
	lock.RetryDelay = 10 * time.Millisecond
}

func (s *LockTestSuite) TestAcquire() {
	path := filepath.Join(s.Dir, "state.yaml.lock")
	held, err := lock.Acquire(context.Background(), path, false)
	s.Require().NoError(err)
	defer func() { _ = held.Release() }()

	expired, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	tests := []struct {
		description string
		ctx         context.Context
		path        string
		blocking    bool
		expectedErr bool
	}{
		{"path missing", context.Background(), "", false, true},
		{"free lock", context.Background(), filepath.Join(s.Dir, "other.lock"), false, false},
		{"nested directory", context.Background(), filepath.Join(s.Dir, "a", "b", "c.lock"), false, false},
		{"lock already held, nonblocking", context.Background(), path, false, true},
		{"lock already held, blocking until timeout", expired, path, true, true},
	}

	for _, test := range tests {
		msg := common.TestMsgFunc(test.description)
		l, err := lock.Acquire(test.ctx, test.path, test.blocking)
		if test.expectedErr {
			s.Error(err, msg("should fail"))
			s.Nil(l, msg("should not return lock"))
		} else {
			s.NoError(err, msg("should acquire lock"))
			s.NotNil(l, msg("should return lock"))
			s.Equal(test.path, l.Path(), msg("path"))
			s.NoError(l.Release(), msg("release"))
		}
	}

	_, err = lock.Acquire(context.Background(), path, false)
	s.Equal(lock.ErrLocked, err)
}

func (s *LockTestSuite) TestBlockingAcquire() {
	path := filepath.Join(s.Dir, "state.yaml.lock")
	held, err := lock.Acquire(context.Background(), path, false)
	s.Require().NoError(err)

	acquired := make(chan error, 1)
	go func() {
		l, err := lock.Acquire(context.Background(), path, true)
		if err == nil {
			err = l.Release()
		}
		acquired <- err
	}()

	select {
	case <-acquired:
		s.Fail("acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}

	s.NoError(held.Release())
	select {
	case err := <-acquired:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("lock not acquired after release")
	}
}

func (s *LockTestSuite) TestRelease() {
	l, err := lock.Acquire(context.Background(), filepath.Join(s.Dir, "state.yaml.lock"), false)
	s.Require().NoError(err)

	s.NoError(l.Release(), "held lock should succeed")
	s.Equal(lock.ErrLockNotHeld, l.Release(), "not held lock should fail")
}

func (s *LockTestSuite) TestForState() {
	s.Equal("/var/lib/cloudsupport/state.yaml.lock", lock.ForState("/var/lib/cloudsupport/state.yaml"))
	s.Equal("/var/lib/cloudsupport/badger.lock", lock.ForState("/var/lib/cloudsupport/badger/"))
}
