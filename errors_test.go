package cloudsupport_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/canonical/cloudsupport"
	"github.com/stretchr/testify/suite"
)

type ErrorsSuite struct {
	suite.Suite
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrorsSuite))
}

func (s *ErrorsSuite) TestMessages() {
	cause := errors.New("cause")
	tests := []struct {
		err      error
		expected string
	}{
		{&cloudsupport.ComputeNodeNotDrainedError{Node: "node-1"}, "disable host `node-1` before stopping VMs"},
		{&cloudsupport.MissingParameterError{Name: "compute-node"}, "parameter compute-node is missing"},
		{&cloudsupport.MissingParameterError{Name: "i-really-mean-it", Confirmation: true}, "i-really-mean-it is a required parameter"},
		{&cloudsupport.TransientCloudError{Op: "stop", ID: "abc", Err: cause}, "stop abc: cause"},
		{&cloudsupport.TransientCloudError{Op: "list", Err: cause}, "list: cause"},
		{&cloudsupport.FatalDriverError{Op: "stop server", Err: cause}, "stop server: cause"},
		{&cloudsupport.ConfigError{Path: "/etc/openstack/clouds.yaml", Reason: "not found"}, "/etc/openstack/clouds.yaml not found"},
		{&cloudsupport.ConfigError{Reason: "unknown format", Err: cause}, "unknown format: cause"},
	}

	for _, test := range tests {
		s.Equal(test.expected, test.err.Error())
	}
}

func (s *ErrorsSuite) TestIsTransient() {
	cause := errors.New("cause")
	transient := &cloudsupport.TransientCloudError{Op: "stop", Err: cause}

	s.True(cloudsupport.IsTransient(transient))
	s.True(cloudsupport.IsTransient(fmt.Errorf("wrapped: %w", transient)))
	s.False(cloudsupport.IsTransient(cause))
	s.False(cloudsupport.IsTransient(&cloudsupport.FatalDriverError{Op: "stop", Err: cause}))
	s.False(cloudsupport.IsTransient(nil))
}

func (s *ErrorsSuite) TestUnwrap() {
	cause := errors.New("cause")
	s.True(errors.Is(&cloudsupport.TransientCloudError{Err: cause}, cause))
	s.True(errors.Is(&cloudsupport.FatalDriverError{Err: cause}, cause))
	s.True(errors.Is(&cloudsupport.ConfigError{Err: cause}, cause))
}
