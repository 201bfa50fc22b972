package cloudsupport_test

import (
	"errors"
	"testing"

	"github.com/canonical/cloudsupport"
	"github.com/canonical/cloudsupport/internal/tests/common"
	"github.com/stretchr/testify/suite"
)

type HypervisorSuite struct {
	common.Suite
}

func TestHypervisor(t *testing.T) {
	suite.Run(t, new(HypervisorSuite))
}

func (s *HypervisorSuite) TestCheckComputeNode() {
	s.Driver.AddHypervisor("node-0", cloudsupport.HypervisorEnabled)
	s.Driver.AddHypervisor("node-1", cloudsupport.HypervisorDisabled)

	tests := []struct {
		description string
		node        string
		status      string
		expected    bool
	}{
		{"enabled node wanted enabled", "node-0", cloudsupport.HypervisorEnabled, true},
		{"enabled node wanted disabled", "node-0", cloudsupport.HypervisorDisabled, false},
		{"disabled node wanted disabled", "node-1", cloudsupport.HypervisorDisabled, true},
		{"missing node", "node-2", cloudsupport.HypervisorDisabled, false},
	}

	for _, test := range tests {
		msg := common.TestMsgFunc(test.description)
		ok, err := s.Context.CheckComputeNode(test.node, test.status)
		s.NoError(err, msg("should not error"))
		s.Equal(test.expected, ok, msg("should match expected"))
	}
}

func (s *HypervisorSuite) TestCheckComputeNodeError() {
	s.Driver.FailOn("hypervisors", "", errors.New("boom"))
	ok, err := s.Context.CheckComputeNode("node-0", cloudsupport.HypervisorDisabled)
	s.Error(err)
	s.False(ok)
}

func (s *HypervisorSuite) TestFind() {
	hs := cloudsupport.Hypervisors{
		{Name: "a", Status: cloudsupport.HypervisorEnabled},
		{Name: "b", Status: cloudsupport.HypervisorDisabled},
	}
	s.Equal(hs[1], hs.Find("b"))
	s.Nil(hs.Find("c"))
}
