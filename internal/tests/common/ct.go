// Package common contains common utilities and suites to be used in other tests
package common

import (
	"fmt"
	"time"

	"github.com/canonical/cloudsupport"
	"github.com/pborman/uuid"
	"github.com/stretchr/testify/suite"
)

// Suite sets up a general test suite with a fresh stub cloud per test.
type Suite struct {
	suite.Suite
	Driver  *cloudsupport.StubDriver
	Context *cloudsupport.Context
}

// SetupTest prepares a new stub driver and context.
func (s *Suite) SetupTest() {
	s.Driver = cloudsupport.NewStubDriver(0)
	s.Context = cloudsupport.NewContext(s.Driver, nil)
}

// NewHypervisor registers a new hypervisor with the given status.
func (s *Suite) NewHypervisor(status string) *cloudsupport.Hypervisor {
	return s.Driver.AddHypervisor("node-"+uuid.New()[:8], status)
}

// NewServer registers a new server on a host with the given status.
func (s *Suite) NewServer(host, status string) *cloudsupport.Server {
	return s.Driver.AddServer(&cloudsupport.Server{
		Name:               "vm-" + uuid.New()[:8],
		Status:             status,
		Host:               host,
		HypervisorHostname: host,
		UpdatedAt:          time.Now().UTC().Format(cloudsupport.UpdatedLayout),
	})
}

// NewAgedServer registers a new server with the given name that was last
// updated the given number of days before now.
func (s *Suite) NewAgedServer(name string, days int, now time.Time) *cloudsupport.Server {
	return s.Driver.AddServer(&cloudsupport.Server{
		Name:      name,
		Status:    cloudsupport.ServerActive,
		Host:      "node-1",
		UpdatedAt: now.Add(-time.Duration(days) * 24 * time.Hour).Format(cloudsupport.UpdatedLayout),
	})
}

// NewServers registers count servers on a host with the given status.
func (s *Suite) NewServers(host, status string, count int) cloudsupport.Servers {
	servers := make(cloudsupport.Servers, count)
	for i := range servers {
		servers[i] = s.NewServer(host, status)
	}
	return servers
}

// TestMsgFunc returns a function that prefixes assertion messages with a
// table test description.
func TestMsgFunc(prefix string) func(...interface{}) string {
	return func(val ...interface{}) string {
		if len(val) == 0 {
			return prefix
		}
		msgPrefix := prefix + " : "
		if len(val) == 1 {
			return msgPrefix + fmt.Sprint(val[0])
		}
		return msgPrefix + fmt.Sprintf(fmt.Sprint(val[0]), val[1:]...)
	}
}
