package testhelper

import (
	"fmt"
	"time"

	"github.com/canonical/cloudsupport"
)

// NewServers registers count servers with the given host and status on the
// stub driver
func NewServers(d *cloudsupport.StubDriver, host, status string, count int) cloudsupport.Servers {
	servers := make(cloudsupport.Servers, count)
	for i := range servers {
		servers[i] = d.AddServer(&cloudsupport.Server{
			Name:               fmt.Sprintf("%s-vm-%d", host, i),
			Status:             status,
			Host:               host,
			HypervisorHostname: host,
			UpdatedAt:          time.Now().UTC().Format(cloudsupport.UpdatedLayout),
		})
	}
	return servers
}

// NewComputeNode registers a hypervisor with the given status along with
// active and shutoff servers running on it
func NewComputeNode(d *cloudsupport.StubDriver, name, status string, active, shutoff int) (cloudsupport.Servers, cloudsupport.Servers) {
	d.AddHypervisor(name, status)
	return NewServers(d, name, cloudsupport.ServerActive, active),
		NewServers(d, name, cloudsupport.ServerShutoff, shutoff)
}

// NewAgedServer registers a server with the given name whose last update was
// age ago
func NewAgedServer(d *cloudsupport.StubDriver, name string, age time.Duration) *cloudsupport.Server {
	return d.AddServer(&cloudsupport.Server{
		Name:      name,
		Status:    cloudsupport.ServerActive,
		Host:      "node-1",
		UpdatedAt: time.Now().UTC().Add(-age).Format(cloudsupport.UpdatedLayout),
	})
}

// NewTestCloud registers enabled hypervisors for nodes and the named image,
// which is enough to boot test instances on the stub driver
func NewTestCloud(d *cloudsupport.StubDriver, image string, nodes ...string) {
	for _, n := range nodes {
		d.AddHypervisor(n, cloudsupport.HypervisorEnabled)
	}
	d.AddImage(image)
}
