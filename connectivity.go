package cloudsupport

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Network namespace prefixes the test network is reachable from
const (
	OVSNamespace = "qdhcp"
	OVNNamespace = "ovnmeta"
)

type (
	// Executor runs a shell command on a remote host. A command that runs
	// but exits non-zero is not an error; its output is returned.
	Executor interface {
		Run(host, cmd string) (stdout, stderr string, err error)
	}

	// Access describes how to reach a test instance from inside the cloud
	Access struct {
		ServerID  string `json:"server_id"`
		Address   string `json:"address"`
		Host      string `json:"host"`
		Namespace string `json:"namespace"`
	}

	// ConnectivityResult holds the output of the connectivity probes for an
	// instance
	ConnectivityResult struct {
		Ping string `json:"ping"`
		SSH  string `json:"ssh"`
	}
)

// InstanceAccess finds the host and network namespace from which the test
// instance's address on the test network can be reached. With OVN that is the
// instance's own hypervisor, otherwise the DHCP agent host of the network.
func (c *Context) InstanceAccess(id string) (*Access, error) {
	p, err := c.provisioner()
	if err != nil {
		return nil, err
	}

	srv, err := p.GetServer(id)
	if err != nil {
		return nil, err
	}
	net, err := p.FindNetwork(TestNetwork)
	if err != nil {
		return nil, err
	}
	if net == nil {
		return nil, fmt.Errorf("net not found: %s", TestNetwork)
	}
	addr := srv.Address(TestNetwork)
	if addr == "" {
		return nil, fmt.Errorf("server %s has no address on %s", id, TestNetwork)
	}

	ovn, err := p.HostRunsAgent(srv.HypervisorHostname, "ovn-controller")
	if err != nil {
		return nil, err
	}

	a := &Access{
		ServerID: id,
		Address:  addr,
	}
	if ovn {
		a.Host = srv.HypervisorHostname
		a.Namespace = OVNNamespace + "-" + net.ID
	} else {
		host, err := p.DHCPAgentHost(net.ID)
		if err != nil {
			return nil, err
		}
		if host == "" {
			return nil, fmt.Errorf("no DHCP agent hosts network %s", net.ID)
		}
		a.Host = host
		a.Namespace = OVSNamespace + "-" + net.ID
	}
	return a, nil
}

// PingCommand returns the command that pings the instance
func (a *Access) PingCommand() string {
	return fmt.Sprintf("sudo ip netns exec %s ping -c3 -q %s", a.Namespace, a.Address)
}

// SSHProbeCommand returns the command that checks the instance's ssh port
func (a *Access) SSHProbeCommand() string {
	return fmt.Sprintf("sudo ip netns exec %s nc -vzw 3 %s 22", a.Namespace, a.Address)
}

// SSHCommand returns an ssh command line that reaches the instance through
// its access host
func (a *Access) SSHCommand() string {
	return fmt.Sprintf(`ssh ubuntu@%s -o ProxyCommand="juju ssh %s sudo ip netns exec %s nc %%h %%p"`,
		a.Address, a.Host, a.Namespace)
}

// TestConnectivity pings and probes tcp:22 of the given instance, or of every
// test instance, from the host serving the test network
func (c *Context) TestConnectivity(exec Executor, instance string) (map[string]*ConnectivityResult, error) {
	ids, err := c.TestInstances(instance)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*ConnectivityResult, len(ids))
	for _, id := range ids {
		a, err := c.InstanceAccess(id)
		if err != nil {
			return results, err
		}
		log.WithFields(log.Fields{
			"id":   id,
			"host": a.Host,
		}).Debug("testing connectivity")

		pingOut, pingErr, err := exec.Run(a.Host, a.PingCommand())
		if err != nil {
			return results, err
		}
		sshOut, sshErr, err := exec.Run(a.Host, a.SSHProbeCommand())
		if err != nil {
			return results, err
		}
		results[id] = &ConnectivityResult{
			Ping: pingOut + "\n" + pingErr,
			SSH:  sshOut + "\n" + sshErr,
		}
	}
	return results, nil
}

// SSHCommands returns an ssh command line for the given instance, or for
// every test instance
func (c *Context) SSHCommands(instance string) (map[string]string, error) {
	ids, err := c.TestInstances(instance)
	if err != nil {
		return nil, err
	}

	results := make(map[string]string, len(ids))
	for _, id := range ids {
		a, err := c.InstanceAccess(id)
		if err != nil {
			return results, err
		}
		results[id] = "\n" + a.SSHCommand()
	}
	return results, nil
}
