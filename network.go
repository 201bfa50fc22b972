package cloudsupport

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Test network defaults
const (
	TestNetwork = "cloudsupport-test-net"
	TestCIDR    = "192.168.99.0/24"
)

// EnsureNetwork makes sure a network with the given name and CIDR exists. A
// network with the same name but a different CIDR is deleted and recreated.
func (c *Context) EnsureNetwork(name, cidr string) (*Network, error) {
	p, err := c.provisioner()
	if err != nil {
		return nil, err
	}

	n, err := p.FindNetwork(name)
	if err != nil {
		return nil, err
	}
	if n != nil {
		if n.CIDR == cidr {
			log.WithFields(log.Fields{
				"network": name,
				"cidr":    cidr,
			}).Info("network already present")
			return n, nil
		}
		log.WithFields(log.Fields{
			"network": name,
			"cidr":    n.CIDR,
			"want":    cidr,
		}).Info("network cidr changed, deleting")
		if err := p.DeleteNetwork(n.ID); err != nil {
			return nil, fmt.Errorf("fault deleting net %s: %v", n.ID, err)
		}
	}

	n, err = p.CreateNetwork(name, cidr)
	if err != nil {
		return nil, fmt.Errorf("fault creating net or subnet %s: %v", name, err)
	}
	log.WithFields(log.Fields{
		"network": name,
		"cidr":    cidr,
	}).Info("created network")
	return n, nil
}

// CreatePort creates a port on the named network. A non-empty physnet makes
// it an SR-IOV port bound to that physical network.
func (c *Context) CreatePort(network, physnet string) (string, error) {
	p, err := c.provisioner()
	if err != nil {
		return "", err
	}

	n, err := p.FindNetwork(network)
	if err != nil {
		return "", err
	}
	if n == nil {
		return "", fmt.Errorf("net not found: %s", network)
	}

	id, err := p.CreatePort(PortSpec{
		NetworkID:       n.ID,
		Name:            network,
		PhysicalNetwork: physnet,
	})
	if err != nil {
		return "", err
	}
	log.WithFields(log.Fields{
		"network": network,
		"physnet": physnet,
		"port":    id,
	}).Debug("port created")
	return id, nil
}
