package cloudsupport

import (
	log "github.com/sirupsen/logrus"
)

// TestSecurityGroup is the security group attached to test instances
const TestSecurityGroup = "cloudsupport-test-secgroup"

// DefaultTestPorts are the tcp ports opened by the test security group
var DefaultTestPorts = []int{22, 80}

// EnsureSecurityGroup returns the named security group, creating it with
// ingress rules for icmp and the given tcp ports when it does not exist
func (c *Context) EnsureSecurityGroup(name string, tcpPorts []int) (*SecurityGroup, error) {
	p, err := c.provisioner()
	if err != nil {
		return nil, err
	}

	sg, err := p.FindSecurityGroup(name)
	if err != nil {
		return nil, err
	}
	if sg != nil {
		log.WithField("secgroup", name).Info("secgroup already exists")
		return sg, nil
	}

	if tcpPorts == nil {
		tcpPorts = DefaultTestPorts
	}
	sg, err = p.CreateSecurityGroup(name, tcpPorts)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"secgroup": name,
		"id":       sg.ID,
	}).Debug("secgroup created")
	return sg, nil
}
