package openstack

import (
	"strconv"
	"time"

	"github.com/canonical/cloudsupport"
	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/aggregates"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/keypairs"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/secgroups"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/openstack/imageservice/v2/images"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/agents"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/portsbinding"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/security/groups"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/security/rules"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/ports"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/subnets"
	log "github.com/sirupsen/logrus"
)

// dhcpAgentType is the agent_type of neutron DHCP agents
const dhcpAgentType = "DHCP agent"

// FindNetwork returns the first network with the given name
func (d *Driver) FindNetwork(name string) (*cloudsupport.Network, error) {
	pages, err := networks.List(d.network, networks.ListOpts{Name: name}).AllPages()
	if err != nil {
		return nil, classify("find network", name, err)
	}
	list, err := networks.ExtractNetworks(pages)
	if err != nil {
		return nil, &cloudsupport.FatalDriverError{Op: "find network", Err: err}
	}
	if len(list) == 0 {
		return nil, nil
	}

	n := &cloudsupport.Network{ID: list[0].ID, Name: list[0].Name}
	if len(list[0].Subnets) > 0 {
		subnet, err := subnets.Get(d.network, list[0].Subnets[0]).Extract()
		if err != nil {
			return nil, classify("get subnet", list[0].Subnets[0], err)
		}
		n.CIDR = subnet.CIDR
	}
	return n, nil
}

// CreateNetwork creates a network with one IPv4 subnet
func (d *Driver) CreateNetwork(name, cidr string) (*cloudsupport.Network, error) {
	network, err := networks.Create(d.network, networks.CreateOpts{Name: name}).Extract()
	if err != nil {
		return nil, classify("create network", name, err)
	}

	opts := subnets.CreateOpts{
		NetworkID: network.ID,
		Name:      name,
		CIDR:      cidr,
		IPVersion: gophercloud.IPv4,
	}
	if _, err := subnets.Create(d.network, opts).Extract(); err != nil {
		return nil, classify("create subnet", name, err)
	}

	log.WithFields(log.Fields{
		"network": network.ID,
		"name":    name,
		"cidr":    cidr,
	}).Info("created network")
	return &cloudsupport.Network{ID: network.ID, Name: name, CIDR: cidr}, nil
}

// DeleteNetwork deletes a network and its subnets
func (d *Driver) DeleteNetwork(id string) error {
	if err := networks.Delete(d.network, id).ExtractErr(); err != nil {
		return classify("delete network", id, err)
	}
	return nil
}

// CreatePort creates a port on a network. A physical network makes it a
// direct (SR-IOV) port bound to that physnet.
func (d *Driver) CreatePort(spec cloudsupport.PortSpec) (string, error) {
	var opts ports.CreateOptsBuilder = ports.CreateOpts{
		NetworkID: spec.NetworkID,
		Name:      spec.Name,
	}
	if spec.PhysicalNetwork != "" {
		opts = portsbinding.CreateOptsExt{
			CreateOptsBuilder: opts,
			VNICType:          "direct",
			Profile: map[string]interface{}{
				"physical_network": spec.PhysicalNetwork,
			},
		}
	}

	port, err := ports.Create(d.network, opts).Extract()
	if err != nil {
		return "", classify("create port", spec.NetworkID, err)
	}
	return port.ID, nil
}

// FindFlavor returns the flavor with the given name, public or private
func (d *Driver) FindFlavor(name string) (*cloudsupport.Flavor, error) {
	pages, err := flavors.ListDetail(d.compute, flavors.ListOpts{AccessType: flavors.AllAccess}).AllPages()
	if err != nil {
		return nil, classify("find flavor", name, err)
	}
	list, err := flavors.ExtractFlavors(pages)
	if err != nil {
		return nil, &cloudsupport.FatalDriverError{Op: "find flavor", Err: err}
	}

	for _, f := range list {
		if f.Name == name {
			return &cloudsupport.Flavor{
				ID:    f.ID,
				Name:  f.Name,
				VCPUs: f.VCPUs,
				RAM:   f.RAM,
				Disk:  f.Disk,
			}, nil
		}
	}
	return nil, nil
}

// CreateFlavor creates a flavor and sets its extra specs
func (d *Driver) CreateFlavor(f *cloudsupport.Flavor) (*cloudsupport.Flavor, error) {
	disk := f.Disk
	opts := flavors.CreateOpts{
		Name:  f.Name,
		VCPUs: f.VCPUs,
		RAM:   f.RAM,
		Disk:  &disk,
	}
	created, err := flavors.Create(d.compute, opts).Extract()
	if err != nil {
		return nil, classify("create flavor", f.Name, err)
	}

	if len(f.ExtraSpecs) > 0 {
		specs := flavors.ExtraSpecsOpts{}
		for k, v := range f.ExtraSpecs {
			specs[k] = v
		}
		if _, err := flavors.CreateExtraSpecs(d.compute, created.ID, specs).Extract(); err != nil {
			return nil, classify("set flavor extra specs", created.ID, err)
		}
	}

	out := *f
	out.ID = created.ID
	return &out, nil
}

// DeleteFlavor deletes a flavor
func (d *Driver) DeleteFlavor(id string) error {
	if err := flavors.Delete(d.compute, id).ExtractErr(); err != nil {
		return classify("delete flavor", id, err)
	}
	return nil
}

// FindAggregate returns the host aggregate with the given name
func (d *Driver) FindAggregate(name string) (*cloudsupport.Aggregate, error) {
	pages, err := aggregates.List(d.compute).AllPages()
	if err != nil {
		return nil, classify("find aggregate", name, err)
	}
	list, err := aggregates.ExtractAggregates(pages)
	if err != nil {
		return nil, &cloudsupport.FatalDriverError{Op: "find aggregate", Err: err}
	}

	for i := range list {
		if list[i].Name == name {
			return convertAggregate(&list[i]), nil
		}
	}
	return nil, nil
}

// CreateAggregate creates a host aggregate with metadata
func (d *Driver) CreateAggregate(name string, metadata map[string]string) (*cloudsupport.Aggregate, error) {
	agg, err := aggregates.Create(d.compute, aggregates.CreateOpts{Name: name}).Extract()
	if err != nil {
		return nil, classify("create aggregate", name, err)
	}

	if len(metadata) > 0 {
		md := make(map[string]interface{}, len(metadata))
		for k, v := range metadata {
			md[k] = v
		}
		agg, err = aggregates.SetMetadata(d.compute, agg.ID, aggregates.SetMetadataOpts{Metadata: md}).Extract()
		if err != nil {
			return nil, classify("set aggregate metadata", name, err)
		}
	}
	return convertAggregate(agg), nil
}

// AddAggregateHost adds a compute host to an aggregate
func (d *Driver) AddAggregateHost(id, host string) error {
	aggID, err := strconv.Atoi(id)
	if err != nil {
		return &cloudsupport.FatalDriverError{Op: "add aggregate host", Err: err}
	}
	if _, err := aggregates.AddHost(d.compute, aggID, aggregates.AddHostOpts{Host: host}).Extract(); err != nil {
		return classify("add aggregate host", host, err)
	}
	return nil
}

// RemoveAggregateHost removes a compute host from an aggregate
func (d *Driver) RemoveAggregateHost(id, host string) error {
	aggID, err := strconv.Atoi(id)
	if err != nil {
		return &cloudsupport.FatalDriverError{Op: "remove aggregate host", Err: err}
	}
	if _, err := aggregates.RemoveHost(d.compute, aggID, aggregates.RemoveHostOpts{Host: host}).Extract(); err != nil {
		return classify("remove aggregate host", host, err)
	}
	return nil
}

// FindSecurityGroup returns the first security group with the given name
func (d *Driver) FindSecurityGroup(name string) (*cloudsupport.SecurityGroup, error) {
	pages, err := groups.List(d.network, groups.ListOpts{Name: name}).AllPages()
	if err != nil {
		return nil, classify("find security group", name, err)
	}
	list, err := groups.ExtractGroups(pages)
	if err != nil {
		return nil, &cloudsupport.FatalDriverError{Op: "find security group", Err: err}
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &cloudsupport.SecurityGroup{ID: list[0].ID, Name: list[0].Name}, nil
}

// CreateSecurityGroup creates a security group allowing ingress ICMP and the
// given TCP ports
func (d *Driver) CreateSecurityGroup(name string, tcpPorts []int) (*cloudsupport.SecurityGroup, error) {
	group, err := groups.Create(d.network, groups.CreateOpts{
		Name:        name,
		Description: "cloudsupport test instances",
	}).Extract()
	if err != nil {
		return nil, classify("create security group", name, err)
	}

	ruleOpts := []rules.CreateOpts{{
		Direction:  rules.DirIngress,
		EtherType:  rules.EtherType4,
		SecGroupID: group.ID,
		Protocol:   rules.ProtocolICMP,
	}}
	for _, port := range tcpPorts {
		ruleOpts = append(ruleOpts, rules.CreateOpts{
			Direction:    rules.DirIngress,
			EtherType:    rules.EtherType4,
			SecGroupID:   group.ID,
			Protocol:     rules.ProtocolTCP,
			PortRangeMin: port,
			PortRangeMax: port,
		})
	}
	for _, opts := range ruleOpts {
		if _, err := rules.Create(d.network, opts).Extract(); err != nil {
			return nil, classify("create security group rule", group.ID, err)
		}
	}

	return &cloudsupport.SecurityGroup{ID: group.ID, Name: group.Name}, nil
}

// AddServerSecurityGroup attaches a security group to a server
func (d *Driver) AddServerSecurityGroup(serverID, group string) error {
	if err := secgroups.AddServer(d.compute, serverID, group).ExtractErr(); err != nil {
		return classify("add security group", serverID, err)
	}
	return nil
}

// FindImage returns the first image with the given name
func (d *Driver) FindImage(name string) (*cloudsupport.Image, error) {
	pages, err := images.List(d.image, images.ListOpts{Name: name}).AllPages()
	if err != nil {
		return nil, classify("find image", name, err)
	}
	list, err := images.ExtractImages(pages)
	if err != nil {
		return nil, &cloudsupport.FatalDriverError{Op: "find image", Err: err}
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &cloudsupport.Image{ID: list[0].ID, Name: list[0].Name}, nil
}

// CreateServer boots a server on pre-created ports
func (d *Driver) CreateServer(spec cloudsupport.ServerSpec) (*cloudsupport.Server, error) {
	nets := make([]servers.Network, len(spec.PortIDs))
	for i, id := range spec.PortIDs {
		nets[i] = servers.Network{Port: id}
	}

	var opts servers.CreateOptsBuilder = servers.CreateOpts{
		Name:      spec.Name,
		ImageRef:  spec.ImageID,
		FlavorRef: spec.FlavorID,
		Networks:  nets,
	}
	if spec.KeyName != "" {
		opts = keypairs.CreateOptsExt{
			CreateOptsBuilder: opts,
			KeyName:           spec.KeyName,
		}
	}

	server, err := servers.Create(d.compute, opts).Extract()
	if err != nil {
		return nil, classify("create server", spec.Name, err)
	}

	log.WithFields(log.Fields{
		"server": server.ID,
		"name":   spec.Name,
	}).Info("created server")
	return &cloudsupport.Server{ID: server.ID, Name: spec.Name, Status: server.Status}, nil
}

// WaitForServer polls until the server reaches status or the timeout passes
func (d *Driver) WaitForServer(id, status string, timeout time.Duration) error {
	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	if err := servers.WaitForStatus(d.compute, id, status, secs); err != nil {
		return classify("wait for server", id, err)
	}
	return nil
}

// GetServer returns a server with its placement attributes
func (d *Driver) GetServer(id string) (*cloudsupport.Server, error) {
	var s extendedServer
	if err := servers.Get(d.compute, id).ExtractInto(&s); err != nil {
		return nil, classify("get server", id, err)
	}
	return convertServer(&s), nil
}

// DeleteServer deletes a server. Deleting a missing server is not an error.
func (d *Driver) DeleteServer(id string) error {
	if err := servers.Delete(d.compute, id).ExtractErr(); err != nil && !isNotFound(err) {
		return classify("delete server", id, err)
	}
	return nil
}

// HostRunsAgent reports whether a network agent with the given binary is
// registered on host
func (d *Driver) HostRunsAgent(host, binary string) (bool, error) {
	pages, err := agents.List(d.network, agents.ListOpts{Host: host, Binary: binary}).AllPages()
	if err != nil {
		return false, classify("list agents", host, err)
	}
	list, err := agents.ExtractAgents(pages)
	if err != nil {
		return false, &cloudsupport.FatalDriverError{Op: "list agents", Err: err}
	}
	return len(list) > 0, nil
}

// DHCPAgentHost returns the host of the first DHCP agent serving the network
func (d *Driver) DHCPAgentHost(networkID string) (string, error) {
	pages, err := agents.List(d.network, agents.ListOpts{AgentType: dhcpAgentType}).AllPages()
	if err != nil {
		return "", classify("list dhcp agents", networkID, err)
	}
	list, err := agents.ExtractAgents(pages)
	if err != nil {
		return "", &cloudsupport.FatalDriverError{Op: "list dhcp agents", Err: err}
	}

	for _, agent := range list {
		nets, err := agents.ListDHCPNetworks(d.network, agent.ID).Extract()
		if err != nil {
			return "", classify("list dhcp networks", agent.ID, err)
		}
		for _, n := range nets {
			if n.ID == networkID {
				return agent.Host, nil
			}
		}
	}
	return "", nil
}

func convertAggregate(a *aggregates.Aggregate) *cloudsupport.Aggregate {
	return &cloudsupport.Aggregate{
		ID:       strconv.Itoa(a.ID),
		Name:     a.Name,
		Hosts:    append([]string{}, a.Hosts...),
		Metadata: a.Metadata,
	}
}
