package openstack

import (
	"fmt"

	"github.com/canonical/cloudsupport"
	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/extendedserverattributes"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/hypervisors"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/startstop"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	log "github.com/sirupsen/logrus"
)

// Driver talks to the compute, network and image services of one cloud
type Driver struct {
	compute *gophercloud.ServiceClient
	network *gophercloud.ServiceClient
	image   *gophercloud.ServiceClient
}

// extendedServer is a server with the admin-only placement attributes
type extendedServer struct {
	servers.Server
	extendedserverattributes.ServerAttributesExt
}

var _ cloudsupport.Provisioner = &Driver{}

// NewDriver creates a Driver from service clients. The network and image
// clients are only needed for provisioning.
func NewDriver(compute, network, image *gophercloud.ServiceClient) *Driver {
	return &Driver{
		compute: compute,
		network: network,
		image:   image,
	}
}

// ListHypervisors lists every hypervisor known to the compute service
func (d *Driver) ListHypervisors() (cloudsupport.Hypervisors, error) {
	pages, err := hypervisors.List(d.compute, hypervisors.ListOpts{}).AllPages()
	if err != nil {
		return nil, classify("list hypervisors", "", err)
	}
	list, err := hypervisors.ExtractHypervisors(pages)
	if err != nil {
		return nil, &cloudsupport.FatalDriverError{Op: "list hypervisors", Err: err}
	}

	hs := make(cloudsupport.Hypervisors, len(list))
	for i, h := range list {
		hs[i] = &cloudsupport.Hypervisor{
			Name:   h.HypervisorHostname,
			Status: h.Status,
			State:  h.State,
		}
	}
	return hs, nil
}

// ListServers lists the servers matching the filter
func (d *Driver) ListServers(f cloudsupport.ServerFilter) (cloudsupport.Servers, error) {
	opts := servers.ListOpts{
		Host:       f.Host,
		AllTenants: f.AllTenants,
		Status:     f.Status,
		Name:       f.Name,
	}
	pages, err := servers.List(d.compute, opts).AllPages()
	if err != nil {
		return nil, classify("list servers", "", err)
	}

	var list []extendedServer
	if err := servers.ExtractServersInto(pages, &list); err != nil {
		return nil, &cloudsupport.FatalDriverError{Op: "list servers", Err: err}
	}

	ss := make(cloudsupport.Servers, len(list))
	for i := range list {
		ss[i] = convertServer(&list[i])
	}

	log.WithFields(log.Fields{
		"host":   f.Host,
		"status": f.Status,
		"name":   f.Name,
		"count":  len(ss),
	}).Debug("listed servers")
	return ss, nil
}

// StopServer requests a server shutdown
func (d *Driver) StopServer(id string) error {
	if err := startstop.Stop(d.compute, id).ExtractErr(); err != nil {
		return classify("stop", id, err)
	}
	return nil
}

// StartServer requests a server start
func (d *Driver) StartServer(id string) error {
	if err := startstop.Start(d.compute, id).ExtractErr(); err != nil {
		return classify("start", id, err)
	}
	return nil
}

func convertServer(s *extendedServer) *cloudsupport.Server {
	server := &cloudsupport.Server{
		ID:                 s.ID,
		Name:               s.Name,
		Status:             s.Status,
		Host:               s.Host,
		HypervisorHostname: s.HypervisorHostname,
		Addresses:          convertAddresses(s.Addresses),
	}
	if !s.Updated.IsZero() {
		server.UpdatedAt = s.Updated.UTC().Format(cloudsupport.UpdatedLayout)
	}
	return server
}

// convertAddresses flattens the compute API's address map, which holds a
// list of objects with an "addr" key per network
func convertAddresses(raw map[string]interface{}) map[string][]string {
	addrs := make(map[string][]string, len(raw))
	for network, v := range raw {
		entries, ok := v.([]interface{})
		if !ok {
			continue
		}
		for _, entry := range entries {
			m, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			if addr, ok := m["addr"]; ok {
				addrs[network] = append(addrs[network], fmt.Sprint(addr))
			}
		}
	}
	return addrs
}
