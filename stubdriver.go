package cloudsupport

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/pborman/uuid"
)

type (
	// StubDriver is an in-memory Provisioner for testing. Failures can be
	// injected per operation and id, or at random for a given percent of
	// server stop and start calls.
	StubDriver struct {
		mu          sync.Mutex
		rand        *rand.Rand
		failPercent int
		failures    map[string]error
		calls       []string

		hypervisors    Hypervisors
		servers        Servers
		networks       map[string]*Network
		ports          map[string]PortSpec
		flavors        map[string]*Flavor
		aggregates     map[string]*Aggregate
		secgroups      map[string]*SecurityGroup
		serverGroups   map[string][]string
		images         map[string]*Image
		agents         map[string]bool
		dhcpAgentHosts map[string]string
		nextAddr       int
	}
)

// NewStubDriver creates a new StubDriver and initializes the random number
// generator for failures
func NewStubDriver(failPercent int) *StubDriver {
	return &StubDriver{
		rand:           rand.New(rand.NewSource(time.Now().UnixNano())),
		failPercent:    failPercent,
		failures:       make(map[string]error),
		networks:       make(map[string]*Network),
		ports:          make(map[string]PortSpec),
		flavors:        make(map[string]*Flavor),
		aggregates:     make(map[string]*Aggregate),
		secgroups:      make(map[string]*SecurityGroup),
		serverGroups:   make(map[string][]string),
		images:         make(map[string]*Image),
		agents:         make(map[string]bool),
		dhcpAgentHosts: make(map[string]string),
	}
}

// FailOn makes the named operation return err. An empty id applies to every
// call of the operation that has no id specific failure.
func (d *StubDriver) FailOn(op, id string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op+":"+id] = err
}

// Calls returns the mutating calls made so far, as "op:id"
func (d *StubDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.calls...)
}

// AddHypervisor registers a hypervisor
func (d *StubDriver) AddHypervisor(name, status string) *Hypervisor {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := &Hypervisor{Name: name, Status: status, State: "up"}
	d.hypervisors = append(d.hypervisors, h)
	return h
}

// AddServer registers a server, generating an id if it has none
func (d *StubDriver) AddServer(s *Server) *Server {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.New()
	}
	d.servers = append(d.servers, s)
	return s
}

// Server returns the registered server with the given id, or nil
func (d *StubDriver) Server(id string) *Server {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.server(id)
}

// AddImage registers an image
func (d *StubDriver) AddImage(name string) *Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	img := &Image{ID: uuid.New(), Name: name}
	d.images[name] = img
	return img
}

// AddAgent registers a network agent binary running on host
func (d *StubDriver) AddAgent(host, binary string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agents[host+"/"+binary] = true
}

// SetDHCPAgentHost sets the host of the DHCP agent serving a network
func (d *StubDriver) SetDHCPAgentHost(networkID, host string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dhcpAgentHosts[networkID] = host
}

// SecurityGroupsOf returns the security groups added to a server
func (d *StubDriver) SecurityGroupsOf(id string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.serverGroups[id]...)
}

// Aggregate returns the named aggregate, or nil
func (d *StubDriver) Aggregate(name string) *Aggregate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.aggregates[name]
}

// failure returns the injected failure for op and id, if any. Must be called
// with the lock held.
func (d *StubDriver) failure(op, id string) error {
	if err, ok := d.failures[op+":"+id]; ok {
		return err
	}
	return d.failures[op+":"]
}

// randomError simulates a transient failure for a given percent of the time
func (d *StubDriver) randomError(op, id string) error {
	if d.failPercent > 0 && d.rand.Intn(100) < d.failPercent {
		return &TransientCloudError{Op: op, ID: id, Err: errors.New("random error")}
	}
	return nil
}

func (d *StubDriver) server(id string) *Server {
	for _, s := range d.servers {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ListHypervisors returns the registered hypervisors
func (d *StubDriver) ListHypervisors() (Hypervisors, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("hypervisors", ""); err != nil {
		return nil, err
	}
	return append(Hypervisors{}, d.hypervisors...), nil
}

// ListServers returns the registered servers matching the filter
func (d *StubDriver) ListServers(filter ServerFilter) (Servers, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("servers", ""); err != nil {
		return nil, err
	}

	var name *regexp.Regexp
	if filter.Name != "" {
		var err error
		if name, err = regexp.Compile(filter.Name); err != nil {
			return nil, err
		}
	}

	out := Servers{}
	for _, s := range d.servers {
		if filter.Host != "" && s.Host != filter.Host {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if name != nil && !name.MatchString(s.Name) {
			continue
		}
		copied := *s
		out = append(out, &copied)
	}
	return out, nil
}

func (d *StubDriver) setStatus(op, id, status string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, op+":"+id)
	if err := d.failure(op, id); err != nil {
		return err
	}
	if err := d.randomError(op, id); err != nil {
		return err
	}
	s := d.server(id)
	if s == nil {
		return &TransientCloudError{Op: op, ID: id, Err: errors.New("server not found")}
	}
	s.Status = status
	return nil
}

// StopServer marks a server SHUTOFF
func (d *StubDriver) StopServer(id string) error {
	return d.setStatus("stop", id, ServerShutoff)
}

// StartServer marks a server ACTIVE
func (d *StubDriver) StartServer(id string) error {
	return d.setStatus("start", id, ServerActive)
}

// FindNetwork returns the named network, or nil
func (d *StubDriver) FindNetwork(name string) (*Network, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("find-network", name); err != nil {
		return nil, err
	}
	return d.networks[name], nil
}

// CreateNetwork creates a network with a single subnet
func (d *StubDriver) CreateNetwork(name, cidr string) (*Network, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "create-network:"+name)
	if err := d.failure("create-network", name); err != nil {
		return nil, err
	}
	n := &Network{ID: uuid.New(), Name: name, CIDR: cidr}
	d.networks[name] = n
	return n, nil
}

// DeleteNetwork deletes a network
func (d *StubDriver) DeleteNetwork(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "delete-network:"+id)
	if err := d.failure("delete-network", id); err != nil {
		return err
	}
	for name, n := range d.networks {
		if n.ID == id {
			delete(d.networks, name)
		}
	}
	return nil
}

// CreatePort creates a port
func (d *StubDriver) CreatePort(spec PortSpec) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("create-port", spec.NetworkID); err != nil {
		return "", err
	}
	id := uuid.New()
	d.ports[id] = spec
	d.calls = append(d.calls, "create-port:"+id)
	return id, nil
}

// Port returns the spec a port was created with
func (d *StubDriver) Port(id string) (PortSpec, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	spec, ok := d.ports[id]
	return spec, ok
}

// FindFlavor returns the named flavor, or nil
func (d *StubDriver) FindFlavor(name string) (*Flavor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flavors[name], nil
}

// CreateFlavor creates a flavor
func (d *StubDriver) CreateFlavor(f *Flavor) (*Flavor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "create-flavor:"+f.Name)
	if err := d.failure("create-flavor", f.Name); err != nil {
		return nil, err
	}
	created := *f
	created.ID = uuid.New()
	d.flavors[f.Name] = &created
	return &created, nil
}

// DeleteFlavor deletes a flavor
func (d *StubDriver) DeleteFlavor(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "delete-flavor:"+id)
	for name, f := range d.flavors {
		if f.ID == id {
			delete(d.flavors, name)
		}
	}
	return nil
}

// FindAggregate returns the named aggregate, or nil
func (d *StubDriver) FindAggregate(name string) (*Aggregate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	agg, ok := d.aggregates[name]
	if !ok {
		return nil, nil
	}
	copied := *agg
	copied.Hosts = append([]string{}, agg.Hosts...)
	return &copied, nil
}

// CreateAggregate creates an aggregate with metadata
func (d *StubDriver) CreateAggregate(name string, metadata map[string]string) (*Aggregate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "create-aggregate:"+name)
	agg := &Aggregate{ID: uuid.New(), Name: name, Hosts: []string{}, Metadata: metadata}
	d.aggregates[name] = agg
	copied := *agg
	return &copied, nil
}

func (d *StubDriver) aggregateByID(id string) (*Aggregate, error) {
	for _, agg := range d.aggregates {
		if agg.ID == id {
			return agg, nil
		}
	}
	return nil, fmt.Errorf("aggregate %s not found", id)
}

// AddAggregateHost adds a host to an aggregate
func (d *StubDriver) AddAggregateHost(id, host string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	agg, err := d.aggregateByID(id)
	if err != nil {
		return err
	}
	agg.Hosts = append(agg.Hosts, host)
	return nil
}

// RemoveAggregateHost removes a host from an aggregate
func (d *StubDriver) RemoveAggregateHost(id, host string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	agg, err := d.aggregateByID(id)
	if err != nil {
		return err
	}
	hosts := []string{}
	for _, h := range agg.Hosts {
		if h != host {
			hosts = append(hosts, h)
		}
	}
	agg.Hosts = hosts
	return nil
}

// FindSecurityGroup returns the named security group, or nil
func (d *StubDriver) FindSecurityGroup(name string) (*SecurityGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.secgroups[name], nil
}

// CreateSecurityGroup creates a security group
func (d *StubDriver) CreateSecurityGroup(name string, tcpPorts []int) (*SecurityGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "create-secgroup:"+name)
	sg := &SecurityGroup{ID: uuid.New(), Name: name}
	d.secgroups[name] = sg
	return sg, nil
}

// AddServerSecurityGroup adds a security group to a server
func (d *StubDriver) AddServerSecurityGroup(serverID, group string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("add-secgroup", serverID); err != nil {
		return err
	}
	d.serverGroups[serverID] = append(d.serverGroups[serverID], group)
	return nil
}

// FindImage returns the named image, or nil
func (d *StubDriver) FindImage(name string) (*Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.images[name], nil
}

// CreateServer boots a server. It is placed on the test aggregate's hosts in
// turn and given an address on the network of its first port.
func (d *StubDriver) CreateServer(spec ServerSpec) (*Server, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("create-server", ""); err != nil {
		return nil, err
	}

	s := &Server{
		ID:        uuid.New(),
		Name:      spec.Name,
		Status:    ServerActive,
		UpdatedAt: time.Now().UTC().Format(UpdatedLayout),
		Addresses: map[string][]string{},
	}
	if agg, ok := d.aggregates[TestAggregate]; ok && len(agg.Hosts) > 0 {
		s.Host = agg.Hosts[d.nextAddr%len(agg.Hosts)]
		s.HypervisorHostname = s.Host
	}
	d.nextAddr++
	if len(spec.PortIDs) > 0 {
		port := d.ports[spec.PortIDs[0]]
		for name, n := range d.networks {
			if n.ID == port.NetworkID {
				s.Addresses[name] = []string{fmt.Sprintf("192.168.99.%d", 10+d.nextAddr)}
			}
		}
	}
	d.servers = append(d.servers, s)
	d.calls = append(d.calls, "create-server:"+s.ID)
	copied := *s
	return &copied, nil
}

// WaitForServer returns an injected failure or nil
func (d *StubDriver) WaitForServer(id, status string, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("wait", id); err != nil {
		return err
	}
	s := d.server(id)
	if s == nil {
		return fmt.Errorf("server %s not found", id)
	}
	if s.Status != status {
		return fmt.Errorf("server %s is %s, want %s", id, s.Status, status)
	}
	return nil
}

// GetServer returns a server
func (d *StubDriver) GetServer(id string) (*Server, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.server(id)
	if s == nil {
		return nil, fmt.Errorf("server %s not found", id)
	}
	copied := *s
	return &copied, nil
}

// DeleteServer removes a server
func (d *StubDriver) DeleteServer(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "delete:"+id)
	if err := d.failure("delete", id); err != nil {
		return err
	}
	servers := Servers{}
	for _, s := range d.servers {
		if s.ID != id {
			servers = append(servers, s)
		}
	}
	d.servers = servers
	return nil
}

// HostRunsAgent reports whether an agent binary was registered for host
func (d *StubDriver) HostRunsAgent(host, binary string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.agents[host+"/"+binary], nil
}

// DHCPAgentHost returns the registered DHCP agent host of a network
func (d *StubDriver) DHCPAgentHost(networkID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	host, ok := d.dhcpAgentHosts[networkID]
	if !ok {
		return "", fmt.Errorf("no DHCP agent hosts network %s", networkID)
	}
	return host, nil
}
