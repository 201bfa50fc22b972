package cloudsupport

import "time"

type (
	// Provisioner is a Driver that can also build the resources test
	// instances need. Find* methods return nil and no error when the named
	// resource does not exist.
	Provisioner interface {
		Driver

		FindNetwork(string) (*Network, error)
		CreateNetwork(name, cidr string) (*Network, error)
		DeleteNetwork(string) error
		CreatePort(PortSpec) (string, error)

		FindFlavor(string) (*Flavor, error)
		CreateFlavor(*Flavor) (*Flavor, error)
		DeleteFlavor(string) error

		FindAggregate(string) (*Aggregate, error)
		CreateAggregate(name string, metadata map[string]string) (*Aggregate, error)
		AddAggregateHost(id, host string) error
		RemoveAggregateHost(id, host string) error

		FindSecurityGroup(string) (*SecurityGroup, error)
		CreateSecurityGroup(name string, tcpPorts []int) (*SecurityGroup, error)
		AddServerSecurityGroup(serverID, group string) error

		FindImage(string) (*Image, error)

		CreateServer(ServerSpec) (*Server, error)
		WaitForServer(id, status string, timeout time.Duration) error
		GetServer(string) (*Server, error)
		DeleteServer(string) error

		// HostRunsAgent reports whether a network agent with the given binary
		// runs on host
		HostRunsAgent(host, binary string) (bool, error)
		// DHCPAgentHost returns the host of the first DHCP agent serving the
		// network
		DHCPAgentHost(networkID string) (string, error)
	}

	// Network is a tenant network with its first subnet's CIDR
	Network struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		CIDR string `json:"cidr"`
	}

	// PortSpec describes a port to create on a network. A non-empty
	// PhysicalNetwork makes it an SR-IOV port.
	PortSpec struct {
		NetworkID       string
		Name            string
		PhysicalNetwork string
	}

	// Flavor is a compute flavor with its extra specs
	Flavor struct {
		ID         string            `json:"id"`
		Name       string            `json:"name"`
		VCPUs      int               `json:"vcpus"`
		RAM        int               `json:"ram"`
		Disk       int               `json:"disk"`
		ExtraSpecs map[string]string `json:"extra_specs,omitempty"`
	}

	// Aggregate is a host aggregate
	Aggregate struct {
		ID       string            `json:"id"`
		Name     string            `json:"name"`
		Hosts    []string          `json:"hosts"`
		Metadata map[string]string `json:"metadata,omitempty"`
	}

	// SecurityGroup is a network security group
	SecurityGroup struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// Image is a bootable image
	Image struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// ServerSpec describes a server to boot
	ServerSpec struct {
		Name     string
		ImageID  string
		FlavorID string
		PortIDs  []string
		KeyName  string
	}
)
