package cloudsupport

type (
	// Hypervisor is a compute node as registered with the compute service
	Hypervisor struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		State  string `json:"state,omitempty"`
	}

	// Hypervisors is an alias to a slice of *Hypervisor
	Hypervisors []*Hypervisor
)

// Find returns the hypervisor with the given name, or nil
func (hs Hypervisors) Find(name string) *Hypervisor {
	for _, h := range hs {
		if h.Name == name {
			return h
		}
	}
	return nil
}

// CheckComputeNode reports whether a hypervisor named node exists with the
// given status
func (c *Context) CheckComputeNode(node, status string) (bool, error) {
	hypervisors, err := c.driver.ListHypervisors()
	if err != nil {
		return false, err
	}
	h := hypervisors.Find(node)
	return h != nil && h.Status == status, nil
}
