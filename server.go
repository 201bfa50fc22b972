package cloudsupport

import (
	"strings"
	"time"
)

// UpdatedLayout is the timestamp format of a server's last update
const UpdatedLayout = "2006-01-02T15:04:05Z"

type (
	// Server is a virtual machine instance
	Server struct {
		ID                 string              `json:"id"`
		Name               string              `json:"name"`
		Status             string              `json:"status"`
		Host               string              `json:"host"`
		HypervisorHostname string              `json:"hypervisor_hostname,omitempty"`
		UpdatedAt          string              `json:"updated_at"`
		Addresses          map[string][]string `json:"addresses,omitempty"`
	}

	// Servers is an alias to a slice of *Server
	Servers []*Server
)

// Updated parses the server's last update time
func (s *Server) Updated() (time.Time, error) {
	return time.Parse(UpdatedLayout, s.UpdatedAt)
}

// Address returns the first address the server has on the named network
func (s *Server) Address(network string) string {
	addrs := s.Addresses[network]
	if len(addrs) == 0 {
		return ""
	}
	return addrs[0]
}

// IDs returns the ids of the servers in order
func (ss Servers) IDs() []string {
	ids := make([]string, len(ss))
	for i, s := range ss {
		ids[i] = s.ID
	}
	return ids
}

// WithPrefix returns the servers whose name starts with prefix
func (ss Servers) WithPrefix(prefix string) Servers {
	out := Servers{}
	for _, s := range ss {
		if strings.HasPrefix(s.Name, prefix) {
			out = append(out, s)
		}
	}
	return out
}

// Without returns the servers whose id is not in ids
func (ss Servers) Without(ids []string) Servers {
	if len(ids) == 0 {
		return ss
	}
	skip := make(map[string]bool, len(ids))
	for _, id := range ids {
		skip[id] = true
	}
	out := Servers{}
	for _, s := range ss {
		if !skip[s.ID] {
			out = append(out, s)
		}
	}
	return out
}
