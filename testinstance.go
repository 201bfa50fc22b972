package cloudsupport

import (
	"fmt"
	"regexp"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// TestInstancePrefix is the name prefix of instances created for testing
const TestInstancePrefix = "cloudsupport-test-"

// Instance result statuses
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// DefaultServerTimeout is how long to wait for a test instance to become
// ACTIVE
var DefaultServerTimeout = 120 * time.Second

type (
	// TestInstanceRequest describes a batch of test instances. Zero values
	// fall back to the test defaults.
	TestInstanceRequest struct {
		Nodes      []string
		Image      string
		NamePrefix string
		Network    string
		CIDR       string
		PhysNet    string
		VCPUs      int
		RAM        int
		Disk       int
		VNFSpecs   bool
		KeyName    string
		Count      int
		Timeout    time.Duration
	}

	// InstanceResult is the outcome of creating or deleting one instance
	InstanceResult struct {
		Status string `json:"status"`
		ID     string `json:"id,omitempty"`
		Detail string `json:"detail,omitempty"`
	}

	// InstanceResults is an alias to a slice of InstanceResult
	InstanceResults []InstanceResult
)

// Failed reports whether any result is an error
func (rs InstanceResults) Failed() bool {
	for _, r := range rs {
		if r.Status == ResultError {
			return true
		}
	}
	return false
}

func (req *TestInstanceRequest) defaults() {
	if req.Network == "" {
		req.Network = TestNetwork
	}
	if req.CIDR == "" {
		req.CIDR = TestCIDR
	}
	if req.NamePrefix == "" {
		req.NamePrefix = "cloudsupport-test"
	}
	if req.Count <= 0 {
		req.Count = len(req.Nodes)
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultServerTimeout
	}
}

// TestInstanceName returns the name given to test instances created at t
func TestInstanceName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s-%s", prefix, t.UTC().Format("2006-01-02T1504"))
}

// CreateTestInstances boots test instances in the test aggregate, one per
// node unless a count is given. Setup problems that prevent any instance
// from being created are reported as a single error result.
func (c *Context) CreateTestInstances(req TestInstanceRequest) (InstanceResults, error) {
	p, err := c.provisioner()
	if err != nil {
		return nil, err
	}
	req.defaults()

	log.WithField("nodes", req.Nodes).Debug("creating test instances")

	if _, err := c.EnsureHostAggregate(TestAggregate, req.Nodes); err != nil {
		return nil, err
	}
	if _, err := c.EnsureNetwork(req.Network, req.CIDR); err != nil {
		log.WithField("error", err).Warn("unable to set up test network")
		return InstanceResults{{Status: ResultError, Detail: err.Error()}}, nil
	}
	flavor, err := c.EnsureFlavor(TestFlavor, req.VCPUs, req.RAM, req.Disk, req.VNFSpecs)
	if err != nil {
		return nil, err
	}
	sg, err := c.EnsureSecurityGroup(TestSecurityGroup, nil)
	if err != nil {
		return nil, err
	}
	img, err := p.FindImage(req.Image)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return InstanceResults{{Status: ResultError, Detail: "image not found: " + req.Image}}, nil
	}

	name := TestInstanceName(req.NamePrefix, time.Now())
	results := InstanceResults{}
	for i := 0; i < req.Count; i++ {
		ports := []string{}
		port, err := c.CreatePort(req.Network, "")
		if err != nil {
			return results, err
		}
		ports = append(ports, port)
		if req.PhysNet != "" {
			port, err := c.CreatePort(req.Network, req.PhysNet)
			if err != nil {
				return results, err
			}
			ports = append(ports, port)
		}

		server, err := p.CreateServer(ServerSpec{
			Name:     name,
			ImageID:  img.ID,
			FlavorID: flavor.ID,
			PortIDs:  ports,
			KeyName:  req.KeyName,
		})
		if err != nil {
			return results, err
		}
		log.WithFields(log.Fields{
			"id":   server.ID,
			"name": name,
		}).Debug("spawned instance")

		if err := p.WaitForServer(server.ID, ServerActive, req.Timeout); err != nil {
			log.WithFields(log.Fields{
				"id":    server.ID,
				"error": err,
			}).Warn("fault spawning test instance")
			results = append(results, InstanceResult{Status: ResultError, ID: server.ID, Detail: err.Error()})
			continue
		}
		if err := p.AddServerSecurityGroup(server.ID, sg.Name); err != nil {
			results = append(results, InstanceResult{Status: ResultError, ID: server.ID, Detail: err.Error()})
			continue
		}
		results = append(results, InstanceResult{Status: ResultSuccess, ID: server.ID, Detail: "ok"})
	}

	log.WithField("results", results).Info("done create")
	return results, nil
}

// DeleteTestInstances deletes the servers on the given nodes whose name
// matches pattern at its start
func (c *Context) DeleteTestInstances(nodes []string, pattern string) (InstanceResults, error) {
	p, err := c.provisioner()
	if err != nil {
		return nil, err
	}

	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, err
	}
	onNode := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		onNode[n] = true
	}

	servers, err := p.ListServers(ServerFilter{})
	if err != nil {
		return nil, err
	}

	var errs *multierror.Error
	results := InstanceResults{}
	for _, s := range servers {
		if !onNode[s.Host] || !re.MatchString(s.Name) {
			continue
		}
		if err := p.DeleteServer(s.ID); err != nil {
			errs = multierror.Append(errs, err)
			results = append(results, InstanceResult{Status: ResultError, ID: s.ID, Detail: err.Error()})
			continue
		}
		results = append(results, InstanceResult{Status: ResultSuccess, ID: s.ID})
	}

	log.WithField("results", results).Info("deleted test instances")
	return results, errs.ErrorOrNil()
}

// TestInstances returns the given instance id, or the ids of every server
// named like a test instance when id is empty
func (c *Context) TestInstances(id string) ([]string, error) {
	if id != "" {
		return []string{id}, nil
	}
	servers, err := c.driver.ListServers(ServerFilter{})
	if err != nil {
		return nil, err
	}
	ids := servers.WithPrefix(TestInstancePrefix).IDs()
	if len(ids) == 0 {
		log.Warn("no instances found")
	}
	return ids, nil
}
