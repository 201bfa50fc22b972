package cloudsupport

import (
	log "github.com/sirupsen/logrus"
)

// TestAggregate is the host aggregate test instances are scheduled into
const TestAggregate = "cloudsupport-test-agg"

// EnsureHostAggregate creates the named aggregate if needed and replaces its
// hosts with nodes
func (c *Context) EnsureHostAggregate(name string, nodes []string) (*Aggregate, error) {
	p, err := c.provisioner()
	if err != nil {
		return nil, err
	}

	agg, err := p.FindAggregate(name)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		agg, err = p.CreateAggregate(name, map[string]string{TestAggregate: "true"})
		if err != nil {
			return nil, err
		}
		log.WithField("aggregate", name).Info("created aggregate")
	}

	for _, host := range agg.Hosts {
		if err := p.RemoveAggregateHost(agg.ID, host); err != nil {
			return nil, err
		}
	}
	for _, node := range nodes {
		if err := p.AddAggregateHost(agg.ID, node); err != nil {
			return nil, err
		}
	}
	agg.Hosts = append([]string{}, nodes...)
	return agg, nil
}
