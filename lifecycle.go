package cloudsupport

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type (
	// StopResult partitions the servers a stop run tried to stop
	StopResult struct {
		Stopped []string `json:"stopped"`
		Failed  []string `json:"failed"`
	}

	// StartResult partitions the servers a start run tried to start
	StartResult struct {
		Started []string `json:"started"`
		Failed  []string `json:"failed"`
	}
)

// StopAll stops every ACTIVE server on a compute node. The node must already
// be disabled. Failures on individual servers are collected in the result;
// any other error stops the run and is returned together with what was done
// so far.
func (c *Context) StopAll(node string) (*StopResult, error) {
	defer c.metrics.MeasureSince([]string{"stop_all"}, time.Now())

	result := &StopResult{Stopped: []string{}, Failed: []string{}}

	disabled, err := c.CheckComputeNode(node, HypervisorDisabled)
	if err != nil {
		return result, asFatal("list hypervisors", err)
	}
	if !disabled {
		return result, &ComputeNodeNotDrainedError{Node: node}
	}

	servers, err := c.driver.ListServers(ServerFilter{
		Host:       node,
		AllTenants: true,
		Status:     ServerActive,
	})
	if err != nil {
		return result, asFatal("list servers", err)
	}

	for _, s := range servers {
		log.WithFields(log.Fields{
			"id":   s.ID,
			"name": s.Name,
			"node": node,
		}).Debug("stopping VM")

		if err := c.driver.StopServer(s.ID); err != nil {
			if !IsTransient(err) {
				return result, asFatal("stop server", err)
			}
			log.WithFields(log.Fields{
				"id":    s.ID,
				"error": err,
			}).Warn("failed to stop VM")
			c.metrics.IncrCounter([]string{"vm", "stop", "failure"}, 1)
			result.Failed = append(result.Failed, s.ID)
			continue
		}
		c.metrics.IncrCounter([]string{"vm", "stop", "success"}, 1)
		result.Stopped = append(result.Stopped, s.ID)
	}

	return result, nil
}

// StartAll starts SHUTOFF servers on a compute node. Unless forceAll is set,
// only servers listed in previouslyStopped are started.
func (c *Context) StartAll(node string, previouslyStopped []string, forceAll bool) (*StartResult, error) {
	defer c.metrics.MeasureSince([]string{"start_all"}, time.Now())

	result := &StartResult{Started: []string{}, Failed: []string{}}

	servers, err := c.driver.ListServers(ServerFilter{
		Host:       node,
		AllTenants: true,
		Status:     ServerShutoff,
	})
	if err != nil {
		return result, asFatal("list servers", err)
	}

	stopped := make(map[string]bool, len(previouslyStopped))
	for _, id := range previouslyStopped {
		stopped[id] = true
	}

	for _, s := range servers {
		if !forceAll && !stopped[s.ID] {
			continue
		}

		log.WithFields(log.Fields{
			"id":   s.ID,
			"name": s.Name,
			"node": node,
		}).Debug("starting VM")

		if err := c.driver.StartServer(s.ID); err != nil {
			if !IsTransient(err) {
				return result, asFatal("start server", err)
			}
			log.WithFields(log.Fields{
				"id":    s.ID,
				"error": err,
			}).Warn("failed to start VM")
			c.metrics.IncrCounter([]string{"vm", "start", "failure"}, 1)
			result.Failed = append(result.Failed, s.ID)
			continue
		}
		c.metrics.IncrCounter([]string{"vm", "start", "success"}, 1)
		result.Started = append(result.Started, s.ID)
	}

	return result, nil
}
