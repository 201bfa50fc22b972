// Package actions validates operator action parameters, runs them against a
// cloud and shapes their results. The stopped-VM set is kept in a kv store
// between stop-vms and start-vms.
package actions

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/armon/go-metrics"
	"github.com/canonical/cloudsupport"
	"github.com/canonical/cloudsupport/internal/cli"
	"github.com/canonical/cloudsupport/internal/config"
	"github.com/canonical/cloudsupport/pkg/kv"
	log "github.com/sirupsen/logrus"
)

// StoppedPrefix is the kv prefix of per-node stopped-VM sets
const StoppedPrefix = "stopped-vms/"

type (
	// ContextFunc returns a Context for the named cloud
	ContextFunc func(cloud string) (*cloudsupport.Context, error)

	// Runner runs actions
	Runner struct {
		Context  ContextFunc
		KV       kv.KV
		Config   *config.Config
		Executor cloudsupport.Executor
		Metrics  *metrics.Metrics
	}

	// LifecycleParams are the parameters of stop-vms and start-vms.
	// ForceAll only applies to start-vms.
	LifecycleParams struct {
		ReallyMeanIt bool
		ComputeNode  string
		CloudName    string
		ForceAll     bool
	}

	// CreateParams are the parameters of create-test-instances. Zero
	// sizing and an empty key name fall back to the configuration.
	CreateParams struct {
		Nodes    string
		PhysNet  string
		VCPUs    int
		RAM      int
		Disk     int
		VNFSpecs bool
		KeyName  string
	}

	// DeleteParams are the parameters of delete-test-instances. An empty
	// pattern matches the configured name prefix.
	DeleteParams struct {
		Nodes   string
		Pattern string
	}
)

// StoppedKey returns the kv key of a node's stopped-VM set
func StoppedKey(node string) string {
	return StoppedPrefix + node
}

func (p LifecycleParams) validate() error {
	if !p.ReallyMeanIt {
		return &cloudsupport.MissingParameterError{Name: "i-really-mean-it", Confirmation: true}
	}
	if p.ComputeNode == "" {
		return &cloudsupport.MissingParameterError{Name: "compute-node"}
	}
	return nil
}

func (r *Runner) context(cloud string) (*cloudsupport.Context, error) {
	if cloud == "" {
		cloud = r.Config.CloudName
	}
	return r.Context(cloud)
}

func (r *Runner) measure(action string, start time.Time) {
	if r.Metrics != nil {
		r.Metrics.MeasureSince([]string{"action", action, "time"}, start)
	}
}

// StopVMs stops every ACTIVE VM on a disabled compute node and records the
// ones it stopped, added to any set an earlier run left. A partial result is
// recorded and returned even when the batch aborts.
func (r *Runner) StopVMs(p LifecycleParams) (cli.JMap, error) {
	defer r.measure("stop-vms", time.Now())

	if err := p.validate(); err != nil {
		return nil, err
	}
	ctx, err := r.context(p.CloudName)
	if err != nil {
		return nil, err
	}

	res, err := ctx.StopAll(p.ComputeNode)
	var notDrained *cloudsupport.ComputeNodeNotDrainedError
	if errors.As(err, &notDrained) {
		return nil, err
	}

	// a rerun after failures keeps what earlier runs stopped
	previous, loadErr := r.loadStopped(p.ComputeNode)
	if loadErr != nil {
		log.WithFields(log.Fields{
			"node":  p.ComputeNode,
			"error": loadErr,
		}).Error("failed to load stopped VMs")
	}
	stopped := union(previous, res.Stopped)
	if saveErr := r.saveStopped(p.ComputeNode, stopped); saveErr != nil {
		if err == nil {
			err = saveErr
		}
		log.WithFields(log.Fields{
			"node":  p.ComputeNode,
			"error": saveErr,
		}).Error("failed to save stopped VMs")
	}

	return cli.JMap{
		"stopped-vms":    res.Stopped,
		"failed-to-stop": res.Failed,
	}, err
}

// StartVMs starts the SHUTOFF VMs on a compute node that stop-vms stopped,
// or all of them with ForceAll, then forgets the stopped set
func (r *Runner) StartVMs(p LifecycleParams) (cli.JMap, error) {
	defer r.measure("start-vms", time.Now())

	if err := p.validate(); err != nil {
		return nil, err
	}
	ctx, err := r.context(p.CloudName)
	if err != nil {
		return nil, err
	}

	previous, err := r.loadStopped(p.ComputeNode)
	loaded := err == nil
	if !loaded {
		if !p.ForceAll {
			return nil, err
		}
		log.WithFields(log.Fields{
			"node":  p.ComputeNode,
			"error": err,
		}).Warn("failed to load stopped VMs, starting all")
	}

	res, err := ctx.StartAll(p.ComputeNode, previous, p.ForceAll)
	if err != nil {
		if loaded {
			remaining := cloudsupport.Servers{}
			for _, id := range previous {
				remaining = append(remaining, &cloudsupport.Server{ID: id})
			}
			if saveErr := r.saveStopped(p.ComputeNode, remaining.Without(res.Started).IDs()); saveErr != nil {
				log.WithField("error", saveErr).Error("failed to save stopped VMs")
			}
		}
	} else if delErr := r.KV.Delete(StoppedKey(p.ComputeNode), false); delErr != nil && !r.KV.IsKeyNotFound(delErr) {
		err = delErr
	}

	return cli.JMap{
		"started-vms":     res.Started,
		"failed-to-start": res.Failed,
	}, err
}

// StoppedVMs returns the recorded stopped-VM set of every node
func (r *Runner) StoppedVMs() (map[string][]string, error) {
	keys, err := r.KV.Keys(StoppedPrefix)
	if err != nil {
		return nil, err
	}
	sets := make(map[string][]string, len(keys))
	for _, key := range keys {
		node := key[len(StoppedPrefix):]
		ids, err := r.loadStopped(node)
		if err != nil {
			return nil, err
		}
		sets[node] = ids
	}
	return sets, nil
}

// CreateTestInstances boots a test instance on each listed node
func (r *Runner) CreateTestInstances(p CreateParams) (cli.JMap, error) {
	defer r.measure("create-test-instances", time.Now())

	nodes := cli.SplitList(p.Nodes)
	if len(nodes) == 0 {
		return nil, &cloudsupport.MissingParameterError{Name: "nodes"}
	}
	ctx, err := r.context("")
	if err != nil {
		return nil, err
	}

	req := cloudsupport.TestInstanceRequest{
		Nodes:      nodes,
		Image:      r.Config.Image,
		NamePrefix: r.Config.NamePrefix,
		CIDR:       r.Config.CIDR,
		PhysNet:    p.PhysNet,
		VCPUs:      orDefault(p.VCPUs, r.Config.VCPUs),
		RAM:        orDefault(p.RAM, r.Config.RAM),
		Disk:       orDefault(p.Disk, r.Config.Disk),
		VNFSpecs:   p.VNFSpecs,
		KeyName:    p.KeyName,
	}
	if req.KeyName == "" {
		req.KeyName = r.Config.KeyName
	}

	results, err := ctx.CreateTestInstances(req)
	if err != nil {
		return cli.JMap{"error": err.Error()}, err
	}

	status := cloudsupport.ResultSuccess
	if results.Failed() {
		status = cloudsupport.ResultError
	}
	return cli.JMap{
		"create-results": status,
		"create-details": results,
	}, nil
}

// DeleteTestInstances deletes the test instances on the listed nodes
func (r *Runner) DeleteTestInstances(p DeleteParams) (cli.JMap, error) {
	defer r.measure("delete-test-instances", time.Now())

	nodes := cli.SplitList(p.Nodes)
	if len(nodes) == 0 {
		return nil, &cloudsupport.MissingParameterError{Name: "nodes"}
	}
	pattern := p.Pattern
	if pattern == "" {
		pattern = r.Config.NamePrefix
	}
	ctx, err := r.context("")
	if err != nil {
		return nil, err
	}

	results, err := ctx.DeleteTestInstances(nodes, pattern)
	return cli.JMap{"delete-results": results}, err
}

// TestConnectivity pings and probes ssh of one or every test instance
func (r *Runner) TestConnectivity(instance string) (cli.JMap, error) {
	defer r.measure("test-connectivity", time.Now())

	if r.Executor == nil {
		return nil, errors.New("no remote executor configured")
	}
	ctx, err := r.context("")
	if err != nil {
		return nil, err
	}

	results, err := ctx.TestConnectivity(r.Executor, instance)
	if err != nil {
		return cli.JMap{"error": err.Error()}, err
	}
	if len(results) == 0 {
		return noInstances(), nil
	}
	out := make(cli.JMap, len(results))
	for id, res := range results {
		out[id] = res
	}
	return out, nil
}

// GetSSHCmd returns ssh command lines for one or every test instance
func (r *Runner) GetSSHCmd(instance string) (cli.JMap, error) {
	defer r.measure("get-ssh-cmd", time.Now())

	ctx, err := r.context("")
	if err != nil {
		return nil, err
	}

	results, err := ctx.SSHCommands(instance)
	if err != nil {
		return cli.JMap{"error": err.Error()}, err
	}
	if len(results) == 0 {
		return noInstances(), nil
	}
	out := make(cli.JMap, len(results))
	for id, cmd := range results {
		out[id] = cmd
	}
	return out, nil
}

func (r *Runner) loadStopped(node string) ([]string, error) {
	v, err := r.KV.Get(StoppedKey(node))
	if err != nil {
		if r.KV.IsKeyNotFound(err) {
			return []string{}, nil
		}
		return nil, err
	}
	ids := []string{}
	if err := json.Unmarshal(v.Data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Runner) saveStopped(node string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	buf, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return r.KV.Set(StoppedKey(node), string(buf))
}

func noInstances() cli.JMap {
	return cli.JMap{"warning": "No instances found"}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := []string{}
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
