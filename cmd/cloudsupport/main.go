package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/armon/go-metrics"
	"github.com/canonical/cloudsupport"
	"github.com/canonical/cloudsupport/internal/actions"
	"github.com/canonical/cloudsupport/internal/cli"
	"github.com/canonical/cloudsupport/internal/config"
	"github.com/canonical/cloudsupport/internal/logx"
	"github.com/canonical/cloudsupport/pkg/deferer"
	"github.com/canonical/cloudsupport/pkg/kv"
	_ "github.com/canonical/cloudsupport/pkg/kv/badger"
	_ "github.com/canonical/cloudsupport/pkg/kv/file"
	"github.com/canonical/cloudsupport/pkg/lock"
	"github.com/canonical/cloudsupport/pkg/openstack"
	"github.com/canonical/cloudsupport/pkg/sshexec"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	defaultConfig = "/etc/cloudsupport/config.yaml"
	defaultState  = "file:///var/lib/cloudsupport/state.yaml"
)

type app struct {
	configFile string
	cloudsFile string
	caCert     string
	stateAddr  string
	cloudName  string
	logLevel   string
	statsd     string
	format     string
	sshKey     string
	lockWait   time.Duration

	d       *deferer.Deferer
	cfg     *config.Config
	metrics *metrics.Metrics
}

func (a *app) fatal(err error, msg string) {
	a.d.FatalWithFields(log.Fields{"error": err}, msg)
}

// setup configures logging and metrics and loads the unit configuration.
// A missing configuration file leaves every option at its default.
func (a *app) setup(cmd *cobra.Command, _ []string) {
	if err := logx.DefaultSetup(a.logLevel); err != nil {
		log.WithFields(log.Fields{
			"error": err,
			"func":  "logx.DefaultSetup",
			"level": a.logLevel,
		}).Fatal("unable to set up logrus")
	}

	fanout := metrics.FanoutSink{}
	if a.statsd != "" {
		ss, err := metrics.NewStatsdSink(a.statsd)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
				"func":  "metrics.NewStatsdSink",
				"addr":  a.statsd,
			}).Fatal("unable to set up statsd sink")
		}
		fanout = append(fanout, ss)
	}
	conf := metrics.DefaultConfig("cloudsupport")
	conf.EnableHostname = false
	conf.EnableRuntimeMetrics = false
	a.metrics, _ = metrics.New(conf, fanout)

	cfg, err := config.Load(a.configFile)
	if err != nil {
		var cerr *cloudsupport.ConfigError
		if !errors.As(err, &cerr) || cerr.Reason != "not found" {
			a.fatal(err, "failed to load configuration")
		}
		log.WithField("path", a.configFile).Warn("configuration not found, using defaults")
		cfg = config.Default()
	}
	if a.cloudName != "" {
		cfg.CloudName = a.cloudName
	}
	a.cfg = cfg
}

// lockState takes the state store lock, waiting up to --lock-wait for a
// concurrent action to finish
func (a *app) lockState() {
	path, err := kv.Path(a.stateAddr)
	if err != nil {
		a.fatal(err, "invalid state store address")
	}
	if path == "" {
		// in-memory store
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.lockWait)
	defer cancel()
	l, err := lock.Acquire(ctx, lock.ForState(path), a.lockWait > 0)
	if err != nil {
		a.d.FatalWithFields(log.Fields{
			"error": err,
			"func":  "lock.Acquire",
			"path":  lock.ForState(path),
		}, "another action is running")
	}
	a.d.Defer(func() {
		logx.LogReturnedErr(l.Release, log.Fields{"path": l.Path()}, "failed to release state lock")
	})
}

// runner locks and opens the state store and the cloud connection cache.
// All are released when the deferer runs.
func (a *app) runner() *actions.Runner {
	a.lockState()

	store, err := kv.New(a.stateAddr)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
			"func":  "kv.New",
			"addr":  a.stateAddr,
		}).Fatal("unable to open state store")
	}
	a.d.Defer(func() {
		logx.LogReturnedErr(store.Close, log.Fields{"addr": a.stateAddr}, "failed to close state store")
	})

	cache := openstack.NewCache(openstack.Options{
		CloudsFile: a.cloudsFile,
		CACert:     a.caCert,
	})
	a.d.Defer(cache.Close)

	r := &actions.Runner{
		Context: func(cloud string) (*cloudsupport.Context, error) {
			conn, err := cache.Get(cloud)
			if err != nil {
				return nil, err
			}
			return cloudsupport.NewContext(conn.Driver(), a.metrics), nil
		},
		KV:      store,
		Config:  a.cfg,
		Metrics: a.metrics,
	}

	exec, err := sshexec.New(sshexec.Config{KeyFile: a.sshKey})
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
			"key":   a.sshKey,
		}).Warn("ssh key unusable, test-connectivity disabled")
	} else {
		r.Executor = exec
	}
	return r
}

// run wraps an action: the result is printed even when the action fails
// part way, then the failure ends the command
func (a *app) run(action string, fn func(*actions.Runner, []string) (cli.JMap, error)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		defer a.d.Run()

		res, err := fn(a.runner(), args)
		if res != nil {
			if perr := res.Print(cmd.OutOrStdout(), a.format); perr != nil {
				a.fatal(perr, "failed to print result")
			}
		}
		if err != nil {
			a.d.FatalWithFields(log.Fields{
				"error":  err,
				"action": action,
			}, "action failed")
		}
	}
}

func (a *app) configure(cmd *cobra.Command, _ []string) {
	defer a.d.Run()

	home, err := os.UserHomeDir()
	if err != nil {
		a.fatal(err, "unable to find home directory")
	}
	paths := config.DefaultPaths(home)
	paths.CloudsYAML = a.cloudsFile
	if a.caCert != "" {
		paths.CACert = a.caCert
	}

	status := "Unit is ready"
	if err := a.cfg.Validate(); err != nil {
		if a.cfg.CloudsYAML != "" {
			a.fatal(err, "invalid configuration")
		}
		log.WithField("error", err).Warn("configuration incomplete")
		status = "Set config values"
	}
	if err := a.cfg.Render(paths); err != nil {
		a.fatal(err, "failed to render configuration")
	}

	if err := (cli.JMap{"status": status}).Print(cmd.OutOrStdout(), a.format); err != nil {
		a.fatal(err, "failed to print result")
	}
}

// nodeList returns the --nodes value, reading one node per line from stdin
// when it is "-"
func nodeList(nodes string) string {
	if nodes != "-" {
		return nodes
	}
	lines := cli.Read(os.Stdin)
	list := ""
	for i, line := range lines {
		if i > 0 {
			list += ","
		}
		list += line
	}
	return list
}

func instanceArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	cli.AssertID(args[0])
	return args[0]
}

func help(cmd *cobra.Command, _ []string) {
	_ = cmd.Help()
}

func main() {
	a := &app{
		d:          deferer.NewDeferer(nil),
		configFile: defaultConfig,
		cloudsFile: openstack.DefaultCloudsFile,
		stateAddr:  defaultState,
		logLevel:   "warn",
		format:     cli.FormatJSON,
	}
	if home, err := os.UserHomeDir(); err == nil {
		a.sshKey = filepath.Join(home, ".ssh", "id_rsa_cloudsupport")
	}

	root := &cobra.Command{
		Use:              "cloudsupport",
		Short:            "cloudsupport runs maintenance actions against an OpenStack cloud",
		Run:              help,
		PersistentPreRun: a.setup,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", a.configFile, "unit configuration file")
	flags.StringVar(&a.cloudsFile, "clouds-yaml", a.cloudsFile, "clouds.yaml with the cloud credentials")
	flags.StringVar(&a.caCert, "cacert", a.caCert, "CA certificate of the cloud endpoints")
	flags.StringVar(&a.stateAddr, "state", a.stateAddr, "state store address (file:// or badger://)")
	flags.DurationVar(&a.lockWait, "lock-wait", a.lockWait, "how long to wait for a concurrent action to finish")
	flags.StringVar(&a.cloudName, "cloud-name", a.cloudName, "cloud to use instead of the configured one")
	flags.StringVar(&a.sshKey, "ssh-key", a.sshKey, "private key for reaching network hosts")
	flags.StringVarP(&a.logLevel, "log-level", "l", a.logLevel, "log level")
	flags.StringVarP(&a.statsd, "statsd", "s", a.statsd, "statsd address")
	flags.StringVarP(&a.format, "format", "f", a.format, "output format (json|yaml)")

	cmdConfigure := &cobra.Command{
		Use:   "configure",
		Short: "Write credential files and the stale server check",
		Run:   a.configure,
	}

	var lifecycle actions.LifecycleParams
	cmdStop := &cobra.Command{
		Use:   "stop-vms",
		Short: "Stop every active VM on a disabled compute node",
		Run: a.run("stop-vms", func(r *actions.Runner, _ []string) (cli.JMap, error) {
			return r.StopVMs(lifecycle)
		}),
	}
	cmdStart := &cobra.Command{
		Use:   "start-vms",
		Short: "Start the VMs stop-vms stopped on a compute node",
		Run: a.run("start-vms", func(r *actions.Runner, _ []string) (cli.JMap, error) {
			return r.StartVMs(lifecycle)
		}),
	}
	for _, cmd := range []*cobra.Command{cmdStop, cmdStart} {
		cmd.Flags().BoolVar(&lifecycle.ReallyMeanIt, "i-really-mean-it", false, "confirm the action")
		cmd.Flags().StringVar(&lifecycle.ComputeNode, "compute-node", "", "compute node name as registered with the cloud")
	}
	cmdStart.Flags().BoolVar(&lifecycle.ForceAll, "force-all", false, "start every stopped VM on the node")

	var create actions.CreateParams
	cmdCreate := &cobra.Command{
		Use:   "create-test-instances",
		Short: "Boot a test instance on each node",
		Run: a.run("create-test-instances", func(r *actions.Runner, _ []string) (cli.JMap, error) {
			create.Nodes = nodeList(create.Nodes)
			return r.CreateTestInstances(create)
		}),
	}
	cmdCreate.Flags().StringVar(&create.Nodes, "nodes", "", "comma separated compute nodes, - reads stdin")
	cmdCreate.Flags().StringVar(&create.PhysNet, "physnet", "", "physical network for an additional SR-IOV port")
	cmdCreate.Flags().IntVar(&create.VCPUs, "vcpus", 0, "flavor vcpus")
	cmdCreate.Flags().IntVar(&create.RAM, "ram", 0, "flavor ram in MB")
	cmdCreate.Flags().IntVar(&create.Disk, "disk", 0, "flavor disk in GB")
	cmdCreate.Flags().BoolVar(&create.VNFSpecs, "vnfspecs", false, "pin cpus and use huge pages")
	cmdCreate.Flags().StringVar(&create.KeyName, "key-name", "", "key pair to inject")

	var del actions.DeleteParams
	cmdDelete := &cobra.Command{
		Use:   "delete-test-instances",
		Short: "Delete test instances on the given nodes",
		Run: a.run("delete-test-instances", func(r *actions.Runner, _ []string) (cli.JMap, error) {
			del.Nodes = nodeList(del.Nodes)
			return r.DeleteTestInstances(del)
		}),
	}
	cmdDelete.Flags().StringVar(&del.Nodes, "nodes", "", "comma separated compute nodes, - reads stdin")
	cmdDelete.Flags().StringVar(&del.Pattern, "pattern", "", "instance name pattern, defaults to the name prefix")

	cmdConnectivity := &cobra.Command{
		Use:   "test-connectivity [<instance>]",
		Short: "Ping and probe ssh of test instances",
		Args:  cobra.MaximumNArgs(1),
		Run: a.run("test-connectivity", func(r *actions.Runner, args []string) (cli.JMap, error) {
			return r.TestConnectivity(instanceArg(args))
		}),
	}

	cmdSSH := &cobra.Command{
		Use:   "get-ssh-cmd [<instance>]",
		Short: "Print ssh command lines for test instances",
		Args:  cobra.MaximumNArgs(1),
		Run: a.run("get-ssh-cmd", func(r *actions.Runner, args []string) (cli.JMap, error) {
			return r.GetSSHCmd(instanceArg(args))
		}),
	}

	cmdStopped := &cobra.Command{
		Use:   "stopped-vms",
		Short: "List the VMs recorded by stop-vms per compute node",
		Run: func(cmd *cobra.Command, _ []string) {
			defer a.d.Run()

			sets, err := a.runner().StoppedVMs()
			if err != nil {
				a.fatal(err, "failed to read stopped VMs")
			}
			nodes := cli.JMapSlice{}
			for node, ids := range sets {
				nodes = append(nodes, cli.JMap{"id": node, "stopped-vms": ids})
			}
			sort.Sort(nodes)
			for _, n := range nodes {
				if err := n.Print(cmd.OutOrStdout(), a.format); err != nil {
					a.fatal(err, "failed to print result")
				}
			}
		},
	}

	root.AddCommand(cmdConfigure, cmdStop, cmdStart, cmdCreate, cmdDelete, cmdConnectivity, cmdSSH, cmdStopped)
	if err := root.Execute(); err != nil {
		a.d.Exit(1)
	}
}
