/*
cloudsupport is the operator command line for cloud maintenance. It stops and
restarts the VMs of a compute node around maintenance, boots and removes test
instances, checks their connectivity and renders the credential files and
monitoring check of the unit.

Usage

	Usage:
	cloudsupport [flags]
	cloudsupport [command]

	Available Commands:
	configure              Write credential files and the stale server check
	stop-vms               Stop every active VM on a disabled compute node
	start-vms              Start the VMs stop-vms stopped on a compute node
	create-test-instances  Boot a test instance on each node
	delete-test-instances  Delete test instances on the given nodes
	test-connectivity      Ping and probe ssh of test instances
	get-ssh-cmd            Print ssh command lines for test instances
	stopped-vms            List the VMs recorded by stop-vms per compute node
	help                   Help about any command

	Flags:
	      --cacert string        CA certificate of the cloud endpoints
	      --cloud-name string    cloud to use instead of the configured one
	      --clouds-yaml string   clouds.yaml with the cloud credentials (default "/etc/openstack/clouds.yaml")
	  -c, --config string        unit configuration file (default "/etc/cloudsupport/config.yaml")
	  -f, --format string        output format (json|yaml) (default "json")
	      --lock-wait duration   how long to wait for a concurrent action to finish
	  -l, --log-level string     log level (default "warn")
	      --ssh-key string       private key for reaching network hosts
	      --state string         state store address (file:// or badger://) (default "file:///var/lib/cloudsupport/state.yaml")
	  -s, --statsd string        statsd address

stop-vms and start-vms require --i-really-mean-it and --compute-node. The ids
stop-vms stopped are kept in the state store, keyed by compute node, until the
next start-vms for that node. Actions touching the state store take an
exclusive lock next to it, so a second concurrent action fails unless
--lock-wait gives it time to wait.

# Output

Results are printed as a single JSON object, or as YAML with --format yaml.

	$ cloudsupport stop-vms --i-really-mean-it --compute-node node-1
	{"failed-to-stop":[],"stopped-vms":["9e5476bd-a4ec-4653-93d6-72c93aa682ba"]}

A failing action prints whatever result it has and exits non-zero.
*/
package main
