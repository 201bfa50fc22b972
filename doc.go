/*
Package cloudsupport provides primitives for operating disposable test
instances on an OpenStack cloud and for safely draining compute nodes.

The package talks to the cloud only through a Driver (list, stop, start) or a
Provisioner (a Driver that can also build networks, flavors and servers).
pkg/openstack implements both on top of gophercloud; StubDriver is an
in-memory implementation used by tests.

# Data Model

A Hypervisor is a compute node as registered with the compute service. Its
status is either enabled or disabled.

A Server is a virtual machine. It runs on a single compute node and carries
its last update time, which is used to find stale test instances.

StopAll stops every ACTIVE server on a disabled compute node and reports which
servers were stopped and which failed. The caller keeps the stopped ids and
hands them back to StartAll, which starts only those servers (or every SHUTOFF
server when forced). The stored ids are single use.

ClassifyStale buckets test instances by age into critical and warning sets
for the stale server monitoring check.

Test instances are booted in a dedicated host aggregate with a dedicated
network, flavor and security group, all created on demand.
*/
package cloudsupport
