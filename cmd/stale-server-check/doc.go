/*
stale-server-check is an nrpe plugin reporting test servers that have not been
updated for a number of days.

Usage

	$ stale-server-check -h
	Usage of stale-server-check:
	      --cacert string                  CA certificate of the cloud endpoints
	      --cloud-name string              cloud name in clouds.yaml
	      --clouds-yaml string             clouds.yaml with the cloud credentials (default "/etc/openstack/clouds.yaml")
	      --crit-days int                  days after which a server is reported as critical (default 14)
	      --ignored-servers-uuids string   comma separated list of server ids to ignore
	  -l, --log-level string               log level (default "error")
	      --name-prefix string             name prefix of test servers
	      --textfile string                write prometheus textfile collector metrics to this path
	      --warn-days int                  days after which a server is reported as warning (default 7)

# Output

One line, with the exit code following the nrpe convention: 0 OK, 1 WARNING,
2 CRITICAL, 3 UNKNOWN.

	$ stale-server-check --cloud-name cloud1 --name-prefix cloudsupport-test
	CRITICAL: 1 test servers older than 14 days. Check and delete the following instances: 9e5476bd-a4ec-4653-93d6-72c93aa682ba

Missing or unusable credentials and cloud errors are reported as UNKNOWN.
*/
package main
