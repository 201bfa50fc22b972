package cloudsupport

// Hypervisor and server states reported by the compute API
const (
	HypervisorEnabled  = "enabled"
	HypervisorDisabled = "disabled"

	ServerActive  = "ACTIVE"
	ServerShutoff = "SHUTOFF"
	ServerError   = "ERROR"
)

type (
	// Driver is the set of compute operations the lifecycle controller and
	// the stale scanner need from a cloud. Implementations return a
	// *TransientCloudError for failures that only affect a single server;
	// every other error aborts the calling operation.
	Driver interface {
		ListHypervisors() (Hypervisors, error)
		ListServers(ServerFilter) (Servers, error)
		StopServer(string) error
		StartServer(string) error
	}

	// ServerFilter narrows a server listing. Empty fields are not applied.
	// Name is a regular expression evaluated by the cloud.
	ServerFilter struct {
		Host       string
		AllTenants bool
		Status     string
		Name       string
	}
)
