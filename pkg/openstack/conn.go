package openstack

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"os"
	"sync"

	"github.com/canonical/cloudsupport"
	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	log "github.com/sirupsen/logrus"
)

type (
	// Options locate the credentials used to open connections
	Options struct {
		CloudsFile string
		CACert     string
	}

	// Conn is an authenticated session with one cloud
	Conn struct {
		Name      string
		transport *http.Transport
		driver    *Driver
	}

	// Cache keeps one Conn per cloud name. Connections are reused until
	// Close is called.
	Cache struct {
		opts  Options
		mu    sync.Mutex
		conns map[string]*Conn
	}
)

// NewCache creates an empty connection cache
func NewCache(opts Options) *Cache {
	if opts.CloudsFile == "" {
		opts.CloudsFile = DefaultCloudsFile
	}
	return &Cache{
		opts:  opts,
		conns: make(map[string]*Conn),
	}
}

// Get returns the cached connection for the cloud, connecting if needed
func (c *Cache) Get(name string) (*Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[name]; ok {
		return conn, nil
	}

	conn, err := Connect(name, c.opts)
	if err != nil {
		return nil, err
	}
	c.conns[name] = conn
	return conn, nil
}

// Close closes every cached connection
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, conn := range c.conns {
		conn.Close()
		delete(c.conns, name)
	}
}

// Connect authenticates against the named cloud of the clouds file and
// creates compute, network and image clients
func Connect(name string, opts Options) (*Conn, error) {
	clouds, err := LoadClouds(opts.CloudsFile)
	if err != nil {
		return nil, err
	}
	cloud, err := clouds.Cloud(name)
	if err != nil {
		return nil, err
	}

	pool, err := caPool(cloud, opts.CACert)
	if err != nil {
		return nil, err
	}

	authOpts := AuthOptions(cloud)
	provider, err := openstack.NewClient(authOpts.IdentityEndpoint)
	if err != nil {
		return nil, &cloudsupport.FatalDriverError{Op: "connect", Err: err}
	}
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{RootCAs: pool},
	}
	provider.HTTPClient = http.Client{Transport: transport}

	if err := openstack.Authenticate(provider, authOpts); err != nil {
		return nil, &cloudsupport.FatalDriverError{Op: "authenticate", Err: err}
	}

	endpoint := gophercloud.EndpointOpts{Region: cloud.RegionName}
	if cloud.Interface != "" {
		endpoint.Availability = gophercloud.Availability(cloud.Interface)
	}

	compute, err := openstack.NewComputeV2(provider, endpoint)
	if err != nil {
		return nil, &cloudsupport.FatalDriverError{Op: "compute endpoint", Err: err}
	}
	network, err := openstack.NewNetworkV2(provider, endpoint)
	if err != nil {
		return nil, &cloudsupport.FatalDriverError{Op: "network endpoint", Err: err}
	}
	image, err := openstack.NewImageServiceV2(provider, endpoint)
	if err != nil {
		return nil, &cloudsupport.FatalDriverError{Op: "image endpoint", Err: err}
	}

	log.WithFields(log.Fields{
		"cloud":  name,
		"region": cloud.RegionName,
	}).Debug("connected")

	return &Conn{
		Name:      name,
		transport: transport,
		driver:    NewDriver(compute, network, image),
	}, nil
}

// Driver returns the connection's cloud driver
func (c *Conn) Driver() *Driver {
	return c.driver
}

// Close releases idle HTTP connections
func (c *Conn) Close() {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
}

// AuthOptions builds gophercloud auth options from a cloud's auth section
func AuthOptions(cloud *Cloud) gophercloud.AuthOptions {
	env := cloud.Env()
	opts := gophercloud.AuthOptions{
		IdentityEndpoint:            env["OS_AUTH_URL"],
		Username:                    env["OS_USERNAME"],
		UserID:                      env["OS_USER_ID"],
		Password:                    env["OS_PASSWORD"],
		DomainName:                  env["OS_USER_DOMAIN_NAME"],
		DomainID:                    env["OS_USER_DOMAIN_ID"],
		ApplicationCredentialID:     env["OS_APPLICATION_CREDENTIAL_ID"],
		ApplicationCredentialName:   env["OS_APPLICATION_CREDENTIAL_NAME"],
		ApplicationCredentialSecret: env["OS_APPLICATION_CREDENTIAL_SECRET"],
		AllowReauth:                 true,
	}
	if opts.DomainName == "" {
		opts.DomainName = env["OS_DOMAIN_NAME"]
	}

	if project := env["OS_PROJECT_NAME"]; project != "" {
		scope := &gophercloud.AuthScope{
			ProjectName: project,
			DomainName:  env["OS_PROJECT_DOMAIN_NAME"],
			DomainID:    env["OS_PROJECT_DOMAIN_ID"],
		}
		if scope.DomainName == "" && scope.DomainID == "" {
			scope.DomainName = opts.DomainName
		}
		opts.Scope = scope
	} else if id := env["OS_PROJECT_ID"]; id != "" {
		opts.Scope = &gophercloud.AuthScope{ProjectID: id}
	}
	return opts
}

// caPool returns the system pool extended with the cloud's CA. The CA is
// taken from the clouds file, then the argument, then OS_CACERT and finally
// the default location. A missing default CA is not an error.
func caPool(cloud *Cloud, caCert string) (*x509.CertPool, error) {
	path := cloud.CACert
	if path == "" {
		path = caCert
	}
	if path == "" {
		path = os.Getenv("OS_CACERT")
	}
	explicit := path != ""
	if !explicit {
		path = DefaultCACert
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	pem, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return pool, nil
		}
		return nil, &cloudsupport.ConfigError{Path: path, Reason: "unreadable", Err: err}
	}
	if !pool.AppendCertsFromPEM(pem) {
		if !explicit {
			return pool, nil
		}
		return nil, &cloudsupport.ConfigError{Path: path, Reason: "has no certificates"}
	}
	return pool, nil
}
