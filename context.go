package cloudsupport

import (
	"github.com/armon/go-metrics"
)

// Context carries around data/structs needed for operations
type Context struct {
	driver  Driver
	metrics *metrics.Metrics
}

// NewContext creates a Context around a cloud driver. A nil metrics instance
// discards all measurements.
func NewContext(d Driver, m *metrics.Metrics) *Context {
	if m == nil {
		conf := metrics.DefaultConfig("cloudsupport")
		conf.EnableHostname = false
		conf.EnableRuntimeMetrics = false
		m, _ = metrics.New(conf, &metrics.BlackholeSink{})
	}
	return &Context{
		driver:  d,
		metrics: m,
	}
}

// Driver returns the cloud driver the context operates on
func (c *Context) Driver() Driver {
	return c.driver
}

// provisioner returns the driver as a Provisioner if it supports it
func (c *Context) provisioner() (Provisioner, error) {
	p, ok := c.driver.(Provisioner)
	if !ok {
		return nil, ErrNotProvisioner
	}
	return p, nil
}
