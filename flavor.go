package cloudsupport

import (
	log "github.com/sirupsen/logrus"
)

// TestFlavor is the name of the flavor test instances boot with
const TestFlavor = "cloudsupport-test-flavor"

// DefaultFlavor holds the default test flavor sizing
var DefaultFlavor = Flavor{
	Name:  TestFlavor,
	VCPUs: 24,
	RAM:   4096,
	Disk:  4,
}

// FlavorExtraSpecs returns the extra specs of the test flavor. vnfSpecs adds
// dedicated CPU pinning and 1G huge pages.
func FlavorExtraSpecs(vnfSpecs bool) map[string]string {
	specs := map[string]string{
		"aggregate_instance_extra_specs:" + TestAggregate: "true",
	}
	if vnfSpecs {
		specs["hw:cpu_policy"] = "dedicated"
		specs["hw:cpu_thread_policy"] = "require"
		specs["hw:mem_page_size"] = "1048576"
	}
	return specs
}

// EnsureFlavor recreates the named flavor with the given sizing
func (c *Context) EnsureFlavor(name string, vcpus, ram, disk int, vnfSpecs bool) (*Flavor, error) {
	p, err := c.provisioner()
	if err != nil {
		return nil, err
	}

	existing, err := p.FindFlavor(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.WithField("flavor", existing.ID).Info("deleting flavor")
		if err := p.DeleteFlavor(existing.ID); err != nil {
			return nil, err
		}
	}

	f := DefaultFlavor
	f.Name = name
	if vcpus > 0 {
		f.VCPUs = vcpus
	}
	if ram > 0 {
		f.RAM = ram
	}
	if disk > 0 {
		f.Disk = disk
	}
	f.ExtraSpecs = FlavorExtraSpecs(vnfSpecs)

	created, err := p.CreateFlavor(&f)
	if err != nil {
		return nil, err
	}
	log.WithField("flavor", name).Info("created flavor")
	return created, nil
}
