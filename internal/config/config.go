// Package config loads the unit configuration and renders the credential
// files and the monitoring check definition derived from it.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/canonical/cloudsupport"
	"github.com/canonical/cloudsupport/internal/cli"
	"github.com/canonical/cloudsupport/pkg/openstack"
	"github.com/hashicorp/go-multierror"
	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Defaults for unset options
const (
	DefaultCloudName  = "cloud1"
	DefaultNamePrefix = "cloudsupport-test"
	DefaultImage      = "cirros"
)

// NRPE check identity
const (
	CheckShortname   = "stale_server"
	CheckDescription = "Check for stale test servers"
)

// Config holds the unit options
type Config struct {
	CloudsYAML        string `yaml:"clouds-yaml"`
	SSLCA             string `yaml:"ssl-ca"`
	SSHKey            string `yaml:"ssh-key"`
	CloudName         string `yaml:"cloud-name"`
	NamePrefix        string `yaml:"name-prefix"`
	Image             string `yaml:"image"`
	CIDR              string `yaml:"cidr"`
	VCPUs             int    `yaml:"vcpus"`
	RAM               int    `yaml:"ram"`
	Disk              int    `yaml:"disk"`
	KeyName           string `yaml:"key-name"`
	StaleServerCheck  bool   `yaml:"stale-server-check"`
	StaleWarnDays     int    `yaml:"stale-warn-days"`
	StaleCritDays     int    `yaml:"stale-crit-days"`
	StaleIgnoredUUIDs string `yaml:"stale-ignored-uuids"`
}

// Default returns a Config with every option at its default
func Default() *Config {
	return &Config{
		CloudName:     DefaultCloudName,
		NamePrefix:    DefaultNamePrefix,
		Image:         DefaultImage,
		CIDR:          cloudsupport.TestCIDR,
		VCPUs:         cloudsupport.DefaultFlavor.VCPUs,
		RAM:           cloudsupport.DefaultFlavor.RAM,
		Disk:          cloudsupport.DefaultFlavor.Disk,
		StaleWarnDays: cloudsupport.DefaultStaleWarnDays,
		StaleCritDays: cloudsupport.DefaultStaleCritDays,
	}
}

// Load reads a YAML options file over the defaults
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &cloudsupport.ConfigError{Path: path, Reason: "not found"}
		}
		return nil, &cloudsupport.ConfigError{Path: path, Reason: "unreadable", Err: err}
	}
	return Parse(buf)
}

// Parse parses YAML options over the defaults
func Parse(buf []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, &cloudsupport.ConfigError{Reason: "invalid options", Err: err}
	}
	return c, nil
}

// IgnoredUUIDs returns the server ids the stale check skips
func (c *Config) IgnoredUUIDs() []string {
	return cli.SplitList(c.StaleIgnoredUUIDs)
}

// Validate checks every option and reports all problems at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.CloudsYAML == "" {
		result = multierror.Append(result, errors.New("clouds-yaml is not set"))
	} else {
		clouds, err := openstack.ParseClouds([]byte(c.CloudsYAML))
		if err == nil {
			_, err = clouds.Cloud(c.CloudName)
		}
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.CloudName == "" {
		result = multierror.Append(result, errors.New("cloud-name is not set"))
	}
	if c.NamePrefix == "" {
		result = multierror.Append(result, errors.New("name-prefix is not set"))
	}
	if _, _, err := net.ParseCIDR(c.CIDR); err != nil {
		result = multierror.Append(result, fmt.Errorf("cidr: %w", err))
	}
	for name, v := range map[string]int{"vcpus": c.VCPUs, "ram": c.RAM, "disk": c.Disk} {
		if v <= 0 {
			result = multierror.Append(result, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if c.StaleWarnDays < 0 {
		result = multierror.Append(result, fmt.Errorf("stale-warn-days must not be negative, got %d", c.StaleWarnDays))
	}
	if c.StaleCritDays < c.StaleWarnDays {
		result = multierror.Append(result, fmt.Errorf("stale-crit-days %d is below stale-warn-days %d", c.StaleCritDays, c.StaleWarnDays))
	}
	for _, id := range c.IgnoredUUIDs() {
		if uuid.Parse(id) == nil {
			result = multierror.Append(result, fmt.Errorf("stale-ignored-uuids: invalid id %q", id))
		}
	}

	return result.ErrorOrNil()
}

// Paths locate the rendered files
type Paths struct {
	CloudsYAML  string
	CACert      string
	SSHKey      string
	NRPEDir     string
	CheckScript string
}

// DefaultPaths returns the standard locations, with the ssh key under home
func DefaultPaths(home string) Paths {
	return Paths{
		CloudsYAML:  openstack.DefaultCloudsFile,
		CACert:      openstack.DefaultCACert,
		SSHKey:      filepath.Join(home, ".ssh", "id_rsa_cloudsupport"),
		NRPEDir:     "/etc/nagios/nrpe.d",
		CheckScript: "/usr/local/lib/nagios/plugins/stale-server-check",
	}
}

// NRPEFile returns the path of the check definition
func (p Paths) NRPEFile() string {
	return filepath.Join(p.NRPEDir, "check_"+CheckShortname+".cfg")
}

// CheckCommand returns the command line nrpe runs for the stale check
func (c *Config) CheckCommand(script string) string {
	cmd := fmt.Sprintf("%s --cloud-name %s --name-prefix %s --warn-days %d --crit-days %d",
		script, c.CloudName, c.NamePrefix, c.StaleWarnDays, c.StaleCritDays)
	if c.StaleIgnoredUUIDs != "" {
		cmd += " --ignored-servers-uuids " + c.StaleIgnoredUUIDs
	}
	return cmd
}

// NRPECheck returns the check definition file contents
func (c *Config) NRPECheck(script string) string {
	return fmt.Sprintf("# check %s\n# %s\ncommand[check_%s]=%s\n",
		CheckShortname, CheckDescription, CheckShortname, c.CheckCommand(script))
}

// Render writes the credential files and installs or removes the stale
// check definition. Credential files are skipped while clouds-yaml is unset.
func (c *Config) Render(paths Paths) error {
	var result *multierror.Error

	if c.CloudsYAML != "" {
		// readable by the nrpe user running the check
		if err := writeFile(paths.CloudsYAML, c.CloudsYAML, 0604, 0755); err != nil {
			result = multierror.Append(result, err)
		}
		if c.SSLCA != "" {
			if err := writeFile(paths.CACert, c.SSLCA, 0604, 0755); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	if c.SSHKey != "" {
		if err := writeFile(paths.SSHKey, c.SSHKey, 0600, 0700); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if c.StaleServerCheck {
		if err := writeFile(paths.NRPEFile(), c.NRPECheck(paths.CheckScript), 0644, 0755); err != nil {
			result = multierror.Append(result, err)
		}
	} else if err := os.Remove(paths.NRPEFile()); err != nil && !os.IsNotExist(err) {
		result = multierror.Append(result, err)
	} else if err == nil {
		log.WithField("path", paths.NRPEFile()).Info("removed stale server check")
	}

	return result.ErrorOrNil()
}

// writeFile writes content and forces mode, creating parent directories
func writeFile(path, content string, mode, dirMode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return err
	}
	if err := os.Chmod(path, mode); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"path": path,
		"mode": fmt.Sprintf("%#o", mode),
	}).Debug("wrote file")
	return nil
}
