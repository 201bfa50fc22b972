package openstack

import (
	"fmt"
	"os"
	"strings"

	"github.com/canonical/cloudsupport"
	"gopkg.in/yaml.v3"
)

// Default credential locations
const (
	DefaultCloudsFile = "/etc/openstack/clouds.yaml"
	DefaultCACert     = "/etc/openstack/ssl_ca.crt"
)

type (
	// CloudsFile is a clouds.yaml document
	CloudsFile struct {
		Clouds map[string]*Cloud `yaml:"clouds"`
	}

	// Cloud is one entry of a clouds.yaml document
	Cloud struct {
		Auth       map[string]interface{} `yaml:"auth"`
		RegionName string                 `yaml:"region_name,omitempty"`
		Interface  string                 `yaml:"interface,omitempty"`
		CACert     string                 `yaml:"cacert,omitempty"`
	}
)

// LoadClouds reads and parses a clouds.yaml file
func LoadClouds(path string) (*CloudsFile, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &cloudsupport.ConfigError{Path: path, Reason: "not found"}
		}
		return nil, &cloudsupport.ConfigError{Path: path, Reason: "unreadable", Err: err}
	}
	return ParseClouds(buf)
}

// ParseClouds parses a clouds.yaml document
func ParseClouds(buf []byte) (*CloudsFile, error) {
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(buf, &raw); err != nil {
		return nil, &cloudsupport.ConfigError{Reason: "clouds.yaml unknown format", Err: err}
	}
	if _, ok := raw["clouds"]; !ok {
		return nil, &cloudsupport.ConfigError{Reason: "clouds.yaml unknown format"}
	}

	f := &CloudsFile{}
	if err := yaml.Unmarshal(buf, f); err != nil {
		return nil, &cloudsupport.ConfigError{Reason: "clouds.yaml unknown format", Err: err}
	}
	return f, nil
}

// Cloud returns the named cloud, which must carry auth information
func (f *CloudsFile) Cloud(name string) (*Cloud, error) {
	c, ok := f.Clouds[name]
	if !ok || c == nil || c.Auth == nil {
		return nil, &cloudsupport.ConfigError{Reason: fmt.Sprintf("%s is missing auth info in clouds.yaml", name)}
	}
	return c, nil
}

// Env returns the cloud's auth settings as OS_ prefixed environment
// variables, e.g. auth_url becomes OS_AUTH_URL
func (c *Cloud) Env() map[string]string {
	env := make(map[string]string, len(c.Auth)+1)
	for k, v := range c.Auth {
		env["OS_"+strings.ToUpper(k)] = fmt.Sprint(v)
	}
	if c.RegionName != "" {
		env["OS_REGION_NAME"] = c.RegionName
	}
	return env
}
