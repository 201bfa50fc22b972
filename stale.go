package cloudsupport

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Severity is a monitoring check status. Its value is the plugin exit code.
type Severity int

// Monitoring check statuses
const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
	SeverityUnknown
)

// Default stale thresholds in days
const (
	DefaultStaleWarnDays = 7
	DefaultStaleCritDays = 14
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ExitCode returns the process exit code for the status
func (s Severity) ExitCode() int {
	if s < SeverityOK || s > SeverityUnknown {
		return int(SeverityUnknown)
	}
	return int(s)
}

// StaleReport holds the result of a stale server scan
type StaleReport struct {
	WarnDays int
	CritDays int
	Critical Servers
	Warning  Servers
}

// ClassifyStale buckets the servers whose name starts with prefix by the
// number of whole days since their last update. A server is critical when
// that age is strictly greater than critDays, otherwise warning when it is
// strictly greater than warnDays. Servers whose id is in ignored are skipped.
func ClassifyStale(servers Servers, prefix string, warnDays, critDays int, now time.Time, ignored []string) (*StaleReport, error) {
	report := &StaleReport{
		WarnDays: warnDays,
		CritDays: critDays,
		Critical: Servers{},
		Warning:  Servers{},
	}

	for _, s := range servers.Without(ignored).WithPrefix(prefix) {
		updated, err := s.Updated()
		if err != nil {
			return nil, fmt.Errorf("server %s has invalid update time %q: %v", s.ID, s.UpdatedAt, err)
		}
		days := int(now.Sub(updated) / (24 * time.Hour))
		switch {
		case days > critDays:
			report.Critical = append(report.Critical, s)
		case days > warnDays:
			report.Warning = append(report.Warning, s)
		}
	}

	return report, nil
}

// StaleServers lists the servers matching prefix and classifies them
func (c *Context) StaleServers(prefix string, warnDays, critDays int, ignored []string) (*StaleReport, error) {
	servers, err := c.driver.ListServers(ServerFilter{
		Name: "^" + regexp.QuoteMeta(prefix),
	})
	if err != nil {
		return nil, err
	}
	return ClassifyStale(servers, prefix, warnDays, critDays, time.Now().UTC(), ignored)
}

// Severity returns the highest status of the report
func (r *StaleReport) Severity() Severity {
	switch {
	case len(r.Critical) > 0:
		return SeverityCritical
	case len(r.Warning) > 0:
		return SeverityWarning
	default:
		return SeverityOK
	}
}

// String renders the report as a single check output line, critical servers
// first
func (r *StaleReport) String() string {
	parts := []string{}
	if len(r.Critical) > 0 {
		parts = append(parts, staleLine(SeverityCritical, r.Critical, r.CritDays))
	}
	if len(r.Warning) > 0 {
		parts = append(parts, staleLine(SeverityWarning, r.Warning, r.WarnDays))
	}
	if len(parts) == 0 {
		return "OK: No stale instances found."
	}
	return strings.Join(parts, " ")
}

func staleLine(sev Severity, servers Servers, days int) string {
	return fmt.Sprintf("%s: %d test servers older than %d days. Check and delete the following instances: %s",
		sev, len(servers), days, strings.Join(servers.IDs(), ","))
}
