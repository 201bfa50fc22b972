package cloudsupport_test

import (
	"testing"
	"time"

	"github.com/canonical/cloudsupport"
	"github.com/canonical/cloudsupport/internal/tests/common"
	"github.com/stretchr/testify/suite"
)

type StaleSuite struct {
	common.Suite
	Now time.Time
}

func TestStale(t *testing.T) {
	suite.Run(t, new(StaleSuite))
}

func (s *StaleSuite) SetupTest() {
	s.Suite.SetupTest()
	s.Now = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
}

func (s *StaleSuite) server(name string, age time.Duration) *cloudsupport.Server {
	return &cloudsupport.Server{
		ID:        name + "-id",
		Name:      name,
		UpdatedAt: s.Now.Add(-age).Format(cloudsupport.UpdatedLayout),
	}
}

func (s *StaleSuite) TestClassifyStaleThresholds() {
	day := 24 * time.Hour
	tests := []struct {
		description string
		age         time.Duration
		expected    cloudsupport.Severity
	}{
		{"fresh", time.Hour, cloudsupport.SeverityOK},
		{"exactly warn days", 7 * day, cloudsupport.SeverityOK},
		{"just under a day over warn", 8*day - time.Second, cloudsupport.SeverityOK},
		{"one day over warn", 8 * day, cloudsupport.SeverityWarning},
		{"exactly crit days", 14 * day, cloudsupport.SeverityWarning},
		{"one day over crit", 15 * day, cloudsupport.SeverityCritical},
		{"ancient", 400 * day, cloudsupport.SeverityCritical},
		{"updated in the future", -day, cloudsupport.SeverityOK},
	}

	for _, test := range tests {
		msg := common.TestMsgFunc(test.description)
		servers := cloudsupport.Servers{s.server("test-a", test.age)}
		report, err := cloudsupport.ClassifyStale(servers, "test", 7, 14, s.Now, nil)
		s.Require().NoError(err, msg("should not error"))
		s.Equal(test.expected, report.Severity(), msg("should have expected severity"))
		s.True(len(report.Critical)+len(report.Warning) <= 1, msg("should be in at most one bucket"))
	}
}

func (s *StaleSuite) TestClassifyStalePrefix() {
	day := 24 * time.Hour
	servers := cloudsupport.Servers{
		s.server("cloudsupport-test-1", 20*day),
		s.server("xcloudsupport-test-2", 20*day),
		s.server("other", 20*day),
		s.server("cloudsupport-test-3", 10*day),
	}

	report, err := cloudsupport.ClassifyStale(servers, "cloudsupport-test", 7, 14, s.Now, nil)
	s.Require().NoError(err)
	s.Equal([]string{"cloudsupport-test-1-id"}, report.Critical.IDs())
	s.Equal([]string{"cloudsupport-test-3-id"}, report.Warning.IDs())
}

func (s *StaleSuite) TestClassifyStaleIgnored() {
	day := 24 * time.Hour
	servers := cloudsupport.Servers{
		s.server("test-1", 20*day),
		s.server("test-2", 20*day),
	}

	report, err := cloudsupport.ClassifyStale(servers, "test", 7, 14, s.Now, []string{"test-1-id", "unknown"})
	s.Require().NoError(err)
	s.Equal([]string{"test-2-id"}, report.Critical.IDs())
}

func (s *StaleSuite) TestClassifyStaleBadTimestamp() {
	servers := cloudsupport.Servers{{ID: "x", Name: "test-x", UpdatedAt: "yesterday"}}
	_, err := cloudsupport.ClassifyStale(servers, "test", 7, 14, s.Now, nil)
	s.Error(err)
}

func (s *StaleSuite) TestReportString() {
	day := 24 * time.Hour
	tests := []struct {
		description string
		servers     cloudsupport.Servers
		expected    string
	}{
		{"none", cloudsupport.Servers{}, "OK: No stale instances found."},
		{"warning only", cloudsupport.Servers{s.server("t-1", 9*day), s.server("t-2", 10*day)},
			"WARNING: 2 test servers older than 7 days. Check and delete the following instances: t-1-id,t-2-id"},
		{"critical only", cloudsupport.Servers{s.server("t-1", 30*day)},
			"CRITICAL: 1 test servers older than 14 days. Check and delete the following instances: t-1-id"},
		{"both", cloudsupport.Servers{s.server("t-1", 9*day), s.server("t-2", 30*day)},
			"CRITICAL: 1 test servers older than 14 days. Check and delete the following instances: t-2-id " +
				"WARNING: 1 test servers older than 7 days. Check and delete the following instances: t-1-id"},
	}

	for _, test := range tests {
		msg := common.TestMsgFunc(test.description)
		report, err := cloudsupport.ClassifyStale(test.servers, "t-", 7, 14, s.Now, nil)
		s.Require().NoError(err, msg("should not error"))
		s.Equal(test.expected, report.String(), msg("should render expected line"))
	}
}

func (s *StaleSuite) TestSeverityExitCode() {
	s.Equal(0, cloudsupport.SeverityOK.ExitCode())
	s.Equal(1, cloudsupport.SeverityWarning.ExitCode())
	s.Equal(2, cloudsupport.SeverityCritical.ExitCode())
	s.Equal(3, cloudsupport.SeverityUnknown.ExitCode())
	s.Equal(3, cloudsupport.Severity(42).ExitCode())
	s.Equal("UNKNOWN", cloudsupport.Severity(42).String())
}

func (s *StaleSuite) TestStaleServers() {
	now := time.Now().UTC()
	crit := s.NewAgedServer("cloudsupport-test-old", 30, now)
	warn := s.NewAgedServer("cloudsupport-test-older-than-a-week", 10, now)
	s.NewAgedServer("cloudsupport-test-new", 1, now)
	s.NewAgedServer("production-db", 300, now)

	report, err := s.Context.StaleServers("cloudsupport-test", 7, 14, nil)
	s.Require().NoError(err)
	s.Equal([]string{crit.ID}, report.Critical.IDs())
	s.Equal([]string{warn.ID}, report.Warning.IDs())
	s.Equal(cloudsupport.SeverityCritical, report.Severity())
}
