package cloudsupport_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/canonical/cloudsupport"
	"github.com/canonical/cloudsupport/internal/tests/common"
	"github.com/canonical/cloudsupport/testhelper"
	"github.com/stretchr/testify/suite"
)

type TestInstanceSuite struct {
	common.Suite
	Request cloudsupport.TestInstanceRequest
}

func TestTestInstance(t *testing.T) {
	suite.Run(t, new(TestInstanceSuite))
}

func (s *TestInstanceSuite) SetupTest() {
	s.Suite.SetupTest()
	testhelper.NewTestCloud(s.Driver, "focal", "node-1", "node-2")
	s.Request = cloudsupport.TestInstanceRequest{
		Nodes:      []string{"node-1", "node-2"},
		Image:      "focal",
		NamePrefix: "cloudsupport-test",
	}
}

func (s *TestInstanceSuite) TestTestInstanceName() {
	t := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	s.Equal("pre-2024-05-06T0708", cloudsupport.TestInstanceName("pre", t))
}

func (s *TestInstanceSuite) TestEnsureHostAggregate() {
	agg, err := s.Context.EnsureHostAggregate(cloudsupport.TestAggregate, []string{"node-1"})
	s.Require().NoError(err)
	s.Equal([]string{"node-1"}, agg.Hosts)
	s.Equal("true", s.Driver.Aggregate(cloudsupport.TestAggregate).Metadata[cloudsupport.TestAggregate])

	agg2, err := s.Context.EnsureHostAggregate(cloudsupport.TestAggregate, []string{"node-2"})
	s.Require().NoError(err)
	s.Equal(agg.ID, agg2.ID)
	s.Equal([]string{"node-2"}, s.Driver.Aggregate(cloudsupport.TestAggregate).Hosts)
}

func (s *TestInstanceSuite) TestEnsureSecurityGroup() {
	sg, err := s.Context.EnsureSecurityGroup(cloudsupport.TestSecurityGroup, nil)
	s.Require().NoError(err)

	again, err := s.Context.EnsureSecurityGroup(cloudsupport.TestSecurityGroup, nil)
	s.Require().NoError(err)
	s.Equal(sg.ID, again.ID)

	creates := 0
	for _, call := range s.Driver.Calls() {
		if call == "create-secgroup:"+cloudsupport.TestSecurityGroup {
			creates++
		}
	}
	s.Equal(1, creates)
}

func (s *TestInstanceSuite) TestCreateTestInstances() {
	results, err := s.Context.CreateTestInstances(s.Request)
	s.Require().NoError(err)
	s.Len(results, 2)
	s.False(results.Failed())

	for _, r := range results {
		s.Equal(cloudsupport.ResultSuccess, r.Status)
		srv := s.Driver.Server(r.ID)
		s.Require().NotNil(srv)
		s.True(strings.HasPrefix(srv.Name, "cloudsupport-test-"))
		s.NotEmpty(srv.Address(cloudsupport.TestNetwork))
		s.Equal([]string{cloudsupport.TestSecurityGroup}, s.Driver.SecurityGroupsOf(r.ID))
	}
	s.NotEqual(s.Driver.Server(results[0].ID).Host, s.Driver.Server(results[1].ID).Host)
}

func (s *TestInstanceSuite) TestCreateTestInstancesCount() {
	s.Request.Count = 3
	s.Request.PhysNet = "physnet1"
	results, err := s.Context.CreateTestInstances(s.Request)
	s.Require().NoError(err)
	s.Len(results, 3)

	ports := 0
	for _, call := range s.Driver.Calls() {
		if strings.HasPrefix(call, "create-port:") {
			ports++
		}
	}
	s.Equal(6, ports)
}

func (s *TestInstanceSuite) TestCreateTestInstancesMissingImage() {
	s.Request.Image = "nope"
	results, err := s.Context.CreateTestInstances(s.Request)
	s.Require().NoError(err)
	s.Len(results, 1)
	s.True(results.Failed())
	s.Contains(results[0].Detail, "image not found")
}

func (s *TestInstanceSuite) TestCreateTestInstancesNetworkFault() {
	s.Driver.FailOn("create-network", cloudsupport.TestNetwork, errors.New("quota exceeded"))
	results, err := s.Context.CreateTestInstances(s.Request)
	s.Require().NoError(err)
	s.Len(results, 1)
	s.Equal(cloudsupport.ResultError, results[0].Status)
	s.Contains(results[0].Detail, "quota exceeded")
}

func (s *TestInstanceSuite) TestCreateTestInstancesSpawnFault() {
	s.Driver.FailOn("wait", "", errors.New("server went to ERROR"))
	results, err := s.Context.CreateTestInstances(s.Request)
	s.Require().NoError(err)
	s.Len(results, 2)
	for _, r := range results {
		s.Equal(cloudsupport.ResultError, r.Status)
		s.NotEmpty(r.ID)
		s.Empty(s.Driver.SecurityGroupsOf(r.ID))
	}
}

func (s *TestInstanceSuite) TestDeleteTestInstances() {
	keep := s.Driver.AddServer(&cloudsupport.Server{Name: "cloudsupport-test-1", Host: "node-3"})
	other := s.Driver.AddServer(&cloudsupport.Server{Name: "prod-cloudsupport-test", Host: "node-1"})
	del1 := s.Driver.AddServer(&cloudsupport.Server{Name: "cloudsupport-test-2", Host: "node-1"})
	del2 := s.Driver.AddServer(&cloudsupport.Server{Name: "cloudsupport-test-3", Host: "node-2"})

	results, err := s.Context.DeleteTestInstances([]string{"node-1", "node-2"}, "cloudsupport-test")
	s.Require().NoError(err)
	s.Equal(cloudsupport.InstanceResults{
		{Status: cloudsupport.ResultSuccess, ID: del1.ID},
		{Status: cloudsupport.ResultSuccess, ID: del2.ID},
	}, results)
	s.NotNil(s.Driver.Server(keep.ID))
	s.NotNil(s.Driver.Server(other.ID))
	s.Nil(s.Driver.Server(del1.ID))
}

func (s *TestInstanceSuite) TestDeleteTestInstancesErrors() {
	_, err := s.Context.DeleteTestInstances([]string{"node-1"}, "(")
	s.Error(err)

	vm := s.Driver.AddServer(&cloudsupport.Server{Name: "cloudsupport-test-2", Host: "node-1"})
	s.Driver.FailOn("delete", vm.ID, errors.New("conflict"))
	results, err := s.Context.DeleteTestInstances([]string{"node-1"}, "cloudsupport-test")
	s.Error(err)
	s.True(results.Failed())
}

func (s *TestInstanceSuite) TestTestInstances() {
	ids, err := s.Context.TestInstances("abc")
	s.NoError(err)
	s.Equal([]string{"abc"}, ids)

	ids, err = s.Context.TestInstances("")
	s.NoError(err)
	s.Empty(ids)

	vm := s.Driver.AddServer(&cloudsupport.Server{Name: "cloudsupport-test-9"})
	s.Driver.AddServer(&cloudsupport.Server{Name: "other"})
	ids, err = s.Context.TestInstances("")
	s.NoError(err)
	s.Equal([]string{vm.ID}, ids)
}
