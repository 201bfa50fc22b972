package openstack

import (
	"errors"
	"net/url"
	"testing"

	"github.com/canonical/cloudsupport"
	"github.com/gophercloud/gophercloud"
	"github.com/stretchr/testify/suite"
)

type ClassifySuite struct {
	suite.Suite
}

func TestClassify(t *testing.T) {
	suite.Run(t, new(ClassifySuite))
}

func unexpected(code int) gophercloud.ErrUnexpectedResponseCode {
	return gophercloud.ErrUnexpectedResponseCode{
		Method:   "POST",
		URL:      "https://nova.example.com/v2.1/servers/abc/action",
		Expected: []int{202},
		Actual:   code,
	}
}

func (s *ClassifySuite) TestClassify() {
	tests := []struct {
		description string
		err         error
		transient   bool
	}{
		{"unauthorized", gophercloud.ErrDefault401{ErrUnexpectedResponseCode: unexpected(401)}, false},
		{"forbidden", gophercloud.ErrDefault403{ErrUnexpectedResponseCode: unexpected(403)}, false},
		{"conflict", gophercloud.ErrDefault409{ErrUnexpectedResponseCode: unexpected(409)}, true},
		{"server error", gophercloud.ErrDefault500{ErrUnexpectedResponseCode: unexpected(500)}, true},
		{"unexpected code", unexpected(418), true},
		{"network", &url.Error{Op: "Post", URL: "https://nova", Err: errors.New("connection refused")}, true},
		{"other", errors.New("malformed body"), false},
	}

	for _, test := range tests {
		err := classify("stop", "abc", test.err)
		s.Require().Error(err, test.description)
		s.Equal(test.transient, cloudsupport.IsTransient(err), test.description)
		if !test.transient {
			var fatal *cloudsupport.FatalDriverError
			s.True(errors.As(err, &fatal), test.description)
		}
	}

	s.NoError(classify("stop", "abc", nil))
}

func (s *ClassifySuite) TestIsNotFound() {
	s.True(isNotFound(gophercloud.ErrDefault404{ErrUnexpectedResponseCode: unexpected(404)}))
	s.False(isNotFound(gophercloud.ErrDefault409{ErrUnexpectedResponseCode: unexpected(409)}))
	s.False(isNotFound(errors.New("404")))
}
