package openstack

import (
	"errors"
	"net"
	"net/http"
	"net/url"

	"github.com/canonical/cloudsupport"
	"github.com/gophercloud/gophercloud"
)

type statusCoder interface {
	GetStatusCode() int
}

// classify turns a gophercloud error into a TransientCloudError or a
// FatalDriverError. Authentication failures are always fatal; other API
// errors and network trouble only affect the request that hit them.
func classify(op, id string, err error) error {
	if err == nil {
		return nil
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.GetStatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &cloudsupport.FatalDriverError{Op: op, Err: err}
		default:
			return &cloudsupport.TransientCloudError{Op: op, ID: id, Err: err}
		}
	}

	var (
		urlErr  *url.Error
		netErr  net.Error
		timeout *gophercloud.ErrTimeOut
	)
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.As(err, &timeout) {
		return &cloudsupport.TransientCloudError{Op: op, ID: id, Err: err}
	}

	return &cloudsupport.FatalDriverError{Op: op, Err: err}
}

// isNotFound reports whether err is a 404 from the API
func isNotFound(err error) bool {
	var sc statusCoder
	return errors.As(err, &sc) && sc.GetStatusCode() == http.StatusNotFound
}
