// Package openstack implements the cloud-facing clients on gophercloud:
// networks, subnets and ports for the sync endpoints, volumes and servers
// for the driver, and flavors for flavor sync.
//
// HTTP traffic goes through a retrying client. Failures are classified so
// callers can test for not-found and transient errors with errors.Is.
package openstack
