// Package client provides a typed gRPC client for the attachment signing
// service. It wraps connection management, authentication metadata and the
// conversion between mails and their wire form, so integrators can hand a mail
// to the service and get the signed copy back.
package client
