package openstack

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

// Credentials identify one cloud's identity endpoint and project.
type Credentials struct {
	AuthURL     string        `json:"auth_url"`
	Username    string        `json:"username"`
	Password    string        `json:"password"`
	ProjectName string        `json:"project_name"`
	DomainName  string        `json:"domain_name"`
	Region      string        `json:"region"`
	CACert      string        `json:"ca_cert"`
	Insecure    bool          `json:"insecure"`
	Retries     int           `json:"retries"`
	Timeout     time.Duration `json:"timeout"`
}

// Clients bundles the service clients of one cloud.
type Clients struct {
	Network      *gophercloud.ServiceClient
	Compute      *gophercloud.ServiceClient
	BlockStorage *gophercloud.ServiceClient
}

// HTTPClient returns an http.Client that retries connection errors and 5xx
// responses with exponential backoff. Retry decisions are logged at debug.
func HTTPClient(creds Credentials, logger *slog.Logger) (*http.Client, error) {
	rc := retryablehttp.NewClient()
	rc.RetryMax = creds.Retries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = retryLogger{logger}

	if creds.Insecure || creds.CACert != "" {
		tlsConfig := &tls.Config{InsecureSkipVerify: creds.Insecure} //nolint:gosec // operator opt-in
		if creds.CACert != "" {
			pem, err := os.ReadFile(creds.CACert)
			if err != nil {
				return nil, errors.Wrap(err, "failed to read CA certificate")
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, errors.Errorf("no certificates found in %s", creds.CACert)
			}
			tlsConfig.RootCAs = pool
		}
		rc.HTTPClient.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsConfig,
		}
	}
	hc := rc.StandardClient()
	hc.Timeout = creds.Timeout
	return hc, nil
}

// Connect authenticates against creds.AuthURL and builds the network,
// compute and block storage clients for creds.Region.
func Connect(ctx context.Context, creds Credentials, logger *slog.Logger) (*Clients, error) {
	provider, err := openstack.NewClient(creds.AuthURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create provider client")
	}
	hc, err := HTTPClient(creds, logger)
	if err != nil {
		return nil, err
	}
	provider.HTTPClient = *hc

	opts := gophercloud.AuthOptions{
		IdentityEndpoint: creds.AuthURL,
		Username:         creds.Username,
		Password:         creds.Password,
		DomainName:       creds.DomainName,
		AllowReauth:      true,
		Scope: &gophercloud.AuthScope{
			ProjectName: creds.ProjectName,
			DomainName:  creds.DomainName,
		},
	}
	if err := openstack.Authenticate(ctx, provider, opts); err != nil {
		return nil, errors.Wrapf(err, "authenticate to %s", creds.AuthURL)
	}

	eo := gophercloud.EndpointOpts{Region: creds.Region}
	network, err := openstack.NewNetworkV2(provider, eo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create network client")
	}
	compute, err := openstack.NewComputeV2(provider, eo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create compute client")
	}
	block, err := openstack.NewBlockStorageV3(provider, eo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create block storage client")
	}
	logger.Info("connected", "auth_url", creds.AuthURL, "region", creds.Region)
	return &Clients{Network: network, Compute: compute, BlockStorage: block}, nil
}

// retryLogger adapts slog to retryablehttp.LeveledLogger, demoting its
// per-request chatter to debug.
type retryLogger struct{ l *slog.Logger }

func (r retryLogger) Error(msg string, kv ...any) { r.l.Warn(msg, kv...) }
func (r retryLogger) Info(msg string, kv ...any)  { r.l.Debug(msg, kv...) }
func (r retryLogger) Debug(msg string, kv ...any) { r.l.Debug(msg, kv...) }
func (r retryLogger) Warn(msg string, kv ...any)  { r.l.Warn(msg, kv...) }
