package adaptor

import (
	"crypto/tls"
	"net/http"
	"time"
)

// HTTPClient is interface of http.Client
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns *http.Client. Server certificate is not verified if verifyCert is false.
func NewHTTPClient(verifyCert bool) HTTPClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !verifyCert {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}
	return &http.Client{
		Transport: transport,
		Timeout:   time.Minute,
	}
}
