package mock

import (
	"io/ioutil"
	"net/http"
	"strings"
)

// HTTPClient records requests and returns same status and body for all of them
type HTTPClient struct {
	Requests []*http.Request
	Bodies   []string
	RespCode int
	RespBody string
}

func (x *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	x.Requests = append(x.Requests, req)

	var body string
	if req.Body != nil {
		raw, err := ioutil.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = string(raw)
	}
	x.Bodies = append(x.Bodies, body)

	return &http.Response{
		StatusCode: x.RespCode,
		Body:       ioutil.NopCloser(strings.NewReader(x.RespBody)),
	}, nil
}
