package service_test

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/m-mizutani/iocfeed/pkg/adaptor"
	"github.com/m-mizutani/iocfeed/pkg/mock"
	"github.com/stretchr/testify/require"
)

const testMISPKey = "test-misp-key"

func gzipBytes(t *testing.T, data string) []byte {
	buf := &bytes.Buffer{}
	wr := gzip.NewWriter(buf)
	_, err := wr.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, wr.Close())
	return buf.Bytes()
}

func newMISP(t *testing.T) (*mock.MISPServer, adaptor.MISPClient) {
	srv := mock.NewMISPServer(testMISPKey)
	t.Cleanup(srv.Close)
	client := adaptor.NewMISPClient(&adaptor.MISPClientArguments{
		URL: srv.URL,
		Key: testMISPKey,
	})
	return srv, client
}
