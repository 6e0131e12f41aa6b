package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := parseDate("2020-12-03")
	require.NoError(t, err)
	assert.Equal(t, "2020-12-03", d.Format(dateFormat))

	_, err = parseDate("12/03/2020")
	assert.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	t.Setenv("SOURCE_BUCKETS", "feed-bucket/intel")
	t.Setenv("EVENT_TAGS", "tlp:white")
	t.Setenv("EVENT_TABLE_NAME", "")

	out := &bytes.Buffer{}
	cmd := rootCommand()
	cmd.SetOut(out)
	cmd.SetArgs([]string{"config", "--date", "2020-12-03"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), `"date": "2020-12-03"`)
	assert.Contains(t, out.String(), `"date_prefix": "2020-12-03/"`)
	assert.Contains(t, out.String(), `"bucket": "feed-bucket"`)
	assert.Contains(t, out.String(), `"prefix": "intel"`)
	assert.Contains(t, out.String(), `"info": "Daily S3 Threat Feed - 2020-12-03"`)
	assert.Contains(t, out.String(), `"threat_level": 2`)
	assert.Contains(t, out.String(), `"tags": [`)
	assert.NotContains(t, out.String(), "DatePrefix")
}

func TestPublishCommandWithoutMISP(t *testing.T) {
	t.Setenv("SOURCE_BUCKETS", "feed-bucket")
	t.Setenv("MISP_URL", "")
	t.Setenv("MISP_KEY", "")
	t.Setenv("SECRETS_ARN", "")
	t.Setenv("EVENT_TABLE_NAME", "")

	cmd := rootCommand()
	cmd.SetArgs([]string{"publish", "--date", "2020-12-03"})
	assert.Error(t, cmd.Execute())
}
