package service_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/iocfeed/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, reader *service.CandidateReader) []string {
	var values []string
	for c := reader.Read(); c != nil; c = reader.Read() {
		values = append(values, c.Value)
	}
	return values
}

func TestExtractor(t *testing.T) {
	t.Run("header row is skipped and every cell is yielded", func(t *testing.T) {
		content := "value,note\nioc1,x\nioc1,y\nioc2,z\n"
		reader := service.NewExtractor(service.HeaderSkip).NewReader(strings.NewReader(content))
		values := readAll(t, reader)
		require.NoError(t, reader.Error())
		assert.Equal(t, []string{"ioc1", "x", "ioc1", "y", "ioc2", "z"}, values)
		assert.Equal(t, 4, reader.Rows())
	})

	t.Run("N data rows are available from N+1 rows", func(t *testing.T) {
		content := "h1\na\nb\nc\n"
		reader := service.NewExtractor(service.HeaderSkip).NewReader(strings.NewReader(content))
		values := readAll(t, reader)
		assert.Equal(t, 3, len(values))
		assert.NotContains(t, values, "h1")
	})

	t.Run("first row is data without header", func(t *testing.T) {
		content := "\ufeff10.0.0.1,example.com\n10.0.0.2\n"
		reader := service.NewExtractor(service.HeaderNone).NewReader(strings.NewReader(content))
		values := readAll(t, reader)
		require.NoError(t, reader.Error())
		assert.Equal(t, []string{"10.0.0.1", "example.com", "10.0.0.2"}, values)
	})

	t.Run("cells are trimmed and empty cells are yielded", func(t *testing.T) {
		content := "a,b,c\n  blue , ,orange\t\n"
		reader := service.NewExtractor(service.HeaderSkip).NewReader(strings.NewReader(content))
		var candidates [][2]int
		var values []string
		for c := reader.Read(); c != nil; c = reader.Read() {
			values = append(values, c.Value)
			candidates = append(candidates, [2]int{c.Row, c.Column})
		}
		require.NoError(t, reader.Error())
		assert.Equal(t, []string{"blue", "", "orange"}, values)
		assert.Equal(t, [][2]int{{2, 1}, {2, 2}, {2, 3}}, candidates)
	})

	t.Run("quoted cells with comma", func(t *testing.T) {
		content := "url,tags\n\"http://example.com/a,b\",\"elf,mips\"\n"
		reader := service.NewExtractor(service.HeaderSkip).NewReader(strings.NewReader(content))
		assert.Equal(t, []string{"http://example.com/a,b", "elf,mips"}, readAll(t, reader))
	})

	t.Run("only header gives no candidate", func(t *testing.T) {
		reader := service.NewExtractor(service.HeaderSkip).NewReader(strings.NewReader("value,note\n"))
		assert.Nil(t, reader.Read())
		assert.NoError(t, reader.Error())
	})

	t.Run("blank first line is the header", func(t *testing.T) {
		reader := service.NewExtractor(service.HeaderSkip).NewReader(strings.NewReader("\nioc1\nioc2\n"))
		var rows []int
		var values []string
		for c := reader.Read(); c != nil; c = reader.Read() {
			values = append(values, c.Value)
			rows = append(rows, c.Row)
		}
		require.NoError(t, reader.Error())
		assert.Equal(t, []string{"ioc1", "ioc2"}, values)
		assert.Equal(t, []int{2, 3}, rows)
	})

	t.Run("blank first line with CRLF is the header", func(t *testing.T) {
		reader := service.NewExtractor(service.HeaderSkip).NewReader(strings.NewReader("\r\nioc1\r\nioc2\r\n"))
		assert.Equal(t, []string{"ioc1", "ioc2"}, readAll(t, reader))
	})

	t.Run("blank first line is skipped without header", func(t *testing.T) {
		reader := service.NewExtractor(service.HeaderNone).NewReader(strings.NewReader("\nioc1\nioc2\n"))
		assert.Equal(t, []string{"ioc1", "ioc2"}, readAll(t, reader))
	})

	t.Run("invalid UTF-8 stops reading with error", func(t *testing.T) {
		content := "h\nok\n\xff\xfe\nnever\n"
		reader := service.NewExtractor(service.HeaderSkip).NewReader(strings.NewReader(content))
		values := readAll(t, reader)
		assert.Equal(t, []string{"ok"}, values)
		assert.Error(t, reader.Error())
		assert.Nil(t, reader.Read())
	})
}

func TestParseHeaderPolicy(t *testing.T) {
	p, err := service.ParseHeaderPolicy("")
	require.NoError(t, err)
	assert.Equal(t, service.HeaderSkip, p)

	p, err = service.ParseHeaderPolicy("None")
	require.NoError(t, err)
	assert.Equal(t, service.HeaderNone, p)

	_, err = service.ParseHeaderPolicy("detect")
	assert.Error(t, err)
}
