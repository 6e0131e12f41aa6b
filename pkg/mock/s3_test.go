package mock_test

import (
	"fmt"
	"io/ioutil"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/m-mizutani/iocfeed/pkg/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockS3(t *testing.T) {
	newS3, client := mock.NewS3Mock()
	s3client, err := newS3("eu-east-0")
	require.NoError(t, err)
	assert.Equal(t, "eu-east-0", client.Region)

	client.Put("test-bucket", "2020-12-03/blue.csv", []byte("five"), "")

	t.Run("Get exiting object", func(t *testing.T) {
		input := &s3.GetObjectInput{
			Bucket: aws.String("test-bucket"),
			Key:    aws.String("2020-12-03/blue.csv"),
		}
		output, err := s3client.GetObject(input)
		require.NoError(t, err)
		data, err := ioutil.ReadAll(output.Body)
		require.NoError(t, err)
		assert.Equal(t, "five", string(data))
	})

	t.Run("Access non-existing object and get error", func(t *testing.T) {
		input := &s3.GetObjectInput{
			Bucket: aws.String("test-bucket"),
			Key:    aws.String("orange"),
		}
		_, err := s3client.GetObject(input)
		require.Error(t, err)
		aerr, ok := err.(awserr.Error)
		require.True(t, ok)
		assert.Equal(t, s3.ErrCodeNoSuchKey, aerr.Code())
	})

	t.Run("List objects in multiple pages", func(t *testing.T) {
		client.PageSize = 2
		for i := 0; i < 5; i++ {
			client.Put("paged-bucket", fmt.Sprintf("2020-12-03/%d.csv", i), []byte("x"), "")
		}
		client.Put("paged-bucket", "2020-12-04/other.csv", []byte("x"), "")

		var keys []string
		pages := 0
		err := s3client.ListObjectsV2Pages(&s3.ListObjectsV2Input{
			Bucket: aws.String("paged-bucket"),
			Prefix: aws.String("2020-12-03/"),
		}, func(output *s3.ListObjectsV2Output, last bool) bool {
			pages++
			for _, obj := range output.Contents {
				keys = append(keys, aws.StringValue(obj.Key))
			}
			return true
		})
		require.NoError(t, err)
		assert.Equal(t, 3, pages)
		assert.Equal(t, 5, len(keys))
		assert.Equal(t, "2020-12-03/0.csv", keys[0])
	})

	t.Run("List non-existing bucket", func(t *testing.T) {
		err := s3client.ListObjectsV2Pages(&s3.ListObjectsV2Input{
			Bucket: aws.String("no-such-bucket"),
		}, func(output *s3.ListObjectsV2Output, last bool) bool { return true })
		require.Error(t, err)
		aerr, ok := err.(awserr.Error)
		require.True(t, ok)
		assert.Equal(t, s3.ErrCodeNoSuchBucket, aerr.Code())
	})
}
