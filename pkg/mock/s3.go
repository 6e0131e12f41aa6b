package mock

import (
	"bytes"
	"io/ioutil"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/m-mizutani/iocfeed/pkg/adaptor"
)

type s3Object struct {
	body         []byte
	encoding     string
	lastModified time.Time
}

// S3Client is in-memory mock of adaptor.S3Client
type S3Client struct {
	Region string

	// GetObjectErrors injects error into GetObject by key
	GetObjectErrors map[string]error
	// GetObjectKeys records keys in order of GetObject calls
	GetObjectKeys []string
	// PageSize is max number of objects in one page of ListObjectsV2Pages
	PageSize int

	buckets map[string]map[string]*s3Object
}

// NewS3Mock returns S3ClientFactory and mock.S3Client that S3ClientFactory returns
func NewS3Mock() (adaptor.S3ClientFactory, *S3Client) {
	client := NewS3Client()
	return func(region string) (adaptor.S3Client, error) {
		client.Region = region
		return client, nil
	}, client
}

// NewS3Client is constructor of mock.S3Client
func NewS3Client() *S3Client {
	return &S3Client{
		GetObjectErrors: make(map[string]error),
		PageSize:        1000,
		buckets:         make(map[string]map[string]*s3Object),
	}
}

// CreateBucket creates an empty bucket
func (x *S3Client) CreateBucket(bucket string) {
	if _, ok := x.buckets[bucket]; !ok {
		x.buckets[bucket] = make(map[string]*s3Object)
	}
}

// Put stores an object. encoding is set to ContentEncoding of GetObjectOutput if not empty.
func (x *S3Client) Put(bucket, key string, body []byte, encoding string) {
	x.CreateBucket(bucket)
	x.buckets[bucket][key] = &s3Object{
		body:         body,
		encoding:     encoding,
		lastModified: time.Now().UTC(),
	}
}

func (x *S3Client) ListObjectsV2Pages(input *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool) error {
	bucket, ok := x.buckets[aws.StringValue(input.Bucket)]
	if !ok {
		return awserr.New(s3.ErrCodeNoSuchBucket, "The specified bucket does not exist", nil)
	}

	prefix := aws.StringValue(input.Prefix)
	var keys []string
	for key := range bucket {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	pageSize := x.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	for i := 0; i < len(keys) || i == 0; i += pageSize {
		e := i + pageSize
		if len(keys) < e {
			e = len(keys)
		}

		output := &s3.ListObjectsV2Output{
			Name:   input.Bucket,
			Prefix: input.Prefix,
		}
		for _, key := range keys[i:e] {
			obj := bucket[key]
			output.Contents = append(output.Contents, &s3.Object{
				Key:          aws.String(key),
				Size:         aws.Int64(int64(len(obj.body))),
				LastModified: aws.Time(obj.lastModified),
			})
		}

		lastPage := e >= len(keys)
		if !fn(output, lastPage) || lastPage {
			break
		}
	}

	return nil
}

func (x *S3Client) GetObject(input *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	key := aws.StringValue(input.Key)
	x.GetObjectKeys = append(x.GetObjectKeys, key)

	if err, ok := x.GetObjectErrors[key]; ok {
		return nil, err
	}

	bucket, ok := x.buckets[aws.StringValue(input.Bucket)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchBucket, "The specified bucket does not exist", nil)
	}

	obj, ok := bucket[key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist", nil)
	}

	output := &s3.GetObjectOutput{
		Body:          ioutil.NopCloser(bytes.NewReader(obj.body)),
		ContentLength: aws.Int64(int64(len(obj.body))),
		LastModified:  aws.Time(obj.lastModified),
	}
	if obj.encoding != "" {
		output.ContentEncoding = aws.String(obj.encoding)
	}
	return output, nil
}
