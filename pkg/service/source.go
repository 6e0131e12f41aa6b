package service

import (
	"bufio"
	"compress/gzip"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/m-mizutani/iocfeed"
	"github.com/m-mizutani/iocfeed/pkg/adaptor"
	"github.com/m-mizutani/iocfeed/pkg/errors"
)

// DefaultObjectSuffixes are suffixes of feed files to be processed
var DefaultObjectSuffixes = []string{".csv", ".csv.gz"}

// ErrLocationNotFound is returned by SourceService.List when bucket does not exist
var ErrLocationNotFound = errors.New("Source location not found")

// SourceService lists and reads feed files in S3
type SourceService struct {
	newS3    adaptor.S3ClientFactory
	region   string
	suffixes []string
	client   adaptor.S3Client
}

// NewSourceService is constructor of SourceService. DefaultObjectSuffixes is used if suffixes is empty.
func NewSourceService(newS3 adaptor.S3ClientFactory, region string, suffixes []string) *SourceService {
	if len(suffixes) == 0 {
		suffixes = DefaultObjectSuffixes
	}
	return &SourceService{
		newS3:    newS3,
		region:   region,
		suffixes: suffixes,
	}
}

func (x *SourceService) s3Client() (adaptor.S3Client, error) {
	if x.client == nil {
		client, err := x.newS3(x.region)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create S3 client").With("region", x.region)
		}
		x.client = client
	}
	return x.client, nil
}

func (x *SourceService) isFeedFile(key string) bool {
	lower := strings.ToLower(key)
	for _, suffix := range x.suffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func encodingOf(key string) iocfeed.Encoding {
	if strings.HasSuffix(strings.ToLower(key), ".gz") {
		return iocfeed.EncodingGzip
	}
	return iocfeed.EncodingPlain
}

func listPrefix(loc iocfeed.SourceLocation, datePrefix string) string {
	if loc.Prefix == "" || strings.HasSuffix(loc.Prefix, "/") {
		return loc.Prefix + datePrefix
	}
	return loc.Prefix + "/" + datePrefix
}

// List returns feed files under the location and datePrefix.
func (x *SourceService) List(loc iocfeed.SourceLocation, datePrefix string) ([]*iocfeed.SourceObject, error) {
	client, err := x.s3Client()
	if err != nil {
		return nil, err
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(loc.Bucket),
		Prefix: aws.String(listPrefix(loc, datePrefix)),
	}

	var objects []*iocfeed.SourceObject
	err = client.ListObjectsV2Pages(input, func(output *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range output.Contents {
			key := aws.StringValue(obj.Key)
			if !x.isFeedFile(key) {
				continue
			}
			objects = append(objects, &iocfeed.SourceObject{
				Bucket:       loc.Bucket,
				Key:          key,
				Encoding:     encodingOf(key),
				LastModified: aws.TimeValue(obj.LastModified),
				Size:         aws.Int64Value(obj.Size),
			})
		}
		return true
	})

	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchBucket {
			return nil, errors.Wrap(ErrLocationNotFound, aerr.Message()).With("location", loc.String())
		}
		return nil, errors.Wrap(err, "Failed ListObjectsV2").With("input", input)
	}

	return objects, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	body io.Closer
}

func (x *gzipReadCloser) Close() error {
	if err := x.Reader.Close(); err != nil {
		x.body.Close()
		return err
	}
	return x.body.Close()
}

type bufferedReadCloser struct {
	*bufio.Reader
	body io.Closer
}

func (x *bufferedReadCloser) Close() error {
	return x.body.Close()
}

// Open returns decompressed content of the object. Objects with .gz suffix must be gzip stream.
// Objects with Content-Encoding gzip are decompressed only if the body still has gzip header,
// because HTTP transport may have decoded it already.
func (x *SourceService) Open(obj *iocfeed.SourceObject) (io.ReadCloser, error) {
	client, err := x.s3Client()
	if err != nil {
		return nil, err
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	}
	output, err := client.GetObject(input)
	if err != nil {
		return nil, errors.Wrap(err, "Failed GetObject").With("input", input)
	}

	body := &bufferedReadCloser{Reader: bufio.NewReader(output.Body), body: output.Body}
	contentGzip := strings.EqualFold(aws.StringValue(output.ContentEncoding), "gzip")

	switch {
	case obj.Encoding == iocfeed.EncodingGzip:
	case contentGzip && hasGzipMagic(body.Reader):
		obj.Encoding = iocfeed.EncodingGzip
	default:
		return body, nil
	}

	gz, err := gzip.NewReader(body)
	if err != nil {
		body.Close()
		return nil, errors.Wrap(err, "Failed to decode gzip stream").With("object", obj.String())
	}
	return &gzipReadCloser{Reader: gz, body: body}, nil
}

func hasGzipMagic(r *bufio.Reader) bool {
	magic, err := r.Peek(2)
	return err == nil && magic[0] == 0x1f && magic[1] == 0x8b
}
