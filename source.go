package iocfeed

import (
	"strings"
	"time"
)

// SourceLocation is a bucket and key prefix to scan for feed files.
type SourceLocation struct {
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
}

// ParseSourceLocation converts "bucket" or "bucket/some/prefix" to SourceLocation.
func ParseSourceLocation(s string) SourceLocation {
	s = strings.TrimPrefix(strings.TrimSpace(s), "s3://")
	parts := strings.SplitN(s, "/", 2)
	loc := SourceLocation{Bucket: parts[0]}
	if len(parts) == 2 {
		loc.Prefix = parts[1]
	}
	return loc
}

func (x SourceLocation) String() string {
	if x.Prefix == "" {
		return "s3://" + x.Bucket
	}
	return "s3://" + x.Bucket + "/" + x.Prefix
}

// Encoding is content encoding of SourceObject
type Encoding string

const (
	EncodingPlain Encoding = "plain"
	EncodingGzip  Encoding = "gzip"
)

// SourceObject is one listed feed file. (Bucket, Key) identifies it.
type SourceObject struct {
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Encoding     Encoding  `json:"encoding"`
	LastModified time.Time `json:"last_modified"`
	Size         int64     `json:"size"`
}

func (x *SourceObject) String() string {
	return "s3://" + x.Bucket + "/" + x.Key
}

// Candidate is a trimmed cell value extracted from a feed file.
type Candidate struct {
	Value  string
	Row    int
	Column int
}
