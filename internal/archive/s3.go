// Package archive keeps a copy of uploaded meal photos in S3.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// KeyPrefix is the folder every archived photo lands in.
const KeyPrefix = "meals/"

// PutObjectAPI is the slice of the S3 client the archiver needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	Client    PutObjectAPI
	Bucket    string
	PublicURL string
	// PublicRead sets the public-read canned ACL on uploads.
	PublicRead bool
}

func NewS3Archiver(client PutObjectAPI, bucket, publicURL string) *S3Archiver {
	return &S3Archiver{Client: client, Bucket: bucket, PublicURL: publicURL}
}

// Store uploads data under meals/<id><ext> and returns its public URL.
func (a *S3Archiver) Store(ctx context.Context, id string, data []byte) (string, error) {
	if a == nil || a.Client == nil || a.Bucket == "" {
		return "", fmt.Errorf("archive not configured")
	}
	if id == "" {
		return "", fmt.Errorf("archive key needs an id")
	}

	contentType := http.DetectContentType(data)
	key := KeyPrefix + id + extensionFor(contentType)

	in := &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if a.PublicRead {
		in.ACL = s3types.ObjectCannedACLPublicRead
	}
	if _, err := a.Client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return a.URLFor(key), nil
}

// URLFor joins the public base URL and key. Without a base URL the
// s3:// location is returned.
func (a *S3Archiver) URLFor(key string) string {
	base := strings.TrimRight(a.PublicURL, "/")
	if base == "" {
		return fmt.Sprintf("s3://%s/%s", a.Bucket, key)
	}
	return fmt.Sprintf("%s/%s", base, key)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
