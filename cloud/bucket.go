/*
Copyright © 2024 the vedrop authors.
This file is part of vedrop.

vedrop is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

vedrop is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with vedrop.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cloud opens the blob storage that checkpoints are kept in.
package cloud

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// OpenBucket returns the blob storage bucket specified by bucketName,
// which is either a local directory or in the format 'provider://name',
// where provider is the name of the storage provider and name is the
// name of the bucket.
// The accepted storage providers are "file" for the local filesystem,
// "gs" for Google Cloud Storage, and "s3" for AWS S3. Local directories
// are created if they do not exist.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	provider, name, err := parseBucket(bucketName)
	if err != nil {
		return nil, err
	}
	switch provider {
	case "", "file":
		return dirBucket(name)
	case "gs":
		return gsBucket(ctx, name)
	default: // s3
		return s3Bucket(ctx, name)
	}
}

// parseBucket splits bucketName into its storage provider and the
// bucket name or directory. The provider of a local directory is "".
func parseBucket(bucketName string) (provider, name string, err error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return "", "", fmt.Errorf("cloud.OpenBucket: %v", err)
	}
	switch u.Scheme {
	case "":
		return "", bucketName, nil
	case "file":
		return u.Scheme, filepath.Join(u.Host, filepath.FromSlash(u.Path)), nil
	case "gs", "s3":
		if u.Hostname() == "" {
			return "", "", fmt.Errorf("cloud.OpenBucket: missing bucket name in %s", bucketName)
		}
		return u.Scheme, u.Hostname(), nil
	default:
		return "", "", fmt.Errorf("cloud.OpenBucket: invalid provider %s", u.Scheme)
	}
}

func dirBucket(dir string) (*blob.Bucket, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cloud.OpenBucket: %v", err)
	}
	return fileblob.OpenBucket(dir, nil)
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, fmt.Errorf("cloud.OpenBucket: %v", err)
	}
	return s3blob.OpenBucket(ctx, s, name, nil)
}
