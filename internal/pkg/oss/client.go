package oss

import (
	"bytes"
	"fmt"
	"time"

	alioss "github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/repodoc/docgen_server/config"
)

// Client uploads documentation packages to object storage.
type Client struct {
	bucket    *alioss.Bucket
	bucketURL string
	usesCDN   bool
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	ossClient, err := alioss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create oss client: %w", err)
	}

	bucket, err := ossClient.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	bucketURL := fmt.Sprintf("https://%s.%s", cfg.BucketName, cfg.Endpoint)
	if cfg.CDNDomain != "" {
		bucketURL = cfg.CDNDomain
	}

	return &Client{
		bucket:    bucket,
		bucketURL: bucketURL,
		usesCDN:   cfg.CDNDomain != "",
	}, nil
}

// UploadPackage stores a zipped documentation bundle and returns its object key.
func (c *Client) UploadPackage(jobID string, data []byte) (string, error) {
	objectKey := fmt.Sprintf("packages/%s/documentation.zip", jobID)

	err := c.bucket.PutObject(objectKey, bytes.NewReader(data),
		alioss.ContentType("application/zip"))
	if err != nil {
		return "", fmt.Errorf("failed to upload package: %w", err)
	}

	return objectKey, nil
}

// SignedURL returns a time-limited download URL for an object key.
func (c *Client) SignedURL(objectKey string, expiry time.Duration) (string, error) {
	url, err := c.bucket.SignURL(objectKey, alioss.HTTPGet, int64(expiry.Seconds()))
	if err != nil {
		return "", fmt.Errorf("failed to sign url: %w", err)
	}
	return url, nil
}

// PublicURL returns the unsigned URL for an object key.
func (c *Client) PublicURL(objectKey string) string {
	return fmt.Sprintf("%s/%s", c.bucketURL, objectKey)
}

// DownloadURL resolves an object key for clients: the CDN URL when a
// CDN domain is configured (public bucket), a signed URL otherwise.
func (c *Client) DownloadURL(objectKey string, expiry time.Duration) (string, error) {
	if c.usesCDN {
		return c.PublicURL(objectKey), nil
	}
	return c.SignedURL(objectKey, expiry)
}
