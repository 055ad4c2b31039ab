package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"example.com/ai-meal-planner/backend/internal/models"
)

const csvContentType = "text/csv; charset=utf-8"

// ObjectPutter - часть s3.Client, нужная для выгрузки.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Exporter struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Exporter загружает AWS-конфиг по умолчанию для региона.
func NewS3Exporter(ctx context.Context, region, bucket, prefix string) (*S3Exporter, error) {
	if bucket == "" {
		return nil, fmt.Errorf("export bucket is not configured")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewS3ExporterWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func NewS3ExporterWithClient(client ObjectPutter, bucket, prefix string) *S3Exporter {
	return &S3Exporter{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}
}

// ExportShoppingList сохраняет CSV списка покупок и возвращает ключ объекта.
func (e *S3Exporter) ExportShoppingList(ctx context.Context, list models.ShoppingList) (string, error) {
	var buf bytes.Buffer
	if err := WriteShoppingCSV(&buf, list); err != nil {
		return "", fmt.Errorf("write shopping csv: %w", err)
	}

	key := e.objectKey(list)
	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(csvContentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	return key, nil
}

func (e *S3Exporter) objectKey(list models.ShoppingList) string {
	stamp := e.now().UTC().Format("20060102T150405Z")
	return path.Join(e.prefix, list.UserID.String(), list.PlanID.String(), "shopping-list-"+stamp+".csv")
}
