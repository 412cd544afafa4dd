package services

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

const maxPhotoSize = 10 * 1024 * 1024 // 10MB

// PhotoStorage stores place photos. All or nothing per call.
type PhotoStorage interface {
	UploadPlacePhotos(placeID string, files []*multipart.FileHeader) ([]*UploadResult, error)
	DeleteObjects(keys []string) error
}

type S3Service struct {
	client     *s3.S3
	bucketName string
	region     string
}

// NewS3Service returns nil when no bucket is configured.
func NewS3Service(region, bucketName, accessKey, secretKey string) *S3Service {
	if bucketName == "" {
		return nil
	}

	cfg := &aws.Config{Region: aws.String(region)}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}
	sess := session.Must(session.NewSession(cfg))

	return &S3Service{
		client:     s3.New(sess),
		bucketName: bucketName,
		region:     region,
	}
}

type UploadResult struct {
	Key         string
	URL         string
	FileName    string
	ContentType string
	Size        int64
}

func (s *S3Service) uploadPhoto(placeID string, header *multipart.FileHeader) (*UploadResult, error) {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFromExtension(header.Filename)
	}
	if !isValidImageType(contentType) {
		return nil, fmt.Errorf("invalid file type: %s", contentType)
	}
	if header.Size > maxPhotoSize {
		return nil, fmt.Errorf("file size too large: %d bytes (max: %d bytes)", header.Size, maxPhotoSize)
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open: %w", err)
	}
	defer file.Close()

	key := fmt.Sprintf("places/%s/%s%s", placeID, uuid.NewString(), strings.ToLower(filepath.Ext(header.Filename)))

	_, err = s.client.PutObject(&s3.PutObjectInput{
		Bucket:       aws.String(s.bucketName),
		Key:          aws.String(key),
		Body:         file,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("max-age=31536000"), // 1 year cache
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		Key:         key,
		URL:         fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucketName, s.region, key),
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	}, nil
}

func (s *S3Service) UploadPlacePhotos(placeID string, files []*multipart.FileHeader) ([]*UploadResult, error) {
	var results []*UploadResult
	var uploadErrors []string

	for i, header := range files {
		result, err := s.uploadPhoto(placeID, header)
		if err != nil {
			uploadErrors = append(uploadErrors, fmt.Sprintf("file %d (%s): %v", i+1, header.Filename, err))
			continue
		}
		results = append(results, result)
	}

	if len(uploadErrors) > 0 {
		// If some uploads failed, clean up successful ones
		keys := make([]string, 0, len(results))
		for _, r := range results {
			keys = append(keys, r.Key)
		}
		_ = s.DeleteObjects(keys)
		return nil, fmt.Errorf("upload errors: %s", strings.Join(uploadErrors, "; "))
	}

	return results, nil
}

func (s *S3Service) DeleteObjects(keys []string) error {
	var objects []*s3.ObjectIdentifier
	for _, key := range keys {
		if key != "" {
			objects = append(objects, &s3.ObjectIdentifier{Key: aws.String(key)})
		}
	}
	if len(objects) == 0 {
		return nil
	}

	_, err := s.client.DeleteObjects(&s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucketName),
		Delete: &s3.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	return err
}

func isValidImageType(contentType string) bool {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp", "image/heic":
		return true
	}
	return false
}

func contentTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}
