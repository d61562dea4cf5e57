package domain

// Image описывает изображение, которое хранится в S3
type Image struct {
	ID          string // uuid
	Bucket      string
	ObjectKey   string
	Bytes       []byte
	Size        int64
	ContentType string
}

func NewImage(id, bucket, objectKey string, data []byte, contentType string) *Image {
	return &Image{
		ID:          id,
		Bucket:      bucket,
		ObjectKey:   objectKey,
		Bytes:       data,
		Size:        int64(len(data)),
		ContentType: contentType,
	}
}
