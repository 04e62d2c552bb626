package domain

// FileUpload is one file of a submission batch as delivered by the transport.
type FileUpload struct {
	Filename    string
	ContentType string // as declared by the client, informational only
	Content     []byte
}

// Size returns the payload length in bytes.
func (f FileUpload) Size() int64 {
	return int64(len(f.Content))
}
