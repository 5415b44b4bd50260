package attachment

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// Normalize validates and encodes a batch of attachments. The first
// failure short-circuits: the returned error is a *UserError carrying
// the message to relay, and no partial file list is returned.
func Normalize(ctx context.Context, fetcher Fetcher, descriptors []Descriptor) ([]File, error) {
	if len(descriptors) == 0 {
		return nil, nil
	}

	files := make([]File, 0, len(descriptors))
	for _, d := range descriptors {
		name := d.Filename
		if name == "" {
			name = "file"
		}

		ext := extension(name)
		mime, ok := mimeTypes[ext]
		if !ok {
			return nil, &UserError{Message: fmt.Sprintf(
				"File type '.%s' not supported. Please upload screenshots (PNG, JPG, GIF, etc.) only.\nFor documents, upload them to a file share and paste the link in your message.", ext)}
		}

		data, err := fetcher.Fetch(ctx, d)
		if err != nil {
			return nil, &UserError{Message: "Failed to download the attached file. Please try again."}
		}

		if len(data) > MaxFileSize {
			return nil, &UserError{Message: fmt.Sprintf(
				"File '%s' is too large. Maximum size is 5MB.", name)}
		}

		files = append(files, File{
			Filename: name,
			Content:  base64.StdEncoding.EncodeToString(data),
			MimeType: mime,
		})
	}
	return files, nil
}

// extension returns the lowercased filename suffix without the dot, or
// "" when the name has no dot.
func extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
