package s3

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// InputKey is where an uploaded exam PDF is stored.
func InputKey(prefix string, runID uuid.UUID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document.pdf"
	}
	return path.Join(prefix, runID.String(), name)
}

// ReportKey is where the JSON report of a finished run is archived.
func ReportKey(prefix string, runID uuid.UUID) string {
	return path.Join(prefix, runID.String()+".json")
}

// ParseURI splits an s3://bucket/key URI.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri needs a bucket and key: %q", uri)
	}
	return bucket, key, nil
}

// IsURI reports whether s looks like an s3:// URI.
func IsURI(s string) bool {
	return strings.HasPrefix(s, "s3://")
}
