package media

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

type Limits struct {
	MaxEntries    int
	MaxEntryBytes int64
	MaxTotalBytes int64
}

type Entry struct {
	Name string
	Data []byte
}

type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

var imageExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

// ExtractImages reads a zip archive and returns the entries that look like
// images, within the limits. Everything else is reported as skipped.
func ExtractImages(data []byte, lim Limits) ([]Entry, []Skipped, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}

	var (
		out     []Entry
		skipped []Skipped
		total   int64
	)
	for _, f := range zr.File {
		name := f.Name
		base := path.Base(name)
		switch {
		case f.FileInfo().IsDir():
			continue
		case strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(base, "."):
			continue
		case !imageExt[strings.ToLower(path.Ext(base))]:
			skipped = append(skipped, Skipped{Name: name, Reason: "not an image"})
			continue
		case lim.MaxEntries > 0 && len(out) >= lim.MaxEntries:
			skipped = append(skipped, Skipped{Name: name, Reason: "entry limit reached"})
			continue
		case lim.MaxEntryBytes > 0 && int64(f.UncompressedSize64) > lim.MaxEntryBytes:
			skipped = append(skipped, Skipped{Name: name, Reason: "file too large"})
			continue
		case lim.MaxTotalBytes > 0 && total+int64(f.UncompressedSize64) > lim.MaxTotalBytes:
			skipped = append(skipped, Skipped{Name: name, Reason: "archive size limit reached"})
			continue
		}

		b, err := readEntry(f, lim.MaxEntryBytes)
		if err != nil {
			skipped = append(skipped, Skipped{Name: name, Reason: err.Error()})
			continue
		}
		total += int64(len(b))
		out = append(out, Entry{Name: name, Data: b})
	}
	return out, skipped, nil
}

func readEntry(f *zip.File, max int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("unreadable: %w", err)
	}
	defer rc.Close()

	// the header size can lie; cap what is actually read
	var r io.Reader = rc
	if max > 0 {
		r = io.LimitReader(rc, max+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unreadable: %w", err)
	}
	if max > 0 && int64(len(b)) > max {
		return nil, fmt.Errorf("file too large")
	}
	return b, nil
}
