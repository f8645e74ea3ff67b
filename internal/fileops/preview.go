package fileops

import (
	"io"
	"os"
	"strings"
)

// PreviewResult holds an inline text preview of a file.
type PreviewResult struct {
	Text      bool   `json:"text"`
	Mime      string `json:"mime"`
	Content   string `json:"content,omitempty"`
	Truncated bool   `json:"truncated"`
	Size      int64  `json:"size"`
}

// textLike reports whether a content type is safe to render inline as
// text.
func textLike(mime string) bool {
	switch {
	case strings.HasPrefix(mime, "text/"):
		return true
	case strings.HasPrefix(mime, "application/json"):
		return true
	case strings.HasPrefix(mime, "application/xml"):
		return true
	default:
		return false
	}
}

// Preview reads up to maxBytes of a text-like file. Binary files come
// back with Text=false and no content. Undecodable bytes are replaced
// rather than failing the preview.
func Preview(absPath string, maxBytes int64) (PreviewResult, error) {
	st, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return PreviewResult{}, ErrNotFound
		}
		return PreviewResult{}, err
	}
	if st.IsDir() {
		return PreviewResult{}, ErrNotDir
	}

	res := PreviewResult{
		Mime: MimeFor(st.Name()),
		Size: st.Size(),
	}
	if !textLike(res.Mime) {
		return res, nil
	}
	res.Text = true

	f, err := os.Open(absPath)
	if err != nil {
		return PreviewResult{}, err
	}
	defer f.Close()

	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	buf, err := io.ReadAll(io.LimitReader(f, maxBytes))
	if err != nil {
		return PreviewResult{}, err
	}
	res.Truncated = st.Size() > int64(len(buf))
	res.Content = strings.ToValidUTF8(string(buf), "�")
	return res, nil
}
