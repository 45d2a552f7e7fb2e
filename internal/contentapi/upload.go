package contentapi

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"

	"github.com/lms-discussions-api/internal/models"
)

// ProgressFunc is called as upload bytes are sent. total is -1 when unknown.
type ProgressFunc func(sent, total int64)

// UploadFile describes one file to upload
type UploadFile struct {
	Kind     models.UploadKind
	Filename string
	Body     io.Reader
	// Size is used for progress reporting only; 0 means unknown
	Size int64
}

// Upload streams a file to POST /v1/uploads. The deadline depends on the
// kind: video uploads get the longer one.
func (c *Client) Upload(ctx context.Context, f UploadFile, progress ProgressFunc) (*models.UploadResult, error) {
	timeout := c.contentTimeout
	if f.Kind == models.UploadKindVideo {
		timeout = c.videoTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	total := f.Size
	if total <= 0 {
		total = -1
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// The writer goroutine exits once the pipe is closed from either side
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pw.CloseWithError(writeUpload(mw, f, &progressReader{r: f.Body, total: total, fn: progress}))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/uploads", pr)
	if err != nil {
		pr.Close()
		wg.Wait()
		return nil, fmt.Errorf("upload %s: %w", f.Filename, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var out models.UploadResult
	err = c.send(req, "upload "+f.Filename, &out)
	pr.Close()
	wg.Wait()
	if err != nil {
		return nil, err
	}

	c.log.Info().Str("key", out.Key).Int64("size", out.Size).Msg("Upload finished")
	return &out, nil
}

func writeUpload(mw *multipart.Writer, f UploadFile, body io.Reader) error {
	if err := mw.WriteField("kind", string(f.Kind)); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", f.Filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	return mw.Close()
}

// progressReader reports bytes read through fn
type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}
