package flickr

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"uploadr/internal/services"
	"uploadr/internal/uploader"
)

type uploadResponse struct {
	XMLName xml.Name `xml:"rsp"`
	Stat    string   `xml:"stat,attr"`
	PhotoID string   `xml:"photoid"`
	Err     struct {
		Code int    `xml:"code,attr"`
		Msg  string `xml:"msg,attr"`
	} `xml:"err"`
}

// UploadFile streams path to the upload endpoint and returns the new photo id.
func (c *Client) UploadFile(ctx context.Context, path string, meta uploader.Metadata) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrTransferFailed, "flickr", "upload", "open media file", err)
	}
	defer file.Close()

	fields := url.Values{}
	if meta.Title != "" {
		fields.Set("title", meta.Title)
	}
	if meta.Description != "" {
		fields.Set("description", meta.Description)
	}
	if tags := meta.TagString(); tags != "" {
		fields.Set("tags", tags)
	}
	fields.Set("is_public", boolFlag(meta.IsPublic))
	fields.Set("is_friend", boolFlag(meta.IsFriend))
	fields.Set("is_family", boolFlag(meta.IsFamily))
	signed := c.signed(fields, true)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(mw, signed, filepath.Base(path), file))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UploadURL, pr)
	if err != nil {
		_ = pr.Close()
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return "", transferFailed("upload", err)
	}
	defer resp.Body.Close()
	_ = pr.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", transferFailed("upload", err)
	}
	if resp.StatusCode >= 400 {
		return "", transferFailed("upload", &httpStatusError{StatusCode: resp.StatusCode, Body: truncate(string(body))})
	}

	var parsed uploadResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return "", transferFailed("upload", fmt.Errorf("decode upload response: %w", err))
	}
	if parsed.Stat != "ok" {
		return "", transferFailed("upload", &APIError{Method: "upload", Code: parsed.Err.Code, Message: parsed.Err.Msg})
	}
	id := strings.TrimSpace(parsed.PhotoID)
	if id == "" {
		return "", services.Wrap(services.ErrTransferFailed, "flickr", "upload", "response carried no photo id", nil)
	}
	return id, nil
}

func writeMultipart(mw *multipart.Writer, fields url.Values, name string, content io.Reader) error {
	for k, values := range fields {
		for _, v := range values {
			if err := mw.WriteField(k, v); err != nil {
				return err
			}
		}
	}
	part, err := mw.CreateFormFile("photo", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
