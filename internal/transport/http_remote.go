package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/foldsync/foldsync/internal/config"
	"github.com/foldsync/foldsync/internal/events"
	"github.com/foldsync/foldsync/internal/models"
)

// HTTPRemote implements Remote against the file transfer API.
type HTTPRemote struct {
	client       *http.Client
	baseURL      string
	remoteFolder string
	userAgent    string
	logger       *events.Logger
}

// NewHTTPRemote creates an HTTP remote adapter for one remote folder.
func NewHTTPRemote(cfg *config.APIConfig, remoteFolder string, logger *events.Logger) *HTTPRemote {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	return &HTTPRemote{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		remoteFolder: remoteFolder,
		userAgent:    cfg.UserAgent,
		logger:       logger.WithField("component", "http_remote"),
	}
}

// Exists reports whether the named file exists remotely.
func (r *HTTPRemote) Exists(ctx context.Context, name string) (bool, error) {
	resp, err := r.do(ctx, http.MethodGet, "Exists", url.Values{"fileName": {name}}, nil, "")
	if err != nil {
		return false, &models.TransportError{Op: "exists", Name: name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &models.TransportError{Op: "exists", Name: name, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return false, &models.TransportError{Op: "exists", Name: name,
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)}
	}

	var exists bool
	if err := json.Unmarshal(body, &exists); err != nil {
		return false, &models.TransportError{Op: "exists", Name: name,
			Err: fmt.Errorf("parse response: %w", err)}
	}
	return exists, nil
}

// Upload sends content as multipart form data. The expected prior hash
// lets the server detect a race with another writer.
func (r *HTTPRemote) Upload(ctx context.Context, name string, data []byte, expectedPriorHash string) (UploadStatus, string, error) {
	body, contentType, err := multipartUpload(name, data, expectedPriorHash)
	if err != nil {
		return UploadServerError, "", &models.TransportError{Op: "upload", Name: name, Err: err}
	}

	r.logger.WithFields(map[string]interface{}{
		"name":          name,
		"size":          len(data),
		"expected_hash": expectedPriorHash,
	}).Debug("Uploading file")

	resp, err := r.do(ctx, http.MethodPost, "Upload", nil, body, contentType)
	if err != nil {
		return UploadServerError, "", &models.TransportError{Op: "upload", Name: name, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadServerError, "", &models.TransportError{Op: "upload", Name: name, Err: err}
	}

	token := strings.Trim(strings.TrimSpace(string(respBody)), `"`)

	switch resp.StatusCode {
	case http.StatusOK:
		return UploadCreated, token, nil
	case http.StatusAccepted:
		return UploadAccepted, token, nil
	case http.StatusNotModified:
		return UploadUnchanged, token, nil
	case http.StatusMultipleChoices:
		return UploadConflicted, token, nil
	case http.StatusBadRequest:
		return UploadRejected, "", nil
	default:
		return UploadServerError, "", nil
	}
}

// UploadOverwrite replaces the remote content unconditionally.
func (r *HTTPRemote) UploadOverwrite(ctx context.Context, name string, data []byte) error {
	body, contentType, err := multipartUpload(name, data, "Overwrite")
	if err != nil {
		return &models.TransportError{Op: "upload_overwrite", Name: name, Err: err}
	}

	resp, err := r.do(ctx, http.MethodPost, "UploadOverwrite", nil, body, contentType)
	if err != nil {
		return &models.TransportError{Op: "upload_overwrite", Name: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return &models.TransportError{Op: "upload_overwrite", Name: name,
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)}
	}
	return nil
}

// ConfirmStaged promotes a staged upload to the live copy.
func (r *HTTPRemote) ConfirmStaged(ctx context.Context, name, token string) error {
	resp, err := r.do(ctx, http.MethodPost, "ConfirmUpload",
		url.Values{"fileName": {name}}, strings.NewReader(token), "text/plain")
	if err != nil {
		return &models.TransportError{Op: "confirm_staged", Name: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &models.TransportError{Op: "confirm_staged", Name: name,
			Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	return nil
}

// DiscardStaged drops a staged upload.
func (r *HTTPRemote) DiscardStaged(ctx context.Context, name, token string) error {
	resp, err := r.do(ctx, http.MethodPut, "DeleteTemp",
		url.Values{"fileName": {name}}, strings.NewReader(token), "text/plain")
	if err != nil {
		return &models.TransportError{Op: "discard_staged", Name: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &models.TransportError{Op: "discard_staged", Name: name,
			Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	return nil
}

// Download returns the remote file's content.
func (r *HTTPRemote) Download(ctx context.Context, name string) ([]byte, error) {
	r.logger.WithField("name", name).Debug("Downloading file")

	resp, err := r.do(ctx, http.MethodGet, "Download", url.Values{"fileName": {name}}, nil, "")
	if err != nil {
		return nil, &models.TransportError{Op: "download", Name: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &models.TransportError{Op: "download", Name: name,
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Op: "download", Name: name, Err: err}
	}

	r.logger.WithFields(map[string]interface{}{
		"name": name,
		"size": len(data),
	}).Debug("Downloaded file")

	return data, nil
}

// Delete removes the remote file, guarded by the expected prior hash
// when one is supplied.
func (r *HTTPRemote) Delete(ctx context.Context, name, expectedPriorHash string) (DeleteStatus, error) {
	query := url.Values{"fileName": {name}}
	if expectedPriorHash != "" {
		query.Set("previousHash", expectedPriorHash)
	}

	resp, err := r.do(ctx, http.MethodDelete, "Delete", query, nil, "")
	if err != nil {
		return DeleteServerError, &models.TransportError{Op: "delete", Name: name, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return DeleteOK, nil
	case http.StatusMultipleChoices:
		return DeleteConflicted, nil
	case http.StatusNotFound:
		return DeleteNotFound, nil
	default:
		return DeleteServerError, nil
	}
}

// ListFolder returns the remote folder listing.
func (r *HTTPRemote) ListFolder(ctx context.Context) ([]models.RemoteFile, error) {
	resp, err := r.do(ctx, http.MethodGet, "GetFolderStatus", nil, nil, "")
	if err != nil {
		return nil, &models.TransportError{Op: "list_folder", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Op: "list_folder", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &models.TransportError{Op: "list_folder",
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)}
	}

	var listing []models.RemoteFile
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, &models.TransportError{Op: "list_folder",
			Err: fmt.Errorf("parse response: %w", err)}
	}

	r.logger.WithField("files", len(listing)).Debug("Fetched remote listing")
	return listing, nil
}

// Close releases resources.
func (r *HTTPRemote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

// do issues one request against an API endpoint. The remote folder
// rides along on every request.
func (r *HTTPRemote) do(ctx context.Context, method, endpoint string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("folder", r.remoteFolder)

	reqURL := fmt.Sprintf("%s/%s?%s", r.baseURL, endpoint, query.Encode())

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", r.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

// multipartUpload builds the upload form: fileName and previousHash
// string fields plus the file part.
func multipartUpload(name string, data []byte, previousHash string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("fileName", name); err != nil {
		return nil, "", fmt.Errorf("write fileName field: %w", err)
	}
	if err := writer.WriteField("previousHash", previousHash); err != nil {
		return nil, "", fmt.Errorf("write previousHash field: %w", err)
	}

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
