// Package gemini implements core.RemoteService against the Generative
// Language API: fileSearchStores CRUD, media upload plus store import with
// custom metadata and chunking configuration, file state polling, and
// generateContent with the fileSearch tool. Grounding chunks are decoded from
// the response's groundingMetadata in service order.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rzg777/filesearch/core"
	"github.com/rzg777/filesearch/logging"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Options configure the Gemini client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	MaxRetries int
	Logger     logging.Logger
}

// Client talks to the Generative Language API using a per-session API key.
// The key is sent in a request header and never logged.
type Client struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	logger     logging.Logger
}

var _ core.RemoteService = (*Client)(nil)

// NewClient creates a Gemini backend for the given API key.
func NewClient(apiKey string, optFns ...func(o *Options)) (*Client, error) {
	if apiKey == "" {
		return nil, &core.ConfigurationError{Op: "gemini client", Reason: "missing API key"}
	}
	opts := Options{
		BaseURL:    DefaultBaseURL,
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     apiKey,
		client:     httpClient,
		maxRetries: opts.MaxRetries,
		logger:     opts.Logger,
	}, nil
}

// wire types

type wireStore struct {
	Name            string `json:"name"`
	DisplayName     string `json:"displayName,omitempty"`
	CreateTime      string `json:"createTime,omitempty"`
	ActiveFileCount string `json:"activeDocumentsCount,omitempty"`
}

type wireStoreList struct {
	FileSearchStores []wireStore `json:"fileSearchStores"`
	NextPageToken    string      `json:"nextPageToken,omitempty"`
}

type wireFile struct {
	File struct {
		Name  string `json:"name"`
		State string `json:"state,omitempty"`
	} `json:"file"`
}

type wireFileInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	SizeBytes   string `json:"sizeBytes,omitempty"`
	State       string `json:"state,omitempty"`
	CreateTime  string `json:"createTime,omitempty"`
}

type wireFileList struct {
	Files         []wireFileInfo `json:"files"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

type wireFileState struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type wireCustomMetadata struct {
	Key         string `json:"key"`
	StringValue string `json:"stringValue"`
}

type wireImportRequest struct {
	FileName       string               `json:"fileName"`
	CustomMetadata []wireCustomMetadata `json:"customMetadata,omitempty"`
	ChunkingConfig *wireChunkingConfig  `json:"chunkingConfig,omitempty"`
}

type wireChunkingConfig struct {
	WhiteSpaceConfig struct {
		MaxTokensPerChunk int `json:"maxTokensPerChunk"`
		MaxOverlapTokens  int `json:"maxOverlapTokens"`
	} `json:"whiteSpaceConfig"`
}

type wireGenerateRequest struct {
	Contents []wireContent `json:"contents"`
	Tools    []wireTool    `json:"tools"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text string `json:"text"`
}

type wireTool struct {
	FileSearch wireFileSearch `json:"fileSearch"`
}

type wireFileSearch struct {
	FileSearchStoreNames []string `json:"fileSearchStoreNames"`
	MetadataFilter       string   `json:"metadataFilter,omitempty"`
}

type wireGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []wirePart `json:"parts"`
		} `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []struct {
				RetrievedContext struct {
					Title string `json:"title"`
					URI   string `json:"uri"`
					Text  string `json:"text"`
				} `json:"retrievedContext"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

type wireError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// CreateStore implements core.RemoteService.
func (c *Client) CreateStore(ctx context.Context, displayName string) (core.Store, error) {
	body, _ := json.Marshal(map[string]string{"displayName": displayName})
	var out wireStore
	if err := c.doJSON(ctx, "create store", http.MethodPost, c.baseURL+"/fileSearchStores", "application/json", bytes.NewReader(body), &out); err != nil {
		return core.Store{}, err
	}
	return decodeStore(out), nil
}

// ListStores implements core.RemoteService, following pagination to the end.
func (c *Client) ListStores(ctx context.Context) ([]core.Store, error) {
	var stores []core.Store
	pageToken := ""
	for {
		endpoint := c.baseURL + "/fileSearchStores"
		if pageToken != "" {
			endpoint += "?pageToken=" + url.QueryEscape(pageToken)
		}
		var out wireStoreList
		if err := c.doJSON(ctx, "list stores", http.MethodGet, endpoint, "", nil, &out); err != nil {
			return nil, err
		}
		for _, ws := range out.FileSearchStores {
			stores = append(stores, decodeStore(ws))
		}
		if out.NextPageToken == "" {
			return stores, nil
		}
		pageToken = out.NextPageToken
	}
}

// DeleteStore implements core.RemoteService. The force flag removes contained
// documents along with the store.
func (c *Client) DeleteStore(ctx context.Context, id string) error {
	endpoint := c.baseURL + "/" + id + "?force=true"
	return c.doJSON(ctx, "delete store", http.MethodDelete, endpoint, "", nil, nil)
}

// UploadFile implements core.RemoteService: a multipart media upload to the
// Files API followed by an import into the target store carrying custom
// metadata and the chunking configuration.
func (c *Client) UploadFile(ctx context.Context, req core.UploadRequest) (core.UploadHandle, error) {
	file, err := c.uploadMedia(ctx, req)
	if err != nil {
		return core.UploadHandle{}, err
	}
	imp := wireImportRequest{FileName: file}
	for _, f := range req.Metadata {
		imp.CustomMetadata = append(imp.CustomMetadata, wireCustomMetadata{Key: f.Key, StringValue: f.Value})
	}
	cc := &wireChunkingConfig{}
	cc.WhiteSpaceConfig.MaxTokensPerChunk = req.Chunking.MaxTokensPerChunk
	cc.WhiteSpaceConfig.MaxOverlapTokens = req.Chunking.OverlapTokens
	imp.ChunkingConfig = cc

	body, _ := json.Marshal(imp)
	endpoint := c.baseURL + "/" + req.StoreID + ":importFile"
	if err := c.doJSON(ctx, "import file", http.MethodPost, endpoint, "application/json", bytes.NewReader(body), nil); err != nil {
		return core.UploadHandle{}, err
	}
	c.logger.Info("file uploaded", "store_id", req.StoreID, "file", req.DisplayName)
	return core.UploadHandle{StoreID: req.StoreID, FileID: file}, nil
}

// uploadMedia performs the multipart/related upload of file bytes plus
// metadata and returns the assigned file resource name.
func (c *Client) uploadMedia(ctx context.Context, req core.UploadRequest) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := w.CreatePart(metaHeader)
	if err != nil {
		return "", &core.RemoteError{Op: "upload file", Kind: core.RemoteInternal, Err: err}
	}
	meta, _ := json.Marshal(map[string]any{"file": map[string]string{"displayName": req.DisplayName}})
	if _, err := metaPart.Write(meta); err != nil {
		return "", &core.RemoteError{Op: "upload file", Kind: core.RemoteInternal, Err: err}
	}

	mediaHeader := textproto.MIMEHeader{}
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	mediaHeader.Set("Content-Type", mimeType)
	mediaPart, err := w.CreatePart(mediaHeader)
	if err != nil {
		return "", &core.RemoteError{Op: "upload file", Kind: core.RemoteInternal, Err: err}
	}
	if _, err := mediaPart.Write(req.Content); err != nil {
		return "", &core.RemoteError{Op: "upload file", Kind: core.RemoteInternal, Err: err}
	}
	if err := w.Close(); err != nil {
		return "", &core.RemoteError{Op: "upload file", Kind: core.RemoteInternal, Err: err}
	}

	var out wireFile
	contentType := "multipart/related; boundary=" + w.Boundary()
	if err := c.doJSON(ctx, "upload file", http.MethodPost, c.uploadEndpoint(), contentType, bytes.NewReader(buf.Bytes()), &out); err != nil {
		return "", err
	}
	if out.File.Name == "" {
		return "", &core.RemoteError{Op: "upload file", Kind: core.RemoteInternal, Message: "upload response missing file name"}
	}
	return out.File.Name, nil
}

// uploadEndpoint derives the media upload URL from the API base URL.
func (c *Client) uploadEndpoint() string {
	if strings.Contains(c.baseURL, "/v1beta") {
		return strings.Replace(c.baseURL, "/v1beta", "/upload/v1beta", 1) + "/files"
	}
	return c.baseURL + "/upload/files"
}

// GetUploadStatus implements core.RemoteService by reading the file state.
func (c *Client) GetUploadStatus(ctx context.Context, h core.UploadHandle) (core.UploadStatus, error) {
	var out wireFileState
	if err := c.doJSON(ctx, "upload status", http.MethodGet, c.baseURL+"/"+h.FileID, "", nil, &out); err != nil {
		return core.UploadPending, err
	}
	switch out.State {
	case "PROCESSING":
		return core.UploadProcessing, nil
	case "ACTIVE":
		return core.UploadActive, nil
	case "FAILED":
		return core.UploadFailed, nil
	default:
		return core.UploadPending, nil
	}
}

// ListFiles implements core.RemoteService, following pagination to the end.
// The Files API lists globally; files are not scoped to a store here.
func (c *Client) ListFiles(ctx context.Context) ([]core.FileInfo, error) {
	var files []core.FileInfo
	pageToken := ""
	for {
		endpoint := c.baseURL + "/files"
		if pageToken != "" {
			endpoint += "?pageToken=" + url.QueryEscape(pageToken)
		}
		var out wireFileList
		if err := c.doJSON(ctx, "list files", http.MethodGet, endpoint, "", nil, &out); err != nil {
			return nil, err
		}
		for _, wf := range out.Files {
			files = append(files, decodeFileInfo(wf))
		}
		if out.NextPageToken == "" {
			return files, nil
		}
		pageToken = out.NextPageToken
	}
}

// DeleteFile implements core.RemoteService.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	return c.doJSON(ctx, "delete file", http.MethodDelete, c.baseURL+"/"+id, "", nil, nil)
}

// GenerateGrounded implements core.RemoteService using the fileSearch tool.
func (c *Client) GenerateGrounded(ctx context.Context, req core.GenerateRequest) (core.GenerateResult, error) {
	wreq := wireGenerateRequest{
		Contents: []wireContent{{Role: "user", Parts: []wirePart{{Text: req.Prompt}}}},
		Tools: []wireTool{{FileSearch: wireFileSearch{
			FileSearchStoreNames: []string{req.StoreID},
			MetadataFilter:       req.MetadataFilter,
		}}},
	}
	body, _ := json.Marshal(wreq)
	endpoint := c.baseURL + "/models/" + req.Model + ":generateContent"
	var out wireGenerateResponse
	if err := c.doJSON(ctx, "generate", http.MethodPost, endpoint, "application/json", bytes.NewReader(body), &out); err != nil {
		return core.GenerateResult{}, err
	}
	if len(out.Candidates) == 0 {
		return core.GenerateResult{}, &core.RemoteError{Op: "generate", Kind: core.RemoteInternal, Message: "no candidates returned"}
	}
	cand := out.Candidates[0]
	var text strings.Builder
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}
	res := core.GenerateResult{Text: text.String()}
	for _, gc := range cand.GroundingMetadata.GroundingChunks {
		res.Chunks = append(res.Chunks, core.GroundingChunk{
			Title:   gc.RetrievedContext.Title,
			Locator: gc.RetrievedContext.URI,
			Snippet: gc.RetrievedContext.Text,
		})
	}
	return res, nil
}

// doJSON issues one API call with retry on transient failures and decodes the
// response into out (when non-nil). Retries honor Retry-After and back off
// exponentially with a cap.
func (c *Client) doJSON(ctx context.Context, op, method, endpoint, contentType string, body io.ReadSeeker, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if body != nil {
			if _, err := body.Seek(0, io.SeekStart); err != nil {
				return &core.RemoteError{Op: op, Kind: core.RemoteInternal, Err: err}
			}
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return &core.RemoteError{Op: op, Kind: core.RemoteInternal, Err: err}
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return &core.RemoteError{Op: op, Kind: core.RemoteTimeout, Err: ctx.Err()}
			}
			lastErr = &core.RemoteError{Op: op, Kind: core.RemoteUnavailable, Err: err}
			if attempt < c.maxRetries {
				sleep(ctx, retryDelay(attempt))
				continue
			}
			return lastErr
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			lastErr = c.statusError(op, resp)
			_ = resp.Body.Close()
			if attempt < c.maxRetries {
				c.logger.Debug("retrying after transient failure", "op", op, "status", resp.StatusCode)
				sleep(ctx, delay)
				continue
			}
			return lastErr
		}

		if resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return c.statusError(op, resp)
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return nil
		}
		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = &core.RemoteError{Op: op, Kind: core.RemoteUnavailable, Err: err}
			if attempt < c.maxRetries {
				sleep(ctx, retryDelay(attempt))
				continue
			}
			return lastErr
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return &core.RemoteError{Op: op, Kind: core.RemoteInternal, Message: "malformed response", Err: err}
		}
		return nil
	}
	return lastErr
}

// statusError maps an HTTP failure onto the error taxonomy.
func (c *Client) statusError(op string, resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var we wireError
	_ = json.Unmarshal(payload, &we)
	msg := we.Error.Message
	if msg == "" {
		msg = resp.Status
	}

	kind := core.RemoteInternal
	switch {
	case we.Error.Status == "UNAUTHENTICATED" || resp.StatusCode == http.StatusUnauthorized:
		kind = core.RemoteInvalidCredential
	case resp.StatusCode == http.StatusForbidden:
		kind = core.RemotePermissionDenied
	case resp.StatusCode == http.StatusNotFound:
		kind = core.RemoteNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = core.RemoteQuotaExceeded
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		kind = core.RemoteTimeout
	case resp.StatusCode >= 500:
		kind = core.RemoteUnavailable
	case resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "api key"):
		kind = core.RemoteInvalidCredential
	}
	return &core.RemoteError{Op: op, Kind: kind, StatusCode: resp.StatusCode, Message: msg}
}

func decodeStore(ws wireStore) core.Store {
	st := core.Store{ID: ws.Name, DisplayName: ws.DisplayName}
	if ws.CreateTime != "" {
		if t, err := time.Parse(time.RFC3339, ws.CreateTime); err == nil {
			st.CreateTime = t
		}
	}
	if ws.ActiveFileCount != "" {
		if n, err := strconv.Atoi(ws.ActiveFileCount); err == nil {
			st.FileCount = n
		}
	}
	return st
}

func decodeFileInfo(wf wireFileInfo) core.FileInfo {
	fi := core.FileInfo{ID: wf.Name, DisplayName: wf.DisplayName}
	// sizeBytes is an int64 serialized as a JSON string.
	if wf.SizeBytes != "" {
		if n, err := strconv.ParseInt(wf.SizeBytes, 10, 64); err == nil {
			fi.SizeBytes = n
		}
	}
	switch wf.State {
	case "PROCESSING":
		fi.Status = core.UploadProcessing
	case "ACTIVE":
		fi.Status = core.UploadActive
	case "FAILED":
		fi.Status = core.UploadFailed
	default:
		fi.Status = core.UploadPending
	}
	if wf.CreateTime != "" {
		if t, err := time.Parse(time.RFC3339, wf.CreateTime); err == nil {
			fi.CreateTime = t
		}
	}
	return fi
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// String renders a short description without the key.
func (c *Client) String() string {
	return fmt.Sprintf("gemini(%s, key=%s)", c.baseURL, logging.Redact(c.apiKey))
}
