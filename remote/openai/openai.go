// Package openai implements core.RemoteService on top of the OpenAI
// platform using the official client: vector stores stand in for document
// stores, file uploads attach through the vector store files API, and
// grounded answers come from the Responses API with the file_search tool.
package openai

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/rzg777/filesearch/core"
	"github.com/rzg777/filesearch/logging"
)

// Options configure the OpenAI backend adapter.
type Options struct {
	BaseURL string
	Logger  logging.Logger
}

// Client adapts the OpenAI vector store APIs to core.RemoteService.
type Client struct {
	client *openai.Client
	logger logging.Logger
}

var _ core.RemoteService = (*Client)(nil)

// NewClient creates an OpenAI backend for the given API key.
func NewClient(apiKey string, optFns ...func(o *Options)) (*Client, error) {
	if apiKey == "" {
		return nil, &core.ConfigurationError{Op: "openai client", Reason: "missing API key"}
	}
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(reqOpts...)
	return NewClientFromClient(&client, optFns...), nil
}

// NewClientFromClient wraps an existing OpenAI client.
func NewClientFromClient(client *openai.Client, optFns ...func(o *Options)) *Client {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{client: client, logger: opts.Logger}
}

// CreateStore implements core.RemoteService using a vector store.
func (c *Client) CreateStore(ctx context.Context, displayName string) (core.Store, error) {
	vs, err := c.client.VectorStores.New(ctx, openai.VectorStoreNewParams{
		Name: openai.String(displayName),
	})
	if err != nil {
		return core.Store{}, c.wrapErr("create store", err)
	}
	return decodeStore(vs), nil
}

// ListStores implements core.RemoteService, following pagination to the end.
func (c *Client) ListStores(ctx context.Context) ([]core.Store, error) {
	var stores []core.Store
	iter := c.client.VectorStores.ListAutoPaging(ctx, openai.VectorStoreListParams{})
	for iter.Next() {
		vs := iter.Current()
		stores = append(stores, decodeStore(&vs))
	}
	if err := iter.Err(); err != nil {
		return nil, c.wrapErr("list stores", err)
	}
	return stores, nil
}

// DeleteStore implements core.RemoteService.
func (c *Client) DeleteStore(ctx context.Context, id string) error {
	if _, err := c.client.VectorStores.Delete(ctx, id); err != nil {
		return c.wrapErr("delete store", err)
	}
	return nil
}

// UploadFile implements core.RemoteService: the bytes go to the files API
// first, then the file is attached to the vector store with the chunking
// configuration and metadata attributes.
func (c *Client) UploadFile(ctx context.Context, req core.UploadRequest) (core.UploadHandle, error) {
	f, err := c.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(bytes.NewReader(req.Content), req.DisplayName, req.MIMEType),
		Purpose: openai.FilePurposeAssistants,
	})
	if err != nil {
		return core.UploadHandle{}, c.wrapErr("upload file", err)
	}

	params := openai.VectorStoreFileNewParams{
		FileID: f.ID,
		ChunkingStrategy: openai.FileChunkingStrategyParamUnion{
			OfStatic: &openai.StaticFileChunkingStrategyObjectParam{
				Static: openai.StaticFileChunkingStrategyParam{
					MaxChunkSizeTokens: int64(req.Chunking.MaxTokensPerChunk),
					ChunkOverlapTokens: int64(req.Chunking.OverlapTokens),
				},
			},
		},
	}
	if len(req.Metadata) > 0 {
		attrs := make(map[string]openai.VectorStoreFileNewParamsAttributeUnion, len(req.Metadata))
		for _, field := range req.Metadata {
			attrs[field.Key] = openai.VectorStoreFileNewParamsAttributeUnion{
				OfString: openai.String(field.Value),
			}
		}
		params.Attributes = attrs
	}
	if _, err := c.client.VectorStores.Files.New(ctx, req.StoreID, params); err != nil {
		return core.UploadHandle{}, c.wrapErr("upload file", err)
	}
	c.logger.Info("file uploaded", "store_id", req.StoreID, "file", req.DisplayName)
	return core.UploadHandle{StoreID: req.StoreID, FileID: f.ID}, nil
}

// GetUploadStatus implements core.RemoteService by reading the vector store
// file status.
func (c *Client) GetUploadStatus(ctx context.Context, h core.UploadHandle) (core.UploadStatus, error) {
	f, err := c.client.VectorStores.Files.Get(ctx, h.StoreID, h.FileID)
	if err != nil {
		return core.UploadPending, c.wrapErr("upload status", err)
	}
	switch f.Status {
	case "in_progress":
		return core.UploadProcessing, nil
	case "completed":
		return core.UploadActive, nil
	case "failed", "cancelled":
		return core.UploadFailed, nil
	default:
		return core.UploadPending, nil
	}
}

// ListFiles implements core.RemoteService, following pagination to the end.
// The files API lists globally across vector stores.
func (c *Client) ListFiles(ctx context.Context) ([]core.FileInfo, error) {
	var files []core.FileInfo
	iter := c.client.Files.ListAutoPaging(ctx, openai.FileListParams{})
	for iter.Next() {
		f := iter.Current()
		files = append(files, decodeFileInfo(&f))
	}
	if err := iter.Err(); err != nil {
		return nil, c.wrapErr("list files", err)
	}
	return files, nil
}

// DeleteFile implements core.RemoteService.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	if _, err := c.client.Files.Delete(ctx, id); err != nil {
		return c.wrapErr("delete file", err)
	}
	return nil
}

// filterExpr matches a single equality filter like: category = 'finance'
var filterExpr = regexp.MustCompile(`^\s*(\w+)\s*=\s*'([^']*)'\s*$`)

// GenerateGrounded implements core.RemoteService using the Responses API with
// the file_search tool. Only single-equality metadata filters translate onto
// this backend; anything richer is rejected before the call.
func (c *Client) GenerateGrounded(ctx context.Context, req core.GenerateRequest) (core.GenerateResult, error) {
	tool := responses.FileSearchToolParam{
		VectorStoreIDs: []string{req.StoreID},
	}
	if req.MetadataFilter != "" {
		m := filterExpr.FindStringSubmatch(req.MetadataFilter)
		if m == nil {
			return core.GenerateResult{}, &core.ConfigurationError{
				Op:     "generate",
				Reason: "metadata filter must have the form: key = 'value'",
			}
		}
		tool.Filters = responses.FileSearchToolFiltersUnionParam{
			OfComparisonFilter: &shared.ComparisonFilterParam{
				Key:   m[1],
				Type:  shared.ComparisonFilterTypeEq,
				Value: shared.ComparisonFilterValueUnionParam{OfString: openai.String(m[2])},
			},
		}
	}

	resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:   shared.ResponsesModel(req.Model),
		Input:   responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Prompt)},
		Tools:   []responses.ToolUnionParam{{OfFileSearch: &tool}},
		Include: []responses.ResponseIncludable{responses.ResponseIncludableFileSearchCallResults},
	})
	if err != nil {
		return core.GenerateResult{}, c.wrapErr("generate", err)
	}

	res := core.GenerateResult{Text: resp.OutputText()}
	for _, item := range resp.Output {
		if item.Type != "file_search_call" {
			continue
		}
		call := item.AsFileSearchCall()
		for _, r := range call.Results {
			res.Chunks = append(res.Chunks, core.GroundingChunk{
				Title:   r.Filename,
				Locator: r.FileID,
				Snippet: r.Text,
			})
		}
	}
	return res, nil
}

// wrapErr maps SDK failures onto the error taxonomy.
func (c *Client) wrapErr(op string, err error) error {
	var apierr *openai.Error
	if !errors.As(err, &apierr) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return &core.RemoteError{Op: op, Kind: core.RemoteTimeout, Err: err}
		}
		return &core.RemoteError{Op: op, Kind: core.RemoteUnavailable, Err: err}
	}
	kind := core.RemoteInternal
	switch {
	case apierr.StatusCode == http.StatusUnauthorized:
		kind = core.RemoteInvalidCredential
	case apierr.StatusCode == http.StatusForbidden:
		kind = core.RemotePermissionDenied
	case apierr.StatusCode == http.StatusNotFound:
		kind = core.RemoteNotFound
	case apierr.StatusCode == http.StatusTooManyRequests:
		kind = core.RemoteQuotaExceeded
	case apierr.StatusCode == http.StatusRequestTimeout || apierr.StatusCode == http.StatusGatewayTimeout:
		kind = core.RemoteTimeout
	case apierr.StatusCode >= 500:
		kind = core.RemoteUnavailable
	}
	return &core.RemoteError{Op: op, Kind: kind, StatusCode: apierr.StatusCode, Message: apierr.Message, Err: err}
}

func decodeFileInfo(f *openai.FileObject) core.FileInfo {
	status := core.UploadPending
	switch f.Status {
	case "processed":
		status = core.UploadActive
	case "error":
		status = core.UploadFailed
	case "uploaded":
		status = core.UploadProcessing
	}
	return core.FileInfo{
		ID:          f.ID,
		DisplayName: f.Filename,
		SizeBytes:   f.Bytes,
		Status:      status,
		CreateTime:  time.Unix(f.CreatedAt, 0).UTC(),
	}
}

func decodeStore(vs *openai.VectorStore) core.Store {
	return core.Store{
		ID:          vs.ID,
		DisplayName: vs.Name,
		CreateTime:  time.Unix(vs.CreatedAt, 0).UTC(),
		FileCount:   int(vs.FileCounts.Completed),
	}
}
