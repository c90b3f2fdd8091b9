package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/Rescribe/core/cas"
	"github.com/FocuswithJustin/Rescribe/core/convert"
	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/core/transforms"
	"github.com/FocuswithJustin/Rescribe/internal/logging"
	"github.com/FocuswithJustin/Rescribe/internal/server"
	"github.com/FocuswithJustin/Rescribe/internal/validation"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// FormatInfo describes a registered format.
type FormatInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases,omitempty"`
	Extensions  []string `json:"extensions"`
	MIMEType    string   `json:"mime_type"`
	Binary      bool     `json:"binary"`
	CanRead     bool     `json:"can_read"`
	CanWrite    bool     `json:"can_write"`
	Version     string   `json:"version,omitempty"`
}

// ConversionParams selects formats and options for a conversion. On
// /convert they come from the query string, on /jobs from the JSON body.
type ConversionParams struct {
	From               string            `json:"from,omitempty"`
	To                 string            `json:"to"`
	Transforms         []string          `json:"transforms,omitempty"`
	PreserveSourceInfo bool              `json:"preserve_source_info,omitempty"`
	EmbedResources     bool              `json:"embed_resources,omitempty"`
	Pretty             bool              `json:"pretty,omitempty"`
	ReadOptions        map[string]string `json:"read_options,omitempty"`
	WriteOptions       map[string]string `json:"write_options,omitempty"`
}

// ConvertRequest is the request body for POST /jobs.
type ConvertRequest struct {
	ConversionParams
	Input    string `json:"input"`
	Encoding string `json:"encoding,omitempty"` // "utf-8" (default) or "base64"
	Filename string `json:"filename,omitempty"`
}

// ConvertResult is the result of a conversion.
type ConvertResult struct {
	RunID     string               `json:"run_id"`
	From      string               `json:"from"`
	To        string               `json:"to"`
	LossClass string               `json:"loss_class"`
	Loss      *ir.LossReport       `json:"loss_report"`
	Warnings  []ir.FidelityWarning `json:"warnings"`
	Output    string               `json:"output"`
	Encoding  string               `json:"encoding"`
	MimeType  string               `json:"mime_type"`
	Resources []ResourceInfo       `json:"resources,omitempty"`
	Duration  string               `json:"duration"`

	raw []byte
}

// ResourceInfo describes an exported resource. Data is set when the server
// has no resource store; otherwise URL points at /resources/{blake3}.
type ResourceInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
	BLAKE3   string `json:"blake3,omitempty"`
	URL      string `json:"url,omitempty"`
	Data     string `json:"data,omitempty"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Formats int    `json:"formats"`
	Jobs    int    `json:"jobs"`
	Clients int    `json:"websocket_clients"`
}

const (
	encodingUTF8   = "utf-8"
	encodingBase64 = "base64"
)

// AllowedUploadContentTypes lists the request media types accepted by
// /convert besides the formats' own MIME types.
var AllowedUploadContentTypes = []string{
	"application/octet-stream",
	"multipart/form-data",
	"text/plain",
	"application/xml",
	"text/xml",
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "Rescribe API",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"GET /formats",
			"POST /convert",
			"POST /jobs",
			"GET /jobs/:id",
			"DELETE /jobs/:id",
			"GET /jobs/:id/output",
			"GET /resources/:blake3",
			"WS /ws",
			"GET /metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	respond(w, http.StatusOK, HealthInfo{
		Status:  "healthy",
		Version: Version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		Formats: len(s.registry().List()),
		Jobs:    len(s.jobs.List()),
		Clients: s.hub.ClientCount(),
	})
}

func (s *Server) registry() *plugins.Registry {
	if s.converter.Registry == nil {
		return plugins.Default
	}
	return s.converter.Registry
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	formats := s.registry().List()
	infos := make([]FormatInfo, 0, len(formats))
	for _, f := range formats {
		infos = append(infos, FormatInfo{
			Name:        f.Name,
			Description: f.Description,
			Aliases:     f.Aliases,
			Extensions:  f.Extensions,
			MIMEType:    f.MIMEType(),
			Binary:      f.Binary,
			CanRead:     f.CanRead(),
			CanWrite:    f.CanWrite(),
			Version:     f.Version,
		})
	}

	respondList(w, infos, len(infos))
}

// handleConvert handles POST /convert. The document is the raw request
// body or the "file" part of a multipart form. With ?raw=true the output is
// returned as is, with warning and loss headers, instead of the JSON
// envelope.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	params, err := paramsFromQuery(r.URL.Query())
	if err != nil {
		respondConversionError(w, err)
		return
	}
	input, filename, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	if params.To == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMS", "to is required")
		return
	}

	req, err := buildRequest(input, filename, params)
	if err != nil {
		respondConversionError(w, err)
		return
	}
	res, err := s.converter.Convert(r.Context(), req)
	if err != nil {
		respondConversionError(w, err)
		return
	}

	result, err := s.convertResult(res)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_FAILED", err.Error())
		return
	}

	if raw, _ := strconv.ParseBool(r.URL.Query().Get("raw")); raw {
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("X-Rescribe-Run-ID", res.RunID)
		w.Header().Set("X-Rescribe-Loss-Class", result.LossClass)
		w.Header().Set("X-Rescribe-Warnings", strconv.Itoa(len(res.Warnings)))
		w.WriteHeader(http.StatusOK)
		w.Write(res.Output)
		return
	}
	respond(w, http.StatusOK, result)
}

// readUpload reads the request body within the configured size limit. It
// responds with an error and returns ok=false when the upload is unusable.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (data []byte, filename string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.maxUploadSize())

	contentType := r.Header.Get("Content-Type")
	if contentType != "" && !s.acceptsContentType(contentType) {
		respondError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
			fmt.Sprintf("Content-Type %q is not accepted", contentType))
		return nil, "", false
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.cfg.maxUploadSize()); err != nil {
			respondUploadError(w, err)
			return nil, "", false
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "MISSING_FILE", "No file uploaded")
			return nil, "", false
		}
		defer file.Close()
		if data, err = io.ReadAll(file); err != nil {
			respondUploadError(w, err)
			return nil, "", false
		}
		filename = header.Filename
	} else {
		var err error
		if data, err = io.ReadAll(r.Body); err != nil {
			respondUploadError(w, err)
			return nil, "", false
		}
		filename = r.URL.Query().Get("filename")
	}

	if filename != "" {
		filename = server.LimitStringLength(server.SanitizeUserInput(filename), validation.MaxFilenameLength)
		if err := validation.ValidateFilename(filename); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_FILENAME", "Invalid filename provided")
			return nil, "", false
		}
		if _, err := validation.ValidateFileType(bytes.NewReader(data), filename); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_FILE_TYPE", fmt.Sprintf("File validation failed: %v", err))
			return nil, "", false
		}
	}
	return data, filename, true
}

func (s *Server) acceptsContentType(contentType string) bool {
	if server.ValidateContentType(contentType, AllowedUploadContentTypes) {
		return true
	}
	for _, f := range s.registry().List() {
		for _, mt := range f.MIMETypes {
			base, _, _ := strings.Cut(mt, ";")
			if server.ValidateContentType(contentType, []string{base}) {
				return true
			}
		}
	}
	return false
}

func respondUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE",
			fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit))
		return
	}
	respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read upload")
}

// paramsFromQuery reads conversion parameters. Reader options are passed
// as read.<key>=<value>, writer options as write.<key>=<value>.
func paramsFromQuery(q url.Values) (ConversionParams, error) {
	p := ConversionParams{
		From:       q.Get("from"),
		To:         q.Get("to"),
		Transforms: q["transform"],
	}
	flags := []struct {
		name string
		dst  *bool
	}{
		{"preserve_source_info", &p.PreserveSourceInfo},
		{"embed_resources", &p.EmbedResources},
		{"pretty", &p.Pretty},
	}
	for _, f := range flags {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, apperrors.NewValidation(f.name, fmt.Sprintf("expected a boolean, got %q", v))
		}
		*f.dst = b
	}
	p.ReadOptions = prefixedOptions(q, "read.")
	p.WriteOptions = prefixedOptions(q, "write.")
	return p, nil
}

// prefixedOptions collects the last value of every key starting with
// prefix, keyed by the rest of the name.
func prefixedOptions(q url.Values, prefix string) map[string]string {
	var out map[string]string
	for key, values := range q {
		if name, ok := strings.CutPrefix(key, prefix); ok && name != "" && len(values) > 0 {
			if out == nil {
				out = make(map[string]string)
			}
			out[name] = values[len(values)-1]
		}
	}
	return out
}

// buildRequest turns API parameters into a converter request.
func buildRequest(input []byte, filename string, p ConversionParams) (convert.Request, error) {
	req := convert.Request{
		Input:     input,
		InputPath: filename,
		From:      p.From,
		To:        p.To,
		Parse: plugins.ParseOptions{
			PreserveSourceInfo: p.PreserveSourceInfo,
			EmbedResources:     p.EmbedResources,
			Extra:              p.ReadOptions,
		},
		Emit: plugins.EmitOptions{
			Pretty:        p.Pretty,
			UseSourceInfo: p.PreserveSourceInfo,
			Extra:         p.WriteOptions,
		},
	}
	if len(p.Transforms) > 0 {
		pipeline, err := transforms.ParseAll(p.Transforms)
		if err != nil {
			return req, err
		}
		req.Transforms = []plugins.Transformer{pipeline}
	}
	return req, nil
}

// convertResult renders a conversion for JSON. Resources go to the store
// when one is configured.
func (s *Server) convertResult(res *convert.Result) (*ConvertResult, error) {
	out := &ConvertResult{
		RunID:     res.RunID,
		From:      res.From,
		To:        res.To,
		LossClass: string(res.LossClass()),
		Loss:      res.Loss,
		Warnings:  res.Warnings,
		Duration:  res.Duration.String(),
		raw:       res.Output,
	}
	if out.Warnings == nil {
		out.Warnings = []ir.FidelityWarning{}
	}
	if f, err := s.registry().Lookup(res.To); err == nil {
		out.MimeType = f.MIMEType()
		if f.Binary {
			out.Output, out.Encoding = base64.StdEncoding.EncodeToString(res.Output), encodingBase64
		} else {
			out.Output, out.Encoding = string(res.Output), encodingUTF8
		}
	} else {
		out.Output, out.Encoding = base64.StdEncoding.EncodeToString(res.Output), encodingBase64
		out.MimeType = "application/octet-stream"
	}
	s.metrics.RecordOutput(res.To, len(res.Output))

	var entries []cas.Entry
	if s.store != nil && len(res.Resources) > 0 {
		var err error
		if entries, err = res.StoreResources(s.store); err != nil {
			return nil, err
		}
	}
	for i, r := range res.Resources {
		info := ResourceInfo{
			ID:       string(r.ID),
			Name:     r.FileName(),
			MimeType: r.MimeType,
			Size:     len(r.Data),
		}
		if entries != nil {
			info.BLAKE3 = entries[i].BLAKE3
			info.URL = "/resources/" + entries[i].BLAKE3
		} else {
			info.Data = base64.StdEncoding.EncodeToString(r.Data)
		}
		out.Resources = append(out.Resources, info)
	}
	return out, nil
}

// handleResource handles GET /resources/{hash}, serving a stored resource
// by the BLAKE3 digest reported in conversion results.
func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	if s.store == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource store not configured")
		return
	}

	res, err := s.store.Resource(r.PathValue("hash"))
	switch {
	case errors.Is(err, cas.ErrInvalidHash):
		respondError(w, http.StatusBadRequest, "INVALID_HASH", "Invalid resource hash")
		return
	case errors.Is(err, cas.ErrBlobNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	case err != nil:
		logging.ErrorContext(r.Context(), "failed to load resource", "error", err)
		respondError(w, http.StatusInternalServerError, "STORE_FAILED", "Failed to load resource")
		return
	}

	mimeType := res.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	if res.Name != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": res.Name}))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}

// errorStatus maps a conversion error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	var (
		validationErr *apperrors.ValidationError
		notFoundErr   *apperrors.NotFoundError
		parseErr      *apperrors.ParseError
		transformErr  *apperrors.TransformError
		emitErr       *apperrors.EmitError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, apperrors.ErrCannotDetermineFormat):
		return http.StatusBadRequest, "UNKNOWN_FORMAT"
	case errors.As(err, &notFoundErr):
		return http.StatusBadRequest, "UNKNOWN_" + strings.ToUpper(notFoundErr.Resource)
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity, "PARSE_FAILED"
	case errors.As(err, &transformErr):
		return http.StatusUnprocessableEntity, "TRANSFORM_FAILED"
	case errors.As(err, &emitErr):
		if emitErr.Kind == apperrors.EmitIO {
			return http.StatusInternalServerError, "EMIT_FAILED"
		}
		return http.StatusUnprocessableEntity, "EMIT_FAILED"
	case errors.Is(err, apperrors.ErrUnsupported):
		return http.StatusUnprocessableEntity, "UNSUPPORTED"
	}
	return http.StatusInternalServerError, "CONVERSION_FAILED"
}

func respondConversionError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	respondError(w, status, code, err.Error())
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondList(w http.ResponseWriter, data interface{}, total int) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
