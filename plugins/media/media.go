// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

// Package media provides the built-in media library plugin.
package media

import (
	"context"
	_ "embed"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/bizbox/bizbox/internal/plugin"
)

//go:embed plugin.yaml
var manifestYAML []byte

// Manifest parses the embedded plugin manifest.
func Manifest() (*plugin.Manifest, error) {
	return plugin.ParseManifest(manifestYAML)
}

// maxUploadBytes caps a single upload at 50 MiB.
const maxUploadBytes = 50 << 20

// allowedContentTypes are the media types a tenant library accepts.
var allowedContentTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"image/gif":       {},
	"video/mp4":       {},
	"application/pdf": {},
}

// permissionChecker is satisfied by host environments that carry a
// permission enforcer.
type permissionChecker interface {
	Allowed(pluginID, resource, action string) bool
}

// Asset describes one accepted upload.
type Asset struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
}

// Plugin validates uploads and tracks asset metadata in memory.
type Plugin struct {
	mu     sync.Mutex
	host   plugin.Host
	assets map[string]*Asset
}

// New creates an uninitialized media plugin.
func New() *Plugin {
	return &Plugin{assets: make(map[string]*Asset)}
}

// Initialize registers the upload hook.
func (p *Plugin) Initialize(_ context.Context, host plugin.Host) error {
	p.mu.Lock()
	p.host = host
	p.mu.Unlock()

	if err := host.RegisterHook("media.upload", p.handleUpload); err != nil {
		return err
	}

	host.Logger().Info("media plugin ready")
	return nil
}

// Destroy drops all in-memory asset metadata.
func (p *Plugin) Destroy(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assets = make(map[string]*Asset)
	p.host = nil
	return nil
}

// Assets returns a snapshot of accepted uploads.
func (p *Plugin) Assets() []*Asset {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Asset, 0, len(p.assets))
	for _, a := range p.assets {
		out = append(out, a)
	}
	return out
}

// handleUpload expects args: filename (string), content type (string),
// size in bytes (int64). It returns the accepted *Asset.
func (p *Plugin) handleUpload(ctx context.Context, args ...any) (any, error) {
	p.mu.Lock()
	host := p.host
	p.mu.Unlock()

	if checker, ok := host.Env().(permissionChecker); ok {
		if !checker.Allowed(host.PluginID(), "media", "upload") {
			return nil, oops.Code("UPLOAD_FORBIDDEN").
				Errorf("upload permission not granted")
		}
	}

	if len(args) < 3 {
		return nil, oops.Code("UPLOAD_INVALID").Errorf("upload requires filename, content type, and size")
	}
	filename, ok := args[0].(string)
	if !ok || filename == "" {
		return nil, oops.Code("UPLOAD_INVALID").With("filename", args[0]).Errorf("filename must be a non-empty string")
	}
	contentType, ok := args[1].(string)
	if !ok {
		return nil, oops.Code("UPLOAD_INVALID").With("content_type", args[1]).Errorf("content type must be a string")
	}
	size, ok := args[2].(int64)
	if !ok || size <= 0 {
		return nil, oops.Code("UPLOAD_INVALID").With("size", args[2]).Errorf("size must be a positive int64")
	}

	if _, allowed := allowedContentTypes[contentType]; !allowed {
		return nil, oops.Code("UPLOAD_UNSUPPORTED_TYPE").
			With("content_type", contentType).
			Errorf("content type %s is not accepted", contentType)
	}
	if size > maxUploadBytes {
		return nil, oops.Code("UPLOAD_TOO_LARGE").
			With("size", size).
			With("limit", int64(maxUploadBytes)).
			Errorf("upload exceeds %d byte limit", maxUploadBytes)
	}

	asset := &Asset{
		ID:          ulid.Make().String(),
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
	}

	p.mu.Lock()
	p.assets[asset.ID] = asset
	p.mu.Unlock()

	if err := host.EmitEvent(ctx, "media.asset.uploaded", asset); err != nil {
		return nil, err
	}
	return asset, nil
}
