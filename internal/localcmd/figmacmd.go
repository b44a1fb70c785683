package localcmd

import (
	"context"
	"encoding/json"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

// decodeParams unmarshals a params object, tolerating an absent one.
func decodeParams(params json.RawMessage, dst any) *protocol.CommandError {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return protocol.Errorf(protocol.KindBadRequest, "malformed params: %v", err)
	}
	return nil
}

// fileKeyOrDefault applies the configured default when the caller omits the
// file key. REST commands cannot run without one.
func (r *Registry) fileKeyOrDefault(fileKey string) (string, *protocol.CommandError) {
	if fileKey != "" {
		return fileKey, nil
	}
	if r.deps.Figma == nil {
		return "", protocol.Errorf(protocol.KindUnauthenticated, "REST API is not configured")
	}
	if def := r.deps.Figma.DefaultFileKey(); def != "" {
		return def, nil
	}
	return "", protocol.Errorf(protocol.KindBadRequest, "fileKey is required and no default is configured")
}

func (r *Registry) api() (FigmaAPI, *protocol.CommandError) {
	if r.deps.Figma == nil {
		return nil, protocol.Errorf(protocol.KindUnauthenticated, "REST API is not configured")
	}
	return r.deps.Figma, nil
}

func (r *Registry) getComments(ctx context.Context, _ string, params json.RawMessage) (any, *protocol.CommandError) {
	var p struct {
		FileKey    string `json:"fileKey"`
		AsMarkdown bool   `json:"asMarkdown"`
	}
	if cerr := decodeParams(params, &p); cerr != nil {
		return nil, cerr
	}
	api, cerr := r.api()
	if cerr != nil {
		return nil, cerr
	}
	fileKey, cerr := r.fileKeyOrDefault(p.FileKey)
	if cerr != nil {
		return nil, cerr
	}
	res, err := api.GetComments(ctx, fileKey, p.AsMarkdown)
	if err != nil {
		return nil, protocol.FromError(err)
	}
	return res, nil
}

func (r *Registry) postComment(ctx context.Context, _ string, params json.RawMessage) (any, *protocol.CommandError) {
	var p struct {
		FileKey string  `json:"fileKey"`
		Message string  `json:"message"`
		NodeID  string  `json:"nodeId"`
		X       float64 `json:"x"`
		Y       float64 `json:"y"`
	}
	if cerr := decodeParams(params, &p); cerr != nil {
		return nil, cerr
	}
	if p.Message == "" {
		return nil, protocol.Errorf(protocol.KindBadRequest, "message is required")
	}
	api, cerr := r.api()
	if cerr != nil {
		return nil, cerr
	}
	fileKey, cerr := r.fileKeyOrDefault(p.FileKey)
	if cerr != nil {
		return nil, cerr
	}
	res, err := api.PostComment(ctx, fileKey, p.Message, p.NodeID, p.X, p.Y)
	if err != nil {
		return nil, protocol.FromError(err)
	}
	return res, nil
}

func (r *Registry) replyComment(ctx context.Context, _ string, params json.RawMessage) (any, *protocol.CommandError) {
	var p struct {
		FileKey   string `json:"fileKey"`
		CommentID string `json:"commentId"`
		Message   string `json:"message"`
	}
	if cerr := decodeParams(params, &p); cerr != nil {
		return nil, cerr
	}
	if p.CommentID == "" {
		return nil, protocol.Errorf(protocol.KindBadRequest, "commentId is required")
	}
	if p.Message == "" {
		return nil, protocol.Errorf(protocol.KindBadRequest, "message is required")
	}
	api, cerr := r.api()
	if cerr != nil {
		return nil, cerr
	}
	fileKey, cerr := r.fileKeyOrDefault(p.FileKey)
	if cerr != nil {
		return nil, cerr
	}
	res, err := api.ReplyComment(ctx, fileKey, p.CommentID, p.Message)
	if err != nil {
		return nil, protocol.FromError(err)
	}
	return res, nil
}

type reactionParams struct {
	FileKey   string `json:"fileKey"`
	CommentID string `json:"commentId"`
	Emoji     string `json:"emoji"`
	Cursor    string `json:"cursor"`
}

func (r *Registry) reactionArgs(params json.RawMessage, needEmoji bool) (*reactionParams, FigmaAPI, *protocol.CommandError) {
	var p reactionParams
	if cerr := decodeParams(params, &p); cerr != nil {
		return nil, nil, cerr
	}
	if p.CommentID == "" {
		return nil, nil, protocol.Errorf(protocol.KindBadRequest, "commentId is required")
	}
	if needEmoji && p.Emoji == "" {
		return nil, nil, protocol.Errorf(protocol.KindBadRequest, "emoji is required")
	}
	api, cerr := r.api()
	if cerr != nil {
		return nil, nil, cerr
	}
	fileKey, cerr := r.fileKeyOrDefault(p.FileKey)
	if cerr != nil {
		return nil, nil, cerr
	}
	p.FileKey = fileKey
	return &p, api, nil
}

func (r *Registry) postReaction(ctx context.Context, _ string, params json.RawMessage) (any, *protocol.CommandError) {
	p, api, cerr := r.reactionArgs(params, true)
	if cerr != nil {
		return nil, cerr
	}
	res, err := api.PostReaction(ctx, p.FileKey, p.CommentID, p.Emoji)
	if err != nil {
		return nil, protocol.FromError(err)
	}
	return res, nil
}

func (r *Registry) getReactions(ctx context.Context, _ string, params json.RawMessage) (any, *protocol.CommandError) {
	p, api, cerr := r.reactionArgs(params, false)
	if cerr != nil {
		return nil, cerr
	}
	res, err := api.GetReactions(ctx, p.FileKey, p.CommentID, p.Cursor)
	if err != nil {
		return nil, protocol.FromError(err)
	}
	return res, nil
}

func (r *Registry) deleteReaction(ctx context.Context, _ string, params json.RawMessage) (any, *protocol.CommandError) {
	p, api, cerr := r.reactionArgs(params, true)
	if cerr != nil {
		return nil, cerr
	}
	res, err := api.DeleteReaction(ctx, p.FileKey, p.CommentID, p.Emoji)
	if err != nil {
		return nil, protocol.FromError(err)
	}
	return res, nil
}

type figmaConfig struct {
	DefaultFileKey string `json:"defaultFileKey"`
	APIBase        string `json:"apiBase"`
	Authenticated  bool   `json:"authenticated"`
}

// getConfig reports the REST configuration. Token values are never included.
func (r *Registry) getConfig(context.Context, string, json.RawMessage) (any, *protocol.CommandError) {
	api, cerr := r.api()
	if cerr != nil {
		return nil, cerr
	}
	return figmaConfig{
		DefaultFileKey: api.DefaultFileKey(),
		APIBase:        api.APIBase(),
		Authenticated:  api.Authenticated(),
	}, nil
}

// setConfig updates the default file key for this broker run.
func (r *Registry) setConfig(_ context.Context, _ string, params json.RawMessage) (any, *protocol.CommandError) {
	var p struct {
		FileKey string `json:"fileKey"`
	}
	if cerr := decodeParams(params, &p); cerr != nil {
		return nil, cerr
	}
	if p.FileKey == "" {
		return nil, protocol.Errorf(protocol.KindBadRequest, "fileKey is required")
	}
	api, cerr := r.api()
	if cerr != nil {
		return nil, cerr
	}
	api.SetDefaultFileKey(p.FileKey)
	return figmaConfig{
		DefaultFileKey: api.DefaultFileKey(),
		APIBase:        api.APIBase(),
		Authenticated:  api.Authenticated(),
	}, nil
}

func (r *Registry) notify(ctx context.Context, _ string, params json.RawMessage) (any, *protocol.CommandError) {
	var p struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	if cerr := decodeParams(params, &p); cerr != nil {
		return nil, cerr
	}
	if p.Message == "" {
		return nil, protocol.Errorf(protocol.KindBadRequest, "message is required")
	}
	if r.deps.Notifier == nil {
		return nil, protocol.Errorf(protocol.KindInternal, "no notifier configured")
	}
	if err := r.deps.Notifier.Notify(ctx, p.Title, p.Message); err != nil {
		return nil, protocol.FromError(err)
	}
	return "notification sent", nil
}
