package core

import "context"

type comicIDKey struct{}
type runIDKey struct{}

func WithComicID(ctx context.Context, comicID string) context.Context {
	if ctx == nil || comicID == "" {
		return ctx
	}
	return context.WithValue(ctx, comicIDKey{}, comicID)
}

func WithRunID(ctx context.Context, runID string) context.Context {
	if ctx == nil || runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey{}, runID)
}

func ComicIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(comicIDKey{}).(string); ok {
		return v
	}
	return ""
}

func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}
