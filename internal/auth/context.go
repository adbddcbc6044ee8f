package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxRoles
)

func WithIdentity(ctx context.Context, userID string, roles []string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxRoles, append([]string(nil), roles...))
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func Roles(ctx context.Context) ([]string, error) {
	v := ctx.Value(ctxRoles)
	if r, ok := v.([]string); ok && len(r) > 0 {
		return r, nil
	}
	return nil, errors.New("roles not in context")
}
