package occtl

import (
	"context"
	"fmt"
)

const (
	ModeJSON = "json"
	ModeText = "text"
)

// UserSource produces the canonical session list for `show users`.
type UserSource interface {
	Users(ctx context.Context) ([]Session, error)
}

// JSONUsers reads `occtl --json show users` and normalizes each element.
// Elements that are not objects are dropped.
type JSONUsers struct {
	reader *JSONReader
}

func NewJSONUsers(reader *JSONReader) *JSONUsers {
	return &JSONUsers{reader: reader}
}

func (u *JSONUsers) Users(ctx context.Context) ([]Session, error) {
	rows, err := u.reader.ReadArray(ctx, "show", "users")
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(rows))
	for _, row := range rows {
		if s := NormalizeUser(row); s != nil {
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}

// TextUsers reads the plain-text `occtl show users` table for deployments
// whose occtl lacks --json.
type TextUsers struct {
	exec Executor
}

func NewTextUsers(exec Executor) *TextUsers {
	return &TextUsers{exec: exec}
}

func (u *TextUsers) Users(ctx context.Context) ([]Session, error) {
	res, err := u.exec.Run(ctx, "show", "users")
	if err != nil {
		return nil, err
	}
	return ParseShowUsers(res.Stdout), nil
}

// NewUserSource selects the producer for the configured output mode.
func NewUserSource(mode string, exec Executor) (UserSource, error) {
	switch mode {
	case ModeJSON, "":
		return NewJSONUsers(NewJSONReader(exec)), nil
	case ModeText:
		return NewTextUsers(exec), nil
	default:
		return nil, fmt.Errorf("unknown occtl output mode %q", mode)
	}
}
