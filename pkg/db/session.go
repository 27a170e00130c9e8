package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/JayJamieson/db-cli/pkg/models"
)

// Session owns the single open Engine of a shell session. It is not safe for
// concurrent use; the shell runs one command at a time.
type Session struct {
	Engine Engine
	Params models.ConnectionParams

	open func(context.Context, models.ConnectionParams) (Engine, error)
}

func NewSession(ctx context.Context, params models.ConnectionParams) (*Session, error) {
	s := &Session{open: Open}
	if err := s.connect(ctx, params); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSessionWithEngine wraps an already open engine.
func NewSessionWithEngine(e Engine, params models.ConnectionParams) *Session {
	return &Session{Engine: e, Params: params.WithDefaults(), open: Open}
}

func (s *Session) connect(ctx context.Context, params models.ConnectionParams) error {
	e, err := s.open(ctx, params)
	if err != nil {
		return err
	}
	s.Engine = e
	s.Params = params.WithDefaults()
	return nil
}

// Use switches the current database, reconnecting when the engine cannot
// switch in place.
func (s *Session) Use(ctx context.Context, name string) error {
	err := s.Engine.UseDatabase(ctx, name)
	if errors.Is(err, ErrReconnectRequired) {
		return s.Reconnect(ctx, name)
	}
	if err != nil {
		return err
	}
	s.Params.Database = name
	return nil
}

// Reconnect closes the current engine and opens a new one against database.
// The old connection is kept if the new one cannot be opened.
func (s *Session) Reconnect(ctx context.Context, database string) error {
	params := s.Params
	params.Database = database

	e, err := s.open(ctx, params)
	if err != nil {
		return err
	}

	if s.Engine != nil {
		if cerr := s.Engine.Close(); cerr != nil {
			e.Close()
			return fmt.Errorf("failed to close previous connection: %w", cerr)
		}
	}
	s.Engine = e
	s.Params = params
	return nil
}

func (s *Session) Close() error {
	if s.Engine == nil {
		return nil
	}
	err := s.Engine.Close()
	s.Engine = nil
	return err
}
