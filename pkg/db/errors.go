package db

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

type ErrKind string

const (
	ErrKindUnreachable     ErrKind = "unreachable"
	ErrKindAuth            ErrKind = "auth"
	ErrKindMissingFile     ErrKind = "missing-file"
	ErrKindUnknownDatabase ErrKind = "unknown-database"
	ErrKindDriver          ErrKind = "driver"
)

// ConnectionError reports why a connection could not be established.
type ConnectionError struct {
	Kind   ErrKind
	Engine models.EngineKind
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("%s connection failed", e.Engine)
	if e.Target != "" {
		msg += " (" + e.Target + ")"
	}
	switch e.Kind {
	case ErrKindUnreachable:
		msg += ": server unreachable"
	case ErrKindAuth:
		msg += ": authentication rejected"
	case ErrKindMissingFile:
		msg += ": database file not found"
	case ErrKindUnknownDatabase:
		msg += ": unknown database"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Hint() string {
	switch e.Kind {
	case ErrKindUnreachable:
		return "check that the server is running and that -H/--host and -P/--port are correct"
	case ErrKindAuth:
		return "check -u/--user and the password (use -p to be prompted, or set DBCLI_PASSWORD)"
	case ErrKindMissingFile:
		return "check the -f/--file path, or pass --create to start a new database file"
	case ErrKindUnknownDatabase:
		return "run 'show databases' without -d to list the databases on this server"
	}
	return "run with --verbose for driver details"
}

func classify(params models.ConnectionParams, err error) error {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr
	}

	out := &ConnectionError{
		Kind:   ErrKindDriver,
		Engine: params.Kind,
		Target: params.Target(),
		Err:    err,
	}

	var (
		myErr  *mysql.MySQLError
		pqErr  *pq.Error
		netErr net.Error
		opErr  *net.OpError
	)
	switch {
	case errors.As(err, &myErr):
		switch myErr.Number {
		case 1044, 1045, 1698:
			out.Kind = ErrKindAuth
		case 1049:
			out.Kind = ErrKindUnknownDatabase
		}
	case errors.As(err, &pqErr):
		switch pqErr.Code {
		case "28P01", "28000":
			out.Kind = ErrKindAuth
		case "3D000":
			out.Kind = ErrKindUnknownDatabase
		}
	case errors.Is(err, os.ErrNotExist):
		out.Kind = ErrKindMissingFile
	case errors.As(err, &opErr), errors.As(err, &netErr), errors.Is(err, syscall.ECONNREFUSED):
		out.Kind = ErrKindUnreachable
	}

	return out
}
