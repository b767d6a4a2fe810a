package repository

import "errors"

var (
	ErrNotFound      = errors.New("record not found")
	ErrConflict      = errors.New("record already exists")
	ErrRunNotRunning = errors.New("run is not in running state")
	ErrRunStatus     = errors.New("run status must be terminal")
)
