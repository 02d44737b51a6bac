package repository

import "errors"

// ErrNotFound lo devuelven todas las implementaciones cuando no existe el registro.
// pgx.ErrNoRows y redis.Nil se traducen a este error.
var ErrNotFound = errors.New("record not found")
