package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE 42883 undefined_function：fuzzystrmatch 扩展未安装
func IsUndefinedFunction(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42883"
	}
	// sqlite: "no such function: levenshtein"
	return err != nil && strings.Contains(err.Error(), "no such function")
}

// IsConnectionError SQLSTATE 08xxx 连接类错误，或驱动层连接已断开
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P01"
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "bad connection") || strings.Contains(msg, "conn closed") ||
		strings.Contains(msg, "connection refused")
}
