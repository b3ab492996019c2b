package output

import "io"

// LoggerInterface is the feedback surface used while a transaction is in
// flight.
type LoggerInterface interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Debug(format string, args ...interface{})
	ErrWriter() io.Writer
}

var _ LoggerInterface = (*Logger)(nil)
