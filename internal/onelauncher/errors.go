// Package onelauncher defines the shared error taxonomy used across the
// launcher core so callers never see a language-specific panic, only a
// structured CoreError with a stable Kind.
package onelauncher

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the category of a CoreError, per spec §7.
type ErrorKind string

const (
	KindNetwork             ErrorKind = "Network"
	KindHTTP                ErrorKind = "Http"
	KindHashMismatch        ErrorKind = "HashMismatch"
	KindIO                  ErrorKind = "Io"
	KindSerde               ErrorKind = "Serde"
	KindNotFound            ErrorKind = "NotFound"
	KindAlreadyExists       ErrorKind = "AlreadyExists"
	KindUnsupportedLoader   ErrorKind = "UnsupportedLoader"
	KindInvalidLoaderVer    ErrorKind = "InvalidLoaderVersion"
	KindMissingManifest     ErrorKind = "MissingManifest"
	KindIncompatiblePackage ErrorKind = "IncompatiblePackage"
	KindMissingAPIKey       ErrorKind = "MissingApiKey"
	KindProcessorFailed     ErrorKind = "ProcessorFailed"
	KindAuthStep            ErrorKind = "AuthStep"
	KindClusterBusy         ErrorKind = "ClusterBusy"
	KindCancelled           ErrorKind = "Cancelled"
)

// CoreError is the structured error every exported launcher-core call
// returns instead of an ad-hoc error string.
type CoreError struct {
	Kind ErrorKind
	// Fields carries kind-specific structured detail (status code, hash
	// values, loader name, processor jar, auth step, ...).
	Fields map[string]any
	Msg    string
	Err    error
}

func (e *CoreError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *CoreError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &CoreError{Kind: X}) match on Kind alone.
func (e *CoreError) Is(target error) bool {
	var t *CoreError
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func New(kind ErrorKind, msg string) *CoreError {
	return &CoreError{Kind: kind, Msg: msg}
}

func Wrap(kind ErrorKind, err error, msg string) *CoreError {
	return &CoreError{Kind: kind, Err: err, Msg: msg}
}

func WithFields(kind ErrorKind, msg string, fields map[string]any) *CoreError {
	return &CoreError{Kind: kind, Msg: msg, Fields: fields}
}

// KindOf reports the ErrorKind of err, or "" if err is not a *CoreError.
func KindOf(err error) ErrorKind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// HashMismatch builds the HashMismatch{expected, got} variant from spec §4.B.
func HashMismatch(expected, got string) *CoreError {
	return WithFields(KindHashMismatch, fmt.Sprintf("expected %s, got %s", expected, got), map[string]any{
		"expected": expected,
		"got":      got,
	})
}

// HTTPStatus builds the Http{status} variant.
func HTTPStatus(status int) *CoreError {
	return WithFields(KindHTTP, fmt.Sprintf("http status %d", status), map[string]any{"status": status})
}

// NotFound builds the NotFound{kind, id} variant.
func NotFound(kind, id string) *CoreError {
	return WithFields(KindNotFound, fmt.Sprintf("%s %q not found", kind, id), map[string]any{"kind": kind, "id": id})
}

// AlreadyExists builds the AlreadyExists{kind, id} variant.
func AlreadyExists(kind, id string) *CoreError {
	return WithFields(KindAlreadyExists, fmt.Sprintf("%s %q already exists", kind, id), map[string]any{"kind": kind, "id": id})
}

// UnsupportedLoader builds the UnsupportedLoader{loader, mc_version} variant.
func UnsupportedLoader(loader, mcVersion string) *CoreError {
	return WithFields(KindUnsupportedLoader, fmt.Sprintf("loader %s has no manifest entry for %s", loader, mcVersion),
		map[string]any{"loader": loader, "mc_version": mcVersion})
}

// MissingManifest builds the MissingManifest{loader} variant.
func MissingManifest(loader string) *CoreError {
	return WithFields(KindMissingManifest, fmt.Sprintf("no manifest cached for loader %s", loader), map[string]any{"loader": loader})
}

// IncompatibleReason enumerates spec's IncompatiblePackage{reason}.
type IncompatibleReason string

const (
	ReasonMCVersion IncompatibleReason = "McVersion"
	ReasonLoader    IncompatibleReason = "Loader"
)

func IncompatiblePackage(reason IncompatibleReason) *CoreError {
	return WithFields(KindIncompatiblePackage, fmt.Sprintf("incompatible: %s", reason), map[string]any{"reason": reason})
}

func MissingAPIKey(provider string) *CoreError {
	return WithFields(KindMissingAPIKey, fmt.Sprintf("%s requires an API key", provider), map[string]any{"provider": provider})
}

func ProcessorFailed(jar string, code int) *CoreError {
	return WithFields(KindProcessorFailed, fmt.Sprintf("processor %s exited %d", jar, code), map[string]any{"jar": jar, "code": code})
}

// AuthStep tags a lower-level error with the MSA chain step that produced it.
func AuthStep(step string, err error) *CoreError {
	return &CoreError{Kind: KindAuthStep, Err: err, Msg: step, Fields: map[string]any{"step": step}}
}

func ClusterBusy(id string) *CoreError {
	return WithFields(KindClusterBusy, fmt.Sprintf("cluster %s is busy", id), map[string]any{"id": id})
}

var Cancelled = New(KindCancelled, "operation cancelled")
