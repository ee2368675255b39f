package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/Stefano-Trinca/liverepo"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ReadDegradedEvery uint64
	DecodeFailedEvery uint64
	// Optional path redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	readDegradedCtr atomic.Uint64
	decodeFailedCtr atomic.Uint64
}

var _ liverepo.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(p string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(p)
	}
	sum := sha256.Sum256([]byte(p))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) ReadDegraded(path string, op liverepo.Operation, reason string) {
	if h.l == nil || !sample(h.opts.ReadDegradedEvery, &h.readDegradedCtr) {
		return
	}
	h.l.Debug("liverepo.read_degraded",
		"path", h.redact(path),
		"op", string(op),
		"reason", reason)
}

func (h *Hooks) PermissionDenied(path string, op liverepo.Operation) {
	if h.l == nil {
		return
	}
	h.l.Info("liverepo.permission_denied",
		"path", h.redact(path),
		"op", string(op))
}

func (h *Hooks) WriteFailed(path string, op liverepo.Operation, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("liverepo.write_failed",
		"path", h.redact(path),
		"op", string(op),
		"err", err)
}

func (h *Hooks) WriteRejected(path string, op liverepo.Operation) {
	if h.l == nil {
		return
	}
	h.l.Warn("liverepo.write_rejected",
		"path", h.redact(path),
		"op", string(op))
}

func (h *Hooks) DecodeFailed(path string, err error) {
	if h.l == nil || !sample(h.opts.DecodeFailedEvery, &h.decodeFailedCtr) {
		return
	}
	h.l.Warn("liverepo.decode_failed",
		"path", h.redact(path),
		"err", err)
}

func (h *Hooks) SourceClosed(path string) {
	if h.l == nil {
		return
	}
	h.l.Info("liverepo.source_closed",
		"path", h.redact(path))
}

func (h *Hooks) WatchFallback(path string) {
	if h.l == nil {
		return
	}
	h.l.Warn("liverepo.watch_fallback",
		"path", h.redact(path),
		"msg", "backend has no watch support; cached values refresh on local writes only")
}
