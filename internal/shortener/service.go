// Package shortener maps long URLs to short codes on top of the storage
// layer. Repeated requests for the same URL reuse the existing code.
package shortener

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Pawan459/url-shortener/internal/metrics"
	"github.com/Pawan459/url-shortener/internal/storage"
	"github.com/Pawan459/url-shortener/pkg/logx"
)

var ErrInvalidURL = errors.New("invalid url")

const maxCodeAttempts = 5

type Service struct {
	store storage.Store
	met   *metrics.Metrics
	log   logx.Logger

	now func() time.Time
}

// New wires the service. met may be nil.
func New(store storage.Store, met *metrics.Metrics, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, met: met, log: log, now: time.Now}
}

// Shorten returns the link for target, minting a new code when none exists.
// clientID, when non-empty, marks the caller as the link's owner for visit
// notifications. The second return reports whether a new link was created.
func (s *Service) Shorten(ctx context.Context, target, clientID string) (storage.Link, bool, error) {
	normalized, err := normalizeURL(target)
	if err != nil {
		return storage.Link{}, false, err
	}

	if existing, err := s.store.LookupByURL(ctx, normalized); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.Link{}, false, err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := newCode()
		if err != nil {
			return storage.Link{}, false, err
		}
		link := storage.Link{
			Code:      code,
			URL:       normalized,
			ClientID:  clientID,
			CreatedAt: s.now().UnixMilli(),
		}
		if err := s.store.Put(ctx, link); err != nil {
			// Either a code collision or a concurrent shorten of the same
			// URL; re-check before retrying the code.
			if existing, lerr := s.store.LookupByURL(ctx, normalized); lerr == nil {
				return existing, false, nil
			}
			s.log.Debug("code collision; retrying", logx.String("code", code), logx.Err(err))
			continue
		}
		if s.met != nil {
			s.met.URLsCreated.Inc()
		}
		s.log.Info("short link created", logx.String("code", code), logx.String("url", normalized))
		return link, true, nil
	}
	return storage.Link{}, false, fmt.Errorf("could not mint a unique code after %d attempts", maxCodeAttempts)
}

// Resolve looks up a code and records the visit.
func (s *Service) Resolve(ctx context.Context, code string) (storage.Link, error) {
	link, err := s.store.Get(ctx, code)
	if err != nil {
		return storage.Link{}, err
	}
	if err := s.store.RecordVisit(ctx, code); err != nil {
		s.log.Warn("visit count update failed", logx.String("code", code), logx.Err(err))
	}
	if s.met != nil {
		s.met.Redirects.Inc()
	}
	return link, nil
}

// normalizeURL validates and canonicalizes the target. A missing scheme
// defaults to https; anything other than http(s) is rejected.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), nil
}
