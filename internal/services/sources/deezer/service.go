package deezer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/httpclient"
	"github.com/ternarybob/harvester/internal/interfaces"
	"github.com/ternarybob/harvester/internal/models"
	"github.com/ternarybob/harvester/internal/services/harvest"
)

// CookieDomain scopes session cookies sent to Deezer
const CookieDomain = ".deezer.com"

// BrowserUserAgent is presented instead of the harvester user agent; Deezer
// serves a reduced page to unknown clients.
const BrowserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// BrowserHeaders are sent with every page request
var BrowserHeaders = map[string]string{
	"Accept":          "*/*",
	"Accept-Language": "en-GB,en;q=0.9,en-US;q=0.8",
	"Referer":         "https://www.deezer.com/",
	"Origin":          "https://www.deezer.com",
}

// SessionCookies parses the raw cookie header and adds sid when it is not already present
func SessionCookies(cookieHeader string, sid string) []*http.Cookie {
	cookies := httpclient.ParseCookieHeader(cookieHeader, CookieDomain)
	if sid != "" && !httpclient.HasCookie(cookies, "sid") {
		cookies = append(cookies, &http.Cookie{Name: "sid", Value: sid, Domain: CookieDomain, Path: "/"})
	}
	return cookies
}

// Result describes one extraction
type Result struct {
	Path string   // saved JSON file
	Keys []string // top-level state keys, sorted
}

// Service fetches a Deezer page and saves its embedded application state
type Service struct {
	fetcher    interfaces.Fetcher
	artifacts  *harvest.ArtifactStore
	outputName string
	debugDir   string
	logger     arbor.ILogger
}

// NewService creates the extractor. The state is written to outputName inside
// artifacts; pages that cannot be parsed are dumped to debugDir/error.html.
func NewService(fetcher interfaces.Fetcher, artifacts *harvest.ArtifactStore, outputName string, debugDir string, logger arbor.ILogger) *Service {
	return &Service{
		fetcher:    fetcher,
		artifacts:  artifacts,
		outputName: outputName,
		debugDir:   debugDir,
		logger:     logger,
	}
}

// Run fetches targetPage, extracts the application state and saves it
func (s *Service) Run(ctx context.Context, targetPage string) (*Result, error) {
	body, err := s.fetcher.Fetch(ctx, targetPage, nil)
	if err != nil {
		return nil, err
	}

	state, err := ExtractAppState(string(body))
	if err != nil {
		var parseErr *models.ParseError
		if errors.As(err, &parseErr) {
			parseErr.Key = targetPage
		}
		if debugPath, dumpErr := s.dumpPage(body); dumpErr != nil {
			s.logger.Warn().Err(dumpErr).Msg("Failed to save debug page")
		} else {
			s.logger.Error().
				Err(err).
				Str("debug_file", debugPath).
				Msg("Failed to extract app state, page saved for inspection")
		}
		return nil, err
	}

	path, err := s.artifacts.Save(s.outputName, state)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.logger.Info().
		Str("page", targetPage).
		Str("path", path).
		Strs("keys", keys).
		Msg("Extracted app state")

	return &Result{Path: path, Keys: keys}, nil
}

func (s *Service) dumpPage(body []byte) (string, error) {
	if err := os.MkdirAll(s.debugDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug directory: %w", err)
	}
	path := filepath.Join(s.debugDir, "error.html")
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", fmt.Errorf("failed to write debug page: %w", err)
	}
	return path, nil
}
