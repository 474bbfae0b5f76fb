// Package tokenfile persists OAuth2 tokens to a single JSON file keyed by
// resource server. One login against the auth service yields a token per
// resource server it granted scopes for; each entry is refreshed and written
// back independently. This is a leaf package: nothing here talks to the network.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the directory that holds the token file.
const DirPerms = 0o700

// FormatVersion is the on-disk format written by Save.
const FormatVersion = "1.0"

// ErrNoToken is returned by Get when the file exists but holds no entry for
// the requested resource server.
var ErrNoToken = errors.New("tokenfile: no token for resource server")

// Entry is one resource server's token data.
type Entry struct {
	ResourceServer   string `json:"resource_server"`
	Scope            string `json:"scope,omitempty"`
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
	ExpiresAtSeconds int64  `json:"expires_at_seconds,omitempty"`
}

// File is the on-disk format.
type File struct {
	FormatVersion    string            `json:"format_version"`
	ByResourceServer map[string]*Entry `json:"by_rs"`
}

// NewEntry converts an oauth2 token into a storable entry. The granted scope
// string is read from the token's "scope" extra field when present.
func NewEntry(resourceServer string, tok *oauth2.Token) *Entry {
	e := &Entry{
		ResourceServer: resourceServer,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		TokenType:      tok.TokenType,
	}

	if scope, ok := tok.Extra("scope").(string); ok {
		e.Scope = scope
	}

	if !tok.Expiry.IsZero() {
		e.ExpiresAtSeconds = tok.Expiry.Unix()
	}

	return e
}

// Token converts the entry back into an oauth2 token.
func (e *Entry) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  e.AccessToken,
		RefreshToken: e.RefreshToken,
		TokenType:    e.TokenType,
	}

	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}

	if e.ExpiresAtSeconds > 0 {
		tok.Expiry = time.Unix(e.ExpiresAtSeconds, 0)
	}

	return tok
}

// Exists reports whether a token file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

// Load reads the token file. Returns (nil, nil) if the file does not exist.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf File
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if tf.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("tokenfile: %s has unsupported format version %q (re-login required)",
			path, tf.FormatVersion)
	}

	if tf.ByResourceServer == nil {
		return nil, fmt.Errorf("tokenfile: %s missing by_rs field (re-login required)", path)
	}

	return &tf, nil
}

// Get loads the token stored for resourceServer. Returns (nil, nil) if the
// file does not exist and ErrNoToken if it exists without that entry.
func Get(path, resourceServer string) (*oauth2.Token, error) {
	tf, err := Load(path)
	if err != nil || tf == nil {
		return nil, err
	}

	e, ok := tf.ByResourceServer[resourceServer]
	if !ok || e == nil {
		return nil, fmt.Errorf("%w %q in %s", ErrNoToken, resourceServer, path)
	}

	return e.Token(), nil
}

// Store merges tokens (keyed by resource server) into the file at path and
// saves it. Entries for other resource servers are preserved. A new entry
// without a refresh token or scope inherits them from the stored one, since
// refresh responses commonly omit both.
func Store(path string, tokens map[string]*oauth2.Token) error {
	tf, err := Load(path)
	if err != nil {
		return err
	}

	if tf == nil {
		tf = &File{ByResourceServer: make(map[string]*Entry, len(tokens))}
	}

	for rs, tok := range tokens {
		next := NewEntry(rs, tok)

		if prev, ok := tf.ByResourceServer[rs]; ok && prev != nil {
			if next.RefreshToken == "" {
				next.RefreshToken = prev.RefreshToken
			}

			if next.Scope == "" {
				next.Scope = prev.Scope
			}
		}

		tf.ByResourceServer[rs] = next
	}

	return Save(path, tf)
}

// Update stores a single refreshed token. It is the on-refresh hook.
func Update(path, resourceServer string, tok *oauth2.Token) error {
	return Store(path, map[string]*oauth2.Token{resourceServer: tok})
}

// Save writes a token file to disk atomically (write-to-temp + rename)
// with 0600 permissions. Never logs token values.
func Save(path string, tf *File) error {
	tf.FormatVersion = FormatVersion

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, mkErr)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".tokens-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	// Flush before rename so a power loss cannot leave a partial file behind.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes the token file. A missing file is not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tokenfile: removing %s: %w", path, err)
	}

	return nil
}
