package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// Kind names one of the taxonomy lists.
type Kind string

const (
	Genres  Kind = "genres"
	Series  Kind = "series"
	Authors Kind = "authors"
)

var Kinds = []Kind{Genres, Series, Authors}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.Errorf("unknown taxonomy %q", s)
}

// Entry is a genre, series or author. IsCustom is only set for genres.
type Entry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsCustom  bool   `json:"is_custom,omitempty"`
	BookCount int    `json:"book_count"`
}

// ListEntries returns the entries of a taxonomy, optionally narrowed by a
// case-insensitive search.
func (c *Client) ListEntries(ctx context.Context, kind Kind, search string) ([]*Entry, error) {
	params := url.Values{}
	if search != "" {
		params.Set("search", search)
	}

	resp := map[string]json.RawMessage{}
	if err := c.read(ctx, "/"+string(kind), params, &resp); err != nil {
		return []*Entry{}, err
	}

	entries := []*Entry{}
	if raw, ok := resp[string(kind)]; ok {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return []*Entry{}, errors.WithStack(err)
		}
	}
	return entries, nil
}

func (c *Client) AddEntry(ctx context.Context, kind Kind, name string) (*Entry, error) {
	entry := &Entry{}
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/"+string(kind), nil, body, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RenameEntry renames an entry and returns it along with the number of books
// the rename rewrote.
func (c *Client) RenameEntry(ctx context.Context, kind Kind, id, name string) (*Entry, int, error) {
	resp := struct {
		Entry
		BooksUpdated int `json:"books_updated"`
	}{}
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPatch, "/"+string(kind)+"/"+url.PathEscape(id), nil, body, &resp); err != nil {
		return nil, 0, err
	}
	return &resp.Entry, resp.BooksUpdated, nil
}

func (c *Client) DeleteEntry(ctx context.Context, kind Kind, id string) error {
	return c.do(ctx, http.MethodDelete, "/"+string(kind)+"/"+url.PathEscape(id), nil, nil, nil)
}
