package covers

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

const keyPrefix = "book-covers/"

type Service struct {
	store Store
	now   func() time.Time
}

// NewService returns a cover service. A nil store disables uploads and covers
// stay embedded in the book.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (svc *Service) Enabled() bool {
	return svc != nil && svc.store != nil
}

// Ping checks the object store. A disabled service returns nil.
func (svc *Service) Ping(ctx context.Context) error {
	if !svc.Enabled() {
		return nil
	}
	return svc.store.Ping(ctx)
}

// ObjectKey names the object for a book's cover uploaded at t.
func ObjectKey(bookID string, t time.Time, ext string) string {
	return fmt.Sprintf("%s%s-%d%s", keyPrefix, bookID, t.UnixMilli(), ext)
}

// Upload stores img for the book and returns its public URL.
func (svc *Service) Upload(ctx context.Context, bookID string, img *Image) (string, error) {
	if !svc.Enabled() {
		return "", errors.New("cover storage is not configured")
	}
	key := ObjectKey(bookID, svc.now(), img.Ext)
	if err := svc.store.Put(ctx, key, img.ContentType, img.Data); err != nil {
		return "", errors.WithStack(err)
	}
	return svc.store.URL(key), nil
}

// Remove deletes the stored object behind cover. Covers that don't live in
// our store are left alone, and failures are only logged.
func (svc *Service) Remove(ctx context.Context, cover *string) {
	if !svc.Enabled() || cover == nil || IsDataURI(*cover) {
		return
	}
	key, ok := svc.store.Key(*cover)
	if !ok {
		return
	}
	if err := svc.store.Delete(ctx, key); err != nil {
		logger.FromContext(ctx).Warn("failed to delete cover object", logger.Data{"key": key, "error": err.Error()})
	}
}

// Resolution is the outcome of applying a requested cover change.
type Resolution struct {
	// Cover is the value to store on the book.
	Cover   *string
	Changed bool
	// uploaded is removed again if the book write fails.
	uploaded *string
	// obsolete is removed once the book write succeeds.
	obsolete *string
}

// Resolve works out what to store for a book's cover given the requested
// value and the current one:
//
//   - nil keeps the current cover, uploading it if it's still embedded
//   - "" clears the cover
//   - a data URI is uploaded, or kept embedded if that's not possible
//   - a URL is stored as is
func (svc *Service) Resolve(ctx context.Context, bookID string, incoming, current *string) (Resolution, error) {
	log := logger.FromContext(ctx)

	switch {
	case incoming == nil:
		if current == nil || !IsDataURI(*current) || !svc.Enabled() {
			return Resolution{Cover: current}, nil
		}
		img, err := ParseDataURI(*current)
		if err != nil {
			return Resolution{Cover: current}, nil
		}
		url, err := svc.Upload(ctx, bookID, img)
		if err != nil {
			log.Warn("failed to upload embedded cover", logger.Data{"book_id": bookID, "error": err.Error()})
			return Resolution{Cover: current}, nil
		}
		return Resolution{Cover: &url, Changed: true, uploaded: &url}, nil

	case *incoming == "":
		return Resolution{Cover: nil, Changed: current != nil, obsolete: current}, nil

	case IsDataURI(*incoming):
		img, err := ParseDataURI(*incoming)
		if err != nil {
			return Resolution{}, err
		}
		embedded := img.DataURI()
		if !svc.Enabled() {
			return Resolution{Cover: &embedded, Changed: true, obsolete: current}, nil
		}
		url, err := svc.Upload(ctx, bookID, img)
		if err != nil {
			log.Warn("failed to upload cover, keeping it embedded", logger.Data{"book_id": bookID, "error": err.Error()})
			return Resolution{Cover: &embedded, Changed: true, obsolete: current}, nil
		}
		return Resolution{Cover: &url, Changed: true, uploaded: &url, obsolete: current}, nil

	default:
		changed := current == nil || *current != *incoming
		res := Resolution{Cover: incoming, Changed: changed}
		if changed {
			res.obsolete = current
		}
		return res, nil
	}
}

// Commit removes the cover replaced by res. Call it after the book was saved.
func (svc *Service) Commit(ctx context.Context, res Resolution) {
	if res.obsolete == nil {
		return
	}
	if res.Cover != nil && *res.Cover == *res.obsolete {
		return
	}
	svc.Remove(ctx, res.obsolete)
}

// Rollback removes anything uploaded for res. Call it when saving the book
// failed.
func (svc *Service) Rollback(ctx context.Context, res Resolution) {
	svc.Remove(ctx, res.uploaded)
}
