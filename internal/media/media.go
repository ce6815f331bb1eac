// internal/media/media.go
package media

import (
	"errors"
	"time"

	"github.com/AlverezYari/camroll/pkg/medialib"
	"github.com/google/uuid"
)

// ErrLoadFailure means the media library could not be listed.
var ErrLoadFailure = errors.New("failed to load media library")

type ID string

func NewID() ID {
	return ID(uuid.New().String())
}

type Kind string

const (
	KindPhoto Kind = "photo"
	KindVideo Kind = "video"
)

// Item is one photo or video known to the screen.
type Item struct {
	ID        ID
	URI       string
	Kind      Kind
	CreatedAt time.Time
}

// FromAssets converts library assets, keeping their order.
func FromAssets(assets []medialib.Asset) []Item {
	items := make([]Item, 0, len(assets))
	for _, a := range assets {
		items = append(items, Item{
			ID:        ID(a.ID),
			URI:       a.URI,
			Kind:      Kind(a.Kind),
			CreatedAt: a.CreatedAt,
		})
	}
	return items
}
