package services

import (
	"strings"

	"github.com/Zerr0-C00L/CineShelf/internal/models"
)

// IsTrailer returns true for videos typed "Trailer" or "Teaser" (any case)
func IsTrailer(v models.Video) bool {
	t := strings.TrimSpace(v.Type)
	return strings.EqualFold(t, "Trailer") || strings.EqualFold(t, "Teaser")
}

// PickTrailer returns the first trailer or teaser in list order, or nil.
func PickTrailer(videos []models.Video) *models.Video {
	for i := range videos {
		if IsTrailer(videos[i]) {
			v := videos[i]
			return &v
		}
	}
	return nil
}
