package types

import (
	"context"
	"time"
)

// UntaggedTag is reported for images which carry no tag at all.
const UntaggedTag = "<untagged>"

// ImageRecord is the normalized view of one image held by a registry.
type ImageRecord struct {
	Repository   string     `json:"repository"`
	Tag          string     `json:"tag"`
	Tags         []string   `json:"tags,omitempty"`
	Digest       string     `json:"digest,omitempty"`
	SizeBytes    int64      `json:"sizeBytes"`
	PushedAt     time.Time  `json:"pushedAt"`
	LastPulledAt *time.Time `json:"lastPulledAt,omitempty"`
}

// NeverPulled reports whether the registry has no pull recorded for the image.
func (img ImageRecord) NeverPulled() bool {
	return img.LastPulledAt == nil
}

// EffectiveReferenceDate is the last pull time, falling back to the push time.
func (img ImageRecord) EffectiveReferenceDate() time.Time {
	if img.LastPulledAt != nil {
		return *img.LastPulledAt
	}

	return img.PushedAt
}

// TagOrUntagged returns the first tag, or the untagged sentinel.
func TagOrUntagged(tags []string) string {
	for _, tag := range tags {
		if tag != "" {
			return tag
		}
	}

	return UntaggedTag
}

// Inventory lists repositories and their images. Pagination is internal to the implementation.
type Inventory interface {
	// ListRepositories returns repository names in registry order. When filter names one
	// repository which does not exist, the error wraps errors.ErrRepoNotFound.
	ListRepositories(ctx context.Context, filter string) ([]string, error)
	ListImages(ctx context.Context, repository string) ([]ImageRecord, error)
}
