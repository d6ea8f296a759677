package types

import (
	"context"
	"fmt"
	"strings"

	glob "github.com/bmatcuk/doublestar/v4"

	zerr "zotregistry.dev/zarc/errors"
)

const globMeta = "*?[{"

// IsPattern reports whether a repository filter is a glob rather than a repository name.
func IsPattern(filter string) bool {
	return strings.ContainsAny(filter, globMeta)
}

// ValidateFilter rejects malformed glob filters.
func ValidateFilter(filter string) error {
	if IsPattern(filter) && !glob.ValidatePattern(filter) {
		return fmt.Errorf("%w: bad repository pattern %q", zerr.ErrBadConfig, filter)
	}

	return nil
}

// SelectRepositories lists the repositories selected by filter, in inventory order.
// A name is looked up by the inventory, a glob is matched against the full listing and
// may select nothing.
func SelectRepositories(ctx context.Context, inventory Inventory, filter string) ([]string, error) {
	if !IsPattern(filter) {
		return inventory.ListRepositories(ctx, filter)
	}

	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}

	all, err := inventory.ListRepositories(ctx, "")
	if err != nil {
		return nil, err
	}

	selected := make([]string, 0, len(all))

	for _, repo := range all {
		if glob.MatchUnvalidated(filter, repo) {
			selected = append(selected, repo)
		}
	}

	return selected, nil
}
